package status

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleaningLog_AddIssue(t *testing.T) {
	l := NewCleaningLog("run", "a.pdf")
	assert.False(t, l.HasIssue)
	assert.NotNil(t, l.Issue)

	l.AddIssue(IssueZeroText)
	l.AddIssue(IssueUnknownLanguage)
	l.AddIssue(IssueZeroText)

	assert.True(t, l.HasIssue)
	assert.Equal(t, []string{IssueZeroText, IssueUnknownLanguage}, l.Issue)
}

func TestRecorder_CleaningLogs(t *testing.T) {
	dir := t.TempDir()
	r, err := OpenRecorder(dir)
	require.NoError(t, err)

	ok := NewCleaningLog("run1", "good.pdf")
	ok.Language = "en"
	bad := NewCleaningLog("run1", "empty.pdf")
	bad.ZeroText = true
	bad.AddIssue(IssueZeroText)

	require.NoError(t, r.RecordCleaning(ok))
	require.NoError(t, r.RecordCleaning(bad))
	require.NoError(t, r.Close())

	all, err := ReadJSONL[CleaningLog](filepath.Join(dir, CleaningLogFile))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "good.pdf", all[0].Filename)
	assert.False(t, all[0].Timestamp.IsZero())

	errs, err := ReadJSONL[CleaningLog](filepath.Join(dir, ErrorLogFile))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "empty.pdf", errs[0].Filename)
	assert.Equal(t, []string{IssueZeroText}, errs[0].Issue)
}

func TestRecorder_EntriesAppendAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, run := range []string{"run1", "run2"} {
		r, err := OpenRecorder(dir)
		require.NoError(t, err)
		r.now = func() time.Time { return fixed }

		var wg sync.WaitGroup
		for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				assert.NoError(t, r.Record(Entry{RunID: run, Filename: name, Stage: StageParse, Status: StatusParsed}))
			}(name)
		}
		wg.Wait()
		require.NoError(t, r.Record(Entry{RunID: run, Filename: "d.doc", Stage: StageClean, Status: StatusSkipped}))
		require.NoError(t, r.Close())
	}

	entries, err := ReadJSONL[Entry](filepath.Join(dir, ProcessingLogFile))
	require.NoError(t, err)
	assert.Len(t, entries, 8)
	assert.True(t, entries[0].Timestamp.Equal(fixed))

	latest := LatestRun(entries)
	require.Len(t, latest, 4)
	for _, e := range latest {
		assert.Equal(t, "run2", e.RunID)
	}

	counts := Count(latest)
	assert.Equal(t, 3, counts[StatusParsed])
	assert.Equal(t, 1, counts[StatusSkipped])
	assert.Zero(t, counts[StatusFailed])
}

func TestReadJSONL_MissingFile(t *testing.T) {
	entries, err := ReadJSONL[Entry](filepath.Join(t.TempDir(), "none.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Nil(t, LatestRun(entries))
}
