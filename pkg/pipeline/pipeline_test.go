package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cvparse/pkg/cv"
	"github.com/jmylchreest/cvparse/pkg/extractor"
	"github.com/jmylchreest/cvparse/pkg/parser"
	"github.com/jmylchreest/cvparse/pkg/schema"
	"github.com/jmylchreest/cvparse/pkg/status"
)

const aliceCV = `Alice Smith is a research scientist with ten years of experience in machine
learning and natural language processing. She completed her doctorate at the
University of Cambridge and has published many papers in leading journals.

Her work focuses on building reliable systems for understanding documents,
and she has led several teams of engineers working on search and ranking.`

type fakeExtractor struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, content string, _ schema.Schema) (*extractor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, content)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &extractor.Result{
		Data:     &cv.CV{Education: []cv.Education{{Degree: "PhD", University: "University of Cambridge"}}},
		Provider: "fake",
		Model:    "fake-1",
		Usage:    extractor.Usage{InputTokens: 100, OutputTokens: 20},
	}, nil
}
func (f *fakeExtractor) Name() string    { return "fake" }
func (f *fakeExtractor) Available() bool { return true }

func (f *fakeExtractor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeRaw(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, RawDir)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func newPipeline(t *testing.T, root string, ext extractor.Extractor, mutate ...func(*Options)) *Pipeline {
	t.Helper()
	opts := Options{Layout: NewLayout(root), Concurrency: 1, RunID: "run-1"}
	if ext != nil {
		opts.Parser = parser.New(ext)
	}
	for _, m := range mutate {
		m(&opts)
	}
	p, err := New(opts)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(Options{Layout: NewLayout(t.TempDir())})
	require.NoError(t, err)
	assert.NotEmpty(t, p.RunID())
	assert.Equal(t, DefaultConcurrency, p.opts.Concurrency)
	assert.Equal(t, 1, p.opts.Concurrency)
	assert.Equal(t, "local", p.opts.Store.Name())
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "alice.txt", aliceCV)
	writeRaw(t, root, "bob.txt", aliceCV)
	writeRaw(t, root, "empty.txt", "")
	writeRaw(t, root, "notes.xyz", "whatever")
	writeRaw(t, root, ".DS_Store", "junk")
	require.NoError(t, os.MkdirAll(filepath.Join(root, RawDir, "nested"), 0o750))

	ext := &fakeExtractor{}
	summary, err := newPipeline(t, root, ext).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Parsed)
	assert.Equal(t, 3, summary.Skipped)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 1, ext.count())

	require.Len(t, summary.Results, 4)
	byName := map[string]Result{}
	var order []string
	for _, r := range summary.Results {
		byName[r.File] = r
		order = append(order, r.File)
	}
	assert.Equal(t, []string{"alice.txt", "bob.txt", "empty.txt", "notes.xyz"}, order)

	alice := byName["alice.txt"]
	assert.Equal(t, status.StatusParsed, alice.Status)
	assert.Equal(t, status.StageSave, alice.Stage)
	assert.Equal(t, "en", alice.Language)
	assert.Equal(t, ExtractedKey("alice"), alice.Output)

	assert.Equal(t, []string{status.IssueDuplicate}, byName["bob.txt"].Issues)
	assert.Equal(t, []string{status.IssueZeroText}, byName["empty.txt"].Issues)
	assert.Equal(t, []string{status.IssueUnsupportedType}, byName["notes.xyz"].Issues)

	layout := NewLayout(root)
	record, err := cv.Load(layout.Path(ExtractedKey("alice")))
	require.NoError(t, err)
	require.Len(t, record.Education, 1)
	assert.Equal(t, "PhD", record.Education[0].Degree)

	cleaned, err := os.ReadFile(layout.Path(CleanedKey("alice")))
	require.NoError(t, err)
	assert.Contains(t, string(cleaned), "Alice Smith is a research scientist")
	assert.NoFileExists(t, layout.Path(CleanedKey("bob")))

	entries, err := status.ReadJSONL[status.Entry](filepath.Join(layout.Logs(), status.ProcessingLogFile))
	require.NoError(t, err)
	require.Len(t, entries, 4)
	counts := status.Count(entries)
	assert.Equal(t, 1, counts[status.StatusParsed])
	assert.Equal(t, 3, counts[status.StatusSkipped])

	cleaningLogs, err := status.ReadJSONL[status.CleaningLog](filepath.Join(layout.Logs(), status.CleaningLogFile))
	require.NoError(t, err)
	assert.Len(t, cleaningLogs, 4)

	errorLogs, err := status.ReadJSONL[status.CleaningLog](filepath.Join(layout.Logs(), status.ErrorLogFile))
	require.NoError(t, err)
	require.Len(t, errorLogs, 3)
	for _, l := range errorLogs {
		if l.Filename == "bob.txt" {
			assert.Equal(t, "alice.txt", l.DuplicateOf)
		}
	}
}

func TestRun_Resume(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "alice.txt", aliceCV)

	ext := &fakeExtractor{}
	resume := func(o *Options) { o.Resume = true }

	first, err := newPipeline(t, root, ext, resume).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Parsed)

	second, err := newPipeline(t, root, ext, resume).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Cached)
	assert.Zero(t, second.Parsed)
	assert.Equal(t, 1, ext.count(), "cached documents must not call the LLM")

	third, err := newPipeline(t, root, ext).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, third.Parsed, "without resume the record is rebuilt")
	assert.Equal(t, 2, ext.count())
}

func TestRun_ShortListCV(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "ahmed.txt", `Ahmed Khan
BS Computer Science, CGPA 3.4/4.0
Data Analyst, Acme Corp (2021-2023)
Python, SQL, Power BI`)

	ext := &fakeExtractor{}
	summary, err := newPipeline(t, root, ext).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)

	res := summary.Results[0]
	assert.Equal(t, status.StatusParsed, res.Status, "issues: %v", res.Issues)
	assert.Empty(t, res.Issues)
	assert.NotEqual(t, "unknown", res.Language)
	assert.Equal(t, 1, ext.count())
}

func TestRun_StemCollision(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "cand.md", aliceCV)
	writeRaw(t, root, "cand.txt", aliceCV+"\n\nAlso led the document understanding group.")
	writeRaw(t, root, "solo.txt", aliceCV+"\n\nReference available on request.")

	ext := &fakeExtractor{}
	resume := func(o *Options) { o.Resume = true }
	summary, err := newPipeline(t, root, ext, resume).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Parsed)

	byName := map[string]Result{}
	for _, r := range summary.Results {
		byName[r.File] = r
	}
	assert.Equal(t, ExtractedKey("cand.md"), byName["cand.md"].Output)
	assert.Equal(t, ExtractedKey("cand.txt"), byName["cand.txt"].Output)
	assert.Equal(t, ExtractedKey("solo"), byName["solo.txt"].Output)

	layout := NewLayout(root)
	files, err := layout.ListExtracted()
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.FileExists(t, layout.Path(CleanedKey("cand.md")))
	assert.FileExists(t, layout.Path(CleanedKey("cand.txt")))

	cleaned, err := os.ReadFile(layout.Path(CleanedKey("cand.txt")))
	require.NoError(t, err)
	assert.Contains(t, string(cleaned), "document understanding group")

	// A resumed run reuses each document's own record.
	again, err := newPipeline(t, root, ext, resume).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, again.Cached)
	assert.Equal(t, 3, ext.count())
}

func TestRun_ParseFailure(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "alice.txt", aliceCV)

	boom := errors.New("provider unavailable")
	summary, err := newPipeline(t, root, &fakeExtractor{err: boom}).Run(context.Background())
	require.NoError(t, err, "document failures do not fail the run")
	assert.Equal(t, 1, summary.Failed)

	res := summary.Results[0]
	assert.Equal(t, status.StatusFailed, res.Status)
	assert.Equal(t, status.StageParse, res.Stage)
	assert.ErrorIs(t, res.Err, boom)

	var stageErr *StageError
	require.ErrorAs(t, res.Err, &stageErr)
	assert.Equal(t, "alice.txt", stageErr.File)

	layout := NewLayout(root)
	assert.NoFileExists(t, layout.Path(ExtractedKey("alice")))
	entries, err := status.ReadJSONL[status.Entry](filepath.Join(layout.Logs(), status.ProcessingLogFile))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Error, "provider unavailable")
}

func TestRun_CleanOnly(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "alice.txt", aliceCV)

	summary, err := newPipeline(t, root, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Cleaned)
	assert.Equal(t, status.StatusCleaned, summary.Results[0].Status)
	assert.FileExists(t, NewLayout(root).Path(CleanedKey("alice")))
}

func TestRun_Concurrent(t *testing.T) {
	root := t.TempDir()
	names := []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt", "f.txt"}
	for i, name := range names {
		writeRaw(t, root, name, aliceCV+"\n\nReference number "+string(rune('A'+i)))
	}

	ext := &fakeExtractor{}
	summary, err := newPipeline(t, root, ext, func(o *Options) { o.Concurrency = 3 }).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(names), summary.Parsed)
	assert.Equal(t, len(names), ext.count())
	for i, r := range summary.Results {
		assert.Equal(t, names[i], r.File, "results keep input order")
	}
}

func TestRun_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "alice.txt", aliceCV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ext := &fakeExtractor{}
	summary, err := newPipeline(t, root, ext).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Total)
	assert.Empty(t, summary.Results)
	assert.Zero(t, ext.count())
}

func TestParseFile(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "alice.txt", aliceCV)
	writeRaw(t, root, "empty.txt", "")

	p := newPipeline(t, root, &fakeExtractor{})

	rec, log, err := p.ParseFile(context.Background(), filepath.Join(root, RawDir, "alice.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alice.txt", rec.Document)
	assert.Equal(t, "txt", log.FileType)
	assert.False(t, log.HasIssue)
	assert.NoFileExists(t, NewLayout(root).Path(ExtractedKey("alice")), "ParseFile writes nothing")

	_, log, err = p.ParseFile(context.Background(), filepath.Join(root, RawDir, "empty.txt"))
	assert.ErrorIs(t, err, ErrSkipped)
	assert.True(t, log.ZeroText)
}

func TestParseFile_NoParser(t *testing.T) {
	_, _, err := newPipeline(t, t.TempDir(), nil).ParseFile(context.Background(), "x.txt")
	assert.Error(t, err)
}

func TestCleanFile(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "alice.txt", "\uFB01nance  team\t\n\n\n\nAlice")

	p := newPipeline(t, root, nil, func(o *Options) {
		o.Cleaner = nil
	})
	text, log, err := p.CleanFile(context.Background(), filepath.Join(root, RawDir, "alice.txt"))
	require.NoError(t, err, "issues: %v", log.Issue)
	assert.NotEqual(t, "unknown", log.Language)
	assert.Equal(t, "finance team\nAlice", text.Text)
	assert.Equal(t, []string{"text", "chain(unicode->layout)"}, text.Cleaners)
}

func TestHandle(t *testing.T) {
	p := newPipeline(t, t.TempDir(), nil)
	out, err := p.handle(&CleanedText{Text: "\uFB01nance \u201cteam\u201d", Cleaners: []string{"text"}})
	require.NoError(t, err)
	assert.Equal(t, `finance "team"`, out.Text)
	assert.Equal(t, []string{"text", "chain(unicode->layout)"}, out.Cleaners)
}

func TestStageError(t *testing.T) {
	inner := errors.New("bad pdf")
	err := stageError(status.StageClean, "a.pdf", inner)
	assert.Equal(t, "clean a.pdf: bad pdf", err.Error())
	assert.ErrorIs(t, err, inner)
}
