package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "outputs/cleaned_texts/alice.txt", CleanedKey("alice"))
	assert.Equal(t, "outputs/extracted_jsons/alice.json", ExtractedKey("alice"))
	assert.Equal(t, "outputs/scored_cvs/alice_scored.json", ScoredKey("alice"))
	assert.Equal(t, "alice", StemFromExtracted("alice.json"))
	assert.Empty(t, StemFromExtracted("alice.txt"))
}

func TestLayout_EnsureDirs(t *testing.T) {
	l := NewLayout(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, l.EnsureDirs())
	for _, dir := range []string{RawDir, CleanedDir, ExtractedDir, ScoredDir, ExplainDir, LogsDir} {
		assert.DirExists(t, l.Path(dir))
	}
	assert.Equal(t, filepath.Join(l.Root, "processing_logs"), l.Logs())
}

func TestLayout_ListRaw(t *testing.T) {
	l := NewLayout(t.TempDir())
	require.NoError(t, l.EnsureDirs())
	for _, name := range []string{"b.pdf", "a.docx", ".gitkeep"} {
		require.NoError(t, os.WriteFile(filepath.Join(l.Raw(), name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(l.Raw(), "sub"), 0o750))

	files, err := l.ListRaw()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(l.Raw(), "a.docx"), filepath.Join(l.Raw(), "b.pdf")}, files)
}

func TestLayout_ListRaw_Missing(t *testing.T) {
	_, err := NewLayout(filepath.Join(t.TempDir(), "nope")).ListRaw()
	assert.Error(t, err)
}

func TestLayout_ListExtracted(t *testing.T) {
	l := NewLayout(t.TempDir())
	require.NoError(t, l.EnsureDirs())
	for _, name := range []string{"bob.json", "alice.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(l.Path(ExtractedDir+"/"+name), []byte("{}"), 0o600))
	}
	files, err := l.ListExtracted()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "alice.json", filepath.Base(files[0]))
}

func TestOutputStems(t *testing.T) {
	files := []string{"raw/Cand.md", "raw/alice.pdf", "raw/cand.txt", "raw/bob.docx"}
	assert.Equal(t, []string{"Cand.md", "alice", "cand.txt", "bob"}, OutputStems(files))
	assert.Empty(t, OutputStems(nil))
}
