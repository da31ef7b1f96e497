package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cvparse/pkg/cv"
	"github.com/jmylchreest/cvparse/pkg/extractor"
	"github.com/jmylchreest/cvparse/pkg/llm"
	"github.com/jmylchreest/cvparse/pkg/schema"
)

type fakeExtractor struct {
	result   *extractor.Result
	err      error
	content  string
	schema   schema.Schema
	document string
}

func (f *fakeExtractor) Extract(ctx context.Context, content string, s schema.Schema) (*extractor.Result, error) {
	f.content = content
	f.schema = s
	f.document = llm.DocumentFrom(ctx)
	return f.result, f.err
}
func (f *fakeExtractor) Name() string    { return "fake" }
func (f *fakeExtractor) Available() bool { return true }

func TestParse(t *testing.T) {
	ext := &fakeExtractor{result: &extractor.Result{
		Data:       &cv.CV{Education: []cv.Education{{Degree: "PhD", GPA: cv.Float(3.9)}}},
		Provider:   "gemini",
		Model:      "gemini-2.5-pro",
		Usage:      extractor.Usage{InputTokens: 900, OutputTokens: 120},
		RetryCount: 1,
	}}
	p := New(ext)

	rec, err := p.Parse(context.Background(), "alice.pdf", "Alice, PhD")
	require.NoError(t, err)

	assert.Equal(t, "Alice, PhD", ext.content)
	assert.Equal(t, "alice.pdf", ext.document)
	assert.Equal(t, "cv", ext.schema.Name)
	assert.Equal(t, "fake", p.Name())

	assert.Equal(t, "alice.pdf", rec.Document)
	assert.Equal(t, "gemini", rec.Provider)
	assert.Equal(t, 900, rec.InputTokens)
	assert.Equal(t, 1, rec.Retries)
	require.NotNil(t, rec.CV())
	assert.NotNil(t, rec.CV().Awards, "lists are normalized")

	data, err := rec.MarshalData()
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
	assert.Contains(t, string(data), "\n  \"education\": [")
	assert.Contains(t, string(data), `"awards": []`)
	assert.NotContains(t, string(data), "gemini")
}

func TestParse_EmptyText(t *testing.T) {
	ext := &fakeExtractor{}
	_, err := New(ext).Parse(context.Background(), "blank.pdf", " \n\t")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, ext.content, "extractor must not be called")
}

func TestParse_ExtractorError(t *testing.T) {
	boom := errors.New("validation failed")
	_, err := New(&fakeExtractor{err: boom}).Parse(context.Background(), "a.pdf", "text")
	assert.ErrorIs(t, err, boom)
}

func TestParse_NoData(t *testing.T) {
	_, err := New(&fakeExtractor{result: &extractor.Result{}}).Parse(context.Background(), "a.pdf", "text")
	assert.ErrorContains(t, err, "no data")
}

func TestParse_CustomSchema(t *testing.T) {
	s, err := schema.FromJSON([]byte(`{"name": "contact", "fields": [{"name": "email", "type": "string"}]}`))
	require.NoError(t, err)

	ext := &fakeExtractor{result: &extractor.Result{Data: map[string]any{"email": "a@b.c"}}}
	p := New(ext, WithSchema(s))
	assert.Equal(t, "contact", p.Schema().Name)

	rec, err := p.Parse(context.Background(), "a.pdf", "a@b.c")
	require.NoError(t, err)
	assert.Nil(t, rec.CV())

	data, err := rec.MarshalData()
	require.NoError(t, err)
	assert.JSONEq(t, `{"email": "a@b.c"}`, string(data))
}
