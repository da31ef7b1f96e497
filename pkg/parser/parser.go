// Package parser is the Clean-Text Parser: it turns cleaned CV text into a
// validated StructuredRecord through an extractor.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/cvparse/internal/output"
	"github.com/jmylchreest/cvparse/pkg/cv"
	"github.com/jmylchreest/cvparse/pkg/extractor"
	"github.com/jmylchreest/cvparse/pkg/llm"
	"github.com/jmylchreest/cvparse/pkg/schema"
)

// ErrEmptyText is returned for blank input; nothing is sent to the LLM.
var ErrEmptyText = errors.New("no text to parse")

// Record is the structured record for one document.
type Record struct {
	// Document is the source file name.
	Document string `json:"document"`

	// Data is a *cv.CV for the built-in schema, or a map for a schema file.
	Data any `json:"data"`

	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Retries      int           `json:"retries"`
	Duration     time.Duration `json:"duration"`
}

// CV returns the record as a CV, or nil for records from a custom schema.
func (r *Record) CV() *cv.CV {
	c, _ := r.Data.(*cv.CV)
	return c
}

// MarshalData renders only the extracted data, indented by two spaces with a
// trailing newline. This is the content of extracted_jsons/<stem>.json.
func (r *Record) MarshalData() ([]byte, error) {
	data, err := output.Marshal(r.Data, "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return append(data, '\n'), nil
}

// Parser runs an extractor against a schema.
type Parser struct {
	extractor extractor.Extractor
	schema    schema.Schema
}

// Option configures a Parser.
type Option func(*Parser)

// WithSchema replaces the built-in CV schema.
func WithSchema(s schema.Schema) Option {
	return func(p *Parser) {
		p.schema = s
	}
}

// New creates a Parser using the CV schema unless WithSchema is given.
func New(ext extractor.Extractor, opts ...Option) *Parser {
	p := &Parser{
		extractor: ext,
		schema:    cv.Schema(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schema returns the schema records are validated against.
func (p *Parser) Schema() schema.Schema {
	return p.schema
}

// Name returns the underlying extractor name.
func (p *Parser) Name() string {
	return p.extractor.Name()
}

// Parse extracts a record from cleaned text. The record is returned only when
// it passed schema validation.
func (p *Parser) Parse(ctx context.Context, document, text string) (*Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	ctx = llm.WithDocument(ctx, document)
	res, err := p.extractor.Extract(ctx, text, p.schema)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Data == nil {
		return nil, fmt.Errorf("%s: extractor returned no data", p.extractor.Name())
	}

	if c, ok := res.Data.(*cv.CV); ok {
		c.Normalize()
	}

	return &Record{
		Document:     document,
		Data:         res.Data,
		Provider:     res.Provider,
		Model:        res.Model,
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
		Retries:      res.RetryCount,
		Duration:     res.Duration,
	}, nil
}
