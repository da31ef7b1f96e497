package document

import (
	"bytes"
	"context"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainTextExtractor reads plain text and Markdown files.
type PlainTextExtractor struct{}

// NewTextExtractor creates a plain-text extractor.
func NewTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// Extract implements TextExtractor. A leading byte order mark is dropped.
func (e *PlainTextExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	return Extraction{Text: string(bytes.TrimPrefix(data, utf8BOM))}, nil
}
