package document

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p, div, section, article, header, footer, h1, h2, h3, h4, h5, h6, li, tr, dt, dd, blockquote, pre, table, ul, ol"

// HTMLExtractor converts an HTML CV to text with one line per block element.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTML extractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract implements TextExtractor.
func (e *HTMLExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Extraction{}, fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, template, svg, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").PrependHtml("- ")
	doc.Find("td, th").AppendHtml(" ")
	doc.Find(blockSelector).AppendHtml("\n")

	body := doc.Find("body")
	if body.Length() == 0 {
		return Extraction{Text: doc.Text()}, nil
	}
	return Extraction{Text: body.Text()}, nil
}
