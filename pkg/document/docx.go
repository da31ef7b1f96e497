package document

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// DOCXExtractor reads the paragraph text of a Word document.
type DOCXExtractor struct{}

// NewDOCXExtractor creates a DOCX extractor.
func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

// Extract implements TextExtractor.
func (e *DOCXExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Extraction{}, fmt.Errorf("open docx: %w", err)
	}
	defer func() { _ = r.Close() }()

	text, err := stripDocumentXML(r.Editable().GetContent())
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{Text: text}, nil
}

// stripDocumentXML keeps character data from word/document.xml, ending a line
// at each paragraph and break and turning tabs into spaces.
func stripDocumentXML(raw string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			if t.Name.Local == "tab" {
				sb.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "br", "cr":
				sb.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
