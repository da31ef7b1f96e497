package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disablePDFCPUConfig sync.Once

// PDFExtractor reads the text layer of a PDF. pdfcpu supplies the page count;
// the text comes from ledongthuc/pdf.
type PDFExtractor struct {
	conf *model.Configuration
}

// NewPDFExtractor creates a PDF extractor with relaxed validation.
func NewPDFExtractor() *PDFExtractor {
	disablePDFCPUConfig.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf}
}

// Extract implements TextExtractor.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	pages, countErr := e.pageCount(data)

	text, n, err := plainText(data)
	if pages == 0 {
		pages = n
	}
	if err != nil {
		if countErr != nil {
			return Extraction{Pages: pages}, fmt.Errorf("invalid pdf: %w", countErr)
		}
		return Extraction{Pages: pages}, err
	}
	return Extraction{Text: text, Pages: pages}, nil
}

func (e *PDFExtractor) pageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdfcpu: %v", r)
		}
	}()
	return api.PageCount(bytes.NewReader(data), e.conf)
}

// plainText recovers from panics in the PDF parser, which malformed files can trigger.
func plainText(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parser: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	pages = r.NumPage()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("read pdf text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", pages, fmt.Errorf("read pdf text: %w", err)
	}
	return sb.String(), pages, nil
}
