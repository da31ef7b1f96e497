package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/cvparse/internal/logger"
)

// Extraction is the text pulled from a document.
type Extraction struct {
	Text  string
	Pages int
}

// TextExtractor pulls plain text out of raw document bytes.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (Extraction, error)
}

// ExtractorFunc adapts a function to TextExtractor.
type ExtractorFunc func(ctx context.Context, data []byte) (Extraction, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (Extraction, error) {
	return f(ctx, data)
}

// OCR recognizes text in scanned documents.
type OCR interface {
	Recognize(ctx context.Context, data []byte, format Format) (string, error)
}

// DefaultMaxFileSize bounds the size of files Load will read.
const DefaultMaxFileSize = 50 << 20

// Loader reads documents and extracts their text.
type Loader struct {
	extractors  map[Format]TextExtractor
	ocr         OCR
	maxFileSize int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOCR enables OCR fallback for PDFs whose text layer is missing or unreadable.
func WithOCR(o OCR) LoaderOption {
	return func(l *Loader) {
		l.ocr = o
	}
}

// WithExtractor overrides the extractor for a format.
func WithExtractor(f Format, e TextExtractor) LoaderOption {
	return func(l *Loader) {
		l.extractors[f] = e
	}
}

// WithMaxFileSize sets the largest file Load accepts. Zero disables the limit.
func WithMaxFileSize(n int64) LoaderOption {
	return func(l *Loader) {
		l.maxFileSize = n
	}
}

// NewLoader creates a loader with the built-in extractors.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		extractors: map[Format]TextExtractor{
			FormatPDF:  NewPDFExtractor(),
			FormatDOCX: NewDOCXExtractor(),
			FormatHTML: NewHTMLExtractor(),
			FormatText: NewTextExtractor(),
		},
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file at path and extracts its text.
//
// The returned Document is non-nil whenever the file could be read, even if
// extraction failed, so callers can still log its name, type and hash.
func (l *Loader) Load(ctx context.Context, path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if l.maxFileSize > 0 && info.Size() > l.maxFileSize {
		return nil, fmt.Errorf("%s is %s, larger than the %s limit", path,
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(l.maxFileSize)))
	}

	data, err := os.ReadFile(path) //#nosec G304 -- path comes from the input directory listing
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := l.LoadBytes(ctx, filepath.Base(path), data)
	if doc != nil {
		doc.Path = path
	}
	return doc, err
}

// LoadBytes extracts text from an in-memory document. name supplies the format.
func (l *Loader) LoadBytes(ctx context.Context, name string, data []byte) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := &Document{
		Name:   filepath.Base(name),
		Stem:   Stem(name),
		Format: DetectFormat(name),
		Size:   int64(len(data)),
		Hash:   Hash(data),
	}

	if doc.Format == FormatUnknown {
		return doc, fmt.Errorf("%s: %w", doc.Name, ErrUnsupportedFormat)
	}
	if len(data) == 0 {
		return doc, fmt.Errorf("%s: %w", doc.Name, ErrEmptyDocument)
	}

	ext, ok := l.extractors[doc.Format]
	if !ok {
		return doc, fmt.Errorf("%s: %w", doc.Name, ErrUnsupportedFormat)
	}

	res, extractErr := ext.Extract(ctx, data)
	doc.Text = res.Text
	doc.Pages = res.Pages

	if doc.Format == FormatPDF && l.ocr != nil && (extractErr != nil || strings.TrimSpace(res.Text) == "") {
		logger.DebugContext(ctx, "text layer unusable, trying OCR", "file", doc.Name, "error", extractErr)
		text, ocrErr := l.ocr.Recognize(ctx, data, doc.Format)
		if ocrErr != nil {
			if extractErr != nil {
				return doc, fmt.Errorf("extract %s: %w", doc.Name, errors.Join(extractErr, ocrErr))
			}
			return doc, fmt.Errorf("ocr %s: %w", doc.Name, ocrErr)
		}
		doc.Text = text
		doc.OCRUsed = true
		return doc, nil
	}

	if extractErr != nil {
		return doc, fmt.Errorf("extract %s: %w", doc.Name, extractErr)
	}
	return doc, nil
}
