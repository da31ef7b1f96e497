// Package document loads CV files and extracts their raw text.
//
// Supported formats are PDF, DOCX, HTML and plain text. Scanned PDFs can be
// recovered through an OCR backend (see TikaOCR).
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
)

// Sentinel errors returned by Load. Extraction failures are wrapped.
var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrEmptyDocument     = errors.New("empty document")
)

// Format identifies a document type.
type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatHTML    Format = "html"
	FormatText    Format = "text"
)

// DetectFormat maps a filename extension to a Format.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".html", ".htm":
		return FormatHTML
	case ".txt", ".md":
		return FormatText
	default:
		return FormatUnknown
	}
}

// Supported reports whether name has a loadable extension.
func Supported(name string) bool {
	return DetectFormat(name) != FormatUnknown
}

// Document is a loaded CV. It is not modified after Load returns.
type Document struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Stem    string `json:"stem"`
	Format  Format `json:"format"`
	Size    int64  `json:"size"`
	Hash    string `json:"hash"`
	Pages   int    `json:"pages,omitempty"`
	Text    string `json:"-"`
	OCRUsed bool   `json:"ocr_used"`
}

// Extension returns the lowercase extension without the dot, or the format
// name when the document was loaded from bytes without one.
func (d *Document) Extension() string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Name)), "."); ext != "" {
		return ext
	}
	return string(d.Format)
}

// Hash returns the lowercase hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Stem returns the filename without directory and extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
