package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/cvparse/internal/version"
)

// TikaOCR sends documents to an Apache Tika server for OCR.
type TikaOCR struct {
	endpoint string
	client   *http.Client
}

// NewTikaOCR creates a Tika client for the server at endpoint
// (e.g. "http://localhost:9998").
func NewTikaOCR(endpoint string, timeout time.Duration) *TikaOCR {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &TikaOCR{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

var contentTypes = map[Format]string{
	FormatPDF:  "application/pdf",
	FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatHTML: "text/html",
	FormatText: "text/plain",
}

// Recognize implements OCR. PDFs are processed with the ocr_only strategy,
// which ignores any broken text layer.
func (t *TikaOCR) Recognize(ctx context.Context, data []byte, format Format) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.endpoint+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create tika request: %w", err)
	}
	if ct, ok := contentTypes[format]; ok {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", version.UserAgent())
	if format == FormatPDF {
		req.Header.Set("X-Tika-PDFOcrStrategy", "ocr_only")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tika request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read tika response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tika returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}
