package document

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"cv.pdf":        FormatPDF,
		"CV.PDF":        FormatPDF,
		"resume.docx":   FormatDOCX,
		"page.htm":      FormatHTML,
		"page.html":     FormatHTML,
		"notes.txt":     FormatText,
		"readme.md":     FormatText,
		"legacy.doc":    FormatUnknown,
		"photo.png":     FormatUnknown,
		"no_extension":  FormatUnknown,
		"dir/x.tar.pdf": FormatPDF,
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectFormat(name), name)
	}
	assert.True(t, Supported("a.docx"))
	assert.False(t, Supported("a.doc"))
}

func TestStemAndHash(t *testing.T) {
	assert.Equal(t, "Jane_Doe_CV", Stem("/data/raw/Jane_Doe_CV.pdf"))
	assert.Equal(t, "archive.tar", Stem("archive.tar.gz"))
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Hash([]byte("abc")))
}

func TestLoader_Text(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jane.txt")
	data := []byte("\xef\xbb\xbfJane Doe\nData Scientist\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	doc, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, doc.Path)
	assert.Equal(t, "jane.txt", doc.Name)
	assert.Equal(t, "jane", doc.Stem)
	assert.Equal(t, FormatText, doc.Format)
	assert.Equal(t, "txt", doc.Extension())
	assert.Equal(t, int64(len(data)), doc.Size)
	assert.Equal(t, Hash(data), doc.Hash)
	assert.Equal(t, "Jane Doe\nData Scientist\n", doc.Text)
	assert.False(t, doc.OCRUsed)
}

func TestLoader_Unsupported(t *testing.T) {
	doc, err := NewLoader().LoadBytes(context.Background(), "cv.odt", []byte("data"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	require.NotNil(t, doc)
	assert.Equal(t, Hash([]byte("data")), doc.Hash)
	assert.Equal(t, "odt", doc.Extension())
}

func TestLoader_Empty(t *testing.T) {
	doc, err := NewLoader().LoadBytes(context.Background(), "cv.pdf", nil)
	require.ErrorIs(t, err, ErrEmptyDocument)
	require.NotNil(t, doc)
	assert.Equal(t, FormatPDF, doc.Format)
}

func TestLoader_CorruptPDFDoesNotPanic(t *testing.T) {
	doc, err := NewLoader().LoadBytes(context.Background(), "broken.pdf", []byte("this is not a pdf at all"))
	require.Error(t, err)
	require.NotNil(t, doc)
	assert.Empty(t, doc.Text)
}

func TestLoader_MaxFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("a"), 64), 0o600))

	_, err := NewLoader(WithMaxFileSize(16)).Load(context.Background(), path)
	assert.ErrorContains(t, err, "limit")
}

func TestLoader_MissingFile(t *testing.T) {
	doc, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
	assert.Nil(t, doc)
}

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(context.Context, []byte, Format) (string, error) {
	f.calls++
	return f.text, f.err
}

func blankPDF(text string, err error) TextExtractor {
	return ExtractorFunc(func(context.Context, []byte) (Extraction, error) {
		return Extraction{Text: text, Pages: 2}, err
	})
}

func TestLoader_OCRFallback(t *testing.T) {
	tests := []struct {
		name       string
		extractor  TextExtractor
		ocr        *fakeOCR
		wantText   string
		wantOCR    bool
		wantErr    bool
		wantCalled bool
	}{
		{"blank text layer", blankPDF("  \n ", nil), &fakeOCR{text: "scanned"}, "scanned", true, false, true},
		{"extraction error", blankPDF("", errors.New("bad xref")), &fakeOCR{text: "scanned"}, "scanned", true, false, true},
		{"good text layer", blankPDF("Jane", nil), &fakeOCR{text: "scanned"}, "Jane", false, false, false},
		{"ocr fails too", blankPDF("", errors.New("bad xref")), &fakeOCR{err: errors.New("tika down")}, "", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(WithExtractor(FormatPDF, tt.extractor), WithOCR(tt.ocr))
			doc, err := l.LoadBytes(context.Background(), "cv.pdf", []byte("%PDF-1.4"))
			require.NotNil(t, doc)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorContains(t, err, "bad xref")
				assert.ErrorContains(t, err, "tika down")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantText, doc.Text)
			}
			assert.Equal(t, tt.wantOCR, doc.OCRUsed)
			assert.Equal(t, tt.wantCalled, tt.ocr.calls > 0)
			assert.Equal(t, 2, doc.Pages)
		})
	}
}

func TestLoader_NoOCRForDOCX(t *testing.T) {
	ocr := &fakeOCR{text: "scanned"}
	l := NewLoader(WithOCR(ocr), WithExtractor(FormatDOCX, blankPDF("", nil)))
	doc, err := l.LoadBytes(context.Background(), "cv.docx", []byte("PK"))
	require.NoError(t, err)
	assert.Empty(t, doc.Text)
	assert.Zero(t, ocr.calls)
}

func TestLoader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader().LoadBytes(ctx, "cv.txt", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

// --- DOCX ---

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>
<w:p><w:r><w:t>Skills:</w:t><w:tab/><w:t>Python &amp; Go</w:t></w:r></w:p>
<w:p><w:r><w:t>Line one</w:t><w:br/><w:t>Line two</w:t></w:r></w:p>
</w:body>
</w:document>`

func buildDOCX(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":            documentXML,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDOCXExtractor(t *testing.T) {
	res, err := NewDOCXExtractor().Extract(context.Background(), buildDOCX(t))
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Jane Doe\n")
	assert.Contains(t, res.Text, "Skills: Python & Go")
	assert.Contains(t, res.Text, "Line one\nLine two")
}

func TestDOCXExtractor_NotAZip(t *testing.T) {
	_, err := NewDOCXExtractor().Extract(context.Background(), []byte("plain text"))
	assert.Error(t, err)
}

func TestStripDocumentXML_Malformed(t *testing.T) {
	_, err := stripDocumentXML("<w:p><w:t>open")
	assert.Error(t, err)
}

// --- HTML ---

func TestHTMLExtractor(t *testing.T) {
	page := `<html><head><title>CV</title><style>.x{color:red}</style></head>
<body><h1>Jane Doe</h1><p>Data<br>Scientist</p>
<ul><li>Python</li><li>Go</li></ul>
<table><tr><td>2019</td><td>Acme</td></tr></table>
<script>track()</script></body></html>`

	res, err := NewHTMLExtractor().Extract(context.Background(), []byte(page))
	require.NoError(t, err)

	assert.Contains(t, res.Text, "Jane Doe\n")
	assert.Contains(t, res.Text, "Data\nScientist")
	assert.Contains(t, res.Text, "- Python\n")
	assert.Contains(t, res.Text, "- Go\n")
	assert.Contains(t, res.Text, "2019 Acme")
	assert.NotContains(t, res.Text, "track()")
	assert.NotContains(t, res.Text, "color:red")
}

// --- Tika ---

func TestTikaOCR_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "ocr_only", r.Header.Get("X-Tika-PDFOcrStrategy"))
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "%PDF-scan", string(body))
		_, _ = io.WriteString(w, "Jane Doe\nScanned CV")
	}))
	defer srv.Close()

	text, err := NewTikaOCR(srv.URL+"/", time.Second).Recognize(context.Background(), []byte("%PDF-scan"), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nScanned CV", text)
}

func TestTikaOCR_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unprocessable", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewTikaOCR(srv.URL, time.Second).Recognize(context.Background(), []byte("x"), FormatPDF)
	assert.ErrorContains(t, err, "422")
}
