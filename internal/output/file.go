package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// WriteFile serializes v to path in the given format. The file is written to a
// temporary sibling and renamed into place, so readers never see a partial file.
func WriteFile(path string, v any, format Format) error {
	var data []byte
	switch format {
	case FormatJSON, "":
		out, err := Marshal(v, "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		data = append(out, '\n')
	default:
		return fmt.Errorf("unsupported file format: %s", format)
	}
	return WriteBytes(path, data)
}

// WriteBytes atomically replaces path with data, creating parent directories.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// AppendLog is a concurrency-safe JSONL file opened in append mode.
type AppendLog struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *JSONLWriter
}

// OpenAppendLog opens (or creates) a JSONL file for appending.
func OpenAppendLog(path string) (*AppendLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //#nosec G304 -- path comes from the configured data layout
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &AppendLog{path: path, f: f, w: NewJSONLWriter(f)}, nil
}

// Append writes one record as a line.
func (l *AppendLog) Append(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(v)
}

// Path returns the file path backing the log.
func (l *AppendLog) Path() string {
	return l.path
}

// Close flushes and closes the file.
func (l *AppendLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}
