// Package storage persists pipeline artifacts (records, cleaned texts, reports).
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/internal/output"
)

// Content types used for artifacts.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Store persists an artifact under a slash-separated key such as
// "outputs/extracted_jsons/alice.json".
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Name() string
}

// Local stores artifacts below a root directory. Writes are atomic.
type Local struct {
	root string
}

// NewLocal creates a local store rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

// Name returns the store name.
func (l *Local) Name() string {
	return "local"
}

// Root returns the root directory.
func (l *Local) Root() string {
	return l.root
}

// Path resolves a key to a filesystem path below the root.
func (l *Local) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.root, clean), nil
}

// Put writes data to root/key.
func (l *Local) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.Path(key)
	if err != nil {
		return err
	}
	return output.WriteBytes(path, data)
}

// Exists reports whether key is present.
func (l *Local) Exists(key string) bool {
	path, err := l.Path(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Multi writes to a primary store and mirrors to secondaries. Only the primary's
// failure is returned; mirror failures are logged.
type Multi struct {
	primary Store
	mirrors []Store
}

// NewMulti creates a fan-out store.
func NewMulti(primary Store, mirrors ...Store) *Multi {
	return &Multi{primary: primary, mirrors: mirrors}
}

// Name returns the combined store names.
func (m *Multi) Name() string {
	names := []string{m.primary.Name()}
	for _, s := range m.mirrors {
		names = append(names, s.Name())
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Put writes to the primary, then to each mirror.
func (m *Multi) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := m.primary.Put(ctx, key, data, contentType); err != nil {
		return err
	}
	for _, s := range m.mirrors {
		if err := s.Put(ctx, key, data, contentType); err != nil {
			logger.WarnContext(ctx, "artifact mirror failed", "store", s.Name(), "key", key, "error", err)
		}
	}
	return nil
}
