// Package dedup tracks which file first claimed a content hash.
package dedup

import (
	"context"
	"sync"
)

// Registry records the first owner of each content hash.
//
// Claim returns the owner of hash after the call: filename itself when the hash
// was unclaimed (or already owned by filename), otherwise the earlier owner. A
// document is a duplicate when the returned owner differs from its filename.
type Registry interface {
	Claim(ctx context.Context, hash, filename string) (owner string, err error)
	Close() error
}

// IsDuplicate reports whether filename lost the claim on hash.
func IsDuplicate(ctx context.Context, r Registry, hash, filename string) (bool, string, error) {
	owner, err := r.Claim(ctx, hash, filename)
	if err != nil {
		return false, "", err
	}
	return owner != filename, owner, nil
}

// Memory is an in-process registry. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{owners: make(map[string]string)}
}

// Claim implements Registry.
func (m *Memory) Claim(ctx context.Context, hash, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.owners[hash]; ok {
		return owner, nil
	}
	m.owners[hash] = filename
	return filename, nil
}

// Len returns the number of claimed hashes.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.owners)
}

// Close implements Registry.
func (m *Memory) Close() error {
	return nil
}
