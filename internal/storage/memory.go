// Package storage holds the asset backends media payloads are written to.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// ErrEmptyKey indicates an asset name that is empty after normalisation.
var ErrEmptyKey = errors.New("empty key")

// MemoryStorage keeps assets in process memory. It is used when no object
// store bucket is configured and in tests.
type MemoryStorage struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStorage returns an empty store whose locations are prefixed with
// baseURL when it is set.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string][]byte),
	}
}

// Save stores the content of r under name.
func (m *MemoryStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key := strings.TrimLeft(name, "/")
	if key == "" {
		return "", fmt.Errorf("memory storage: %w", ErrEmptyKey)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("memory storage read %s: %w", key, err)
	}

	m.mu.Lock()
	m.objects[key] = buf.Bytes()
	m.mu.Unlock()

	return location(m.baseURL, key), nil
}

// Get returns a copy of the object stored under name.
func (m *MemoryStorage) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[strings.TrimLeft(name, "/")]
	if !ok {
		return nil, false
	}
	return bytes.Clone(data), true
}

// Keys lists every stored name in order.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	return keys
}
