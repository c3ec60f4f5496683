// Package memory keeps snapshots in-memory for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/pipelinewatch/internal/storage"
)

// Store is a map-backed storage.Provider.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Save stores a copy of data under objectName.
func (s *Store) Save(_ context.Context, objectName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectName] = append([]byte(nil), data...)
	return nil
}

// Load returns a copy of the stored object.
func (s *Store) Load(_ context.Context, objectName string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[objectName]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
