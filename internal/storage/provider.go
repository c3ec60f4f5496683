// Package storage defines the interface for a snapshot storage provider.
// This abstraction keeps the time-series store independent of where
// snapshots live (local filesystem, Google Cloud Storage, or memory).
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no object exists under the name.
var ErrNotFound = errors.New("object not found")

// Provider defines the common interface for a snapshot storage provider.
type Provider interface {
	// Save replaces the object with data. Readers must observe either the
	// previous object or the new one in full, never a partial write.
	Save(ctx context.Context, objectName string, data []byte) error
	// Load returns the object's bytes or ErrNotFound.
	Load(ctx context.Context, objectName string) ([]byte, error)
}
