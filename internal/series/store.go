package series

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/pipelinewatch/internal/pipeline"
	"github.com/JakeFAU/pipelinewatch/internal/storage"
)

// SnapshotName returns the object name a pipeline's snapshot is stored under.
func SnapshotName(pipelineName string) string {
	return pipelineName + "_PipelineWatch.csv"
}

// Store loads and saves whole-table snapshots through a storage.Provider.
type Store struct {
	provider storage.Provider
}

// NewStore creates a Store backed by provider.
func NewStore(provider storage.Provider) (*Store, error) {
	if provider == nil {
		return nil, fmt.Errorf("storage provider is required")
	}
	return &Store{provider: provider}, nil
}

// Load reads p's snapshot. A missing snapshot yields an empty table with
// p's columns; an unreadable one is an error wrapping ErrCorrupt.
func (s *Store) Load(ctx context.Context, p *pipeline.Pipeline) (*Table, error) {
	data, err := s.provider.Load(ctx, SnapshotName(p.Name()))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewTable(p), nil
		}
		return nil, fmt.Errorf("load snapshot %s: %w", p.Name(), err)
	}
	t, err := Decode(bytes.NewReader(data), p)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", p.Name(), err)
	}
	return t, nil
}

// Save writes t as one snapshot, replacing the previous one.
func (s *Store) Save(ctx context.Context, t *Table) error {
	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return fmt.Errorf("encode snapshot %s: %w", t.Pipeline(), err)
	}
	if err := s.provider.Save(ctx, SnapshotName(t.Pipeline()), buf.Bytes()); err != nil {
		return fmt.Errorf("save snapshot %s: %w", t.Pipeline(), err)
	}
	return nil
}

// Raw returns the persisted snapshot bytes for pipelineName unchanged.
func (s *Store) Raw(ctx context.Context, pipelineName string) ([]byte, error) {
	data, err := s.provider.Load(ctx, SnapshotName(pipelineName))
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", pipelineName, err)
	}
	return data, nil
}
