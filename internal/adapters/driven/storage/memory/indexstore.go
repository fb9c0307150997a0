package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore keeps a persisted index in process memory. It is used in tests
// and when no durable backend is configured.
type IndexStore struct {
	mu       sync.RWMutex
	snapshot *domain.IndexSnapshot
	saves    int
}

// NewIndexStore creates an empty in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{}
}

// Exists reports whether an index has been saved.
func (s *IndexStore) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot != nil, nil
}

// Save replaces the stored index with a copy of snapshot.
func (s *IndexStore) Save(ctx context.Context, snapshot *domain.IndexSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = cloneSnapshot(snapshot)
	s.saves++
	return nil
}

// Load returns a copy of the stored index.
func (s *IndexStore) Load(ctx context.Context) (*domain.IndexSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, domain.ErrNotFound
	}
	return cloneSnapshot(s.snapshot), nil
}

// Saves returns how many times an index has been saved.
func (s *IndexStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Location describes where the index is persisted.
func (s *IndexStore) Location() string {
	return ":memory:"
}

// Close releases resources.
func (s *IndexStore) Close() error {
	return nil
}

func cloneSnapshot(src *domain.IndexSnapshot) *domain.IndexSnapshot {
	dst := &domain.IndexSnapshot{
		Metadata: src.Metadata,
		Entries:  make([]domain.IndexEntry, len(src.Entries)),
	}
	for i, e := range src.Entries {
		dst.Entries[i] = domain.IndexEntry{
			Chunk:  e.Chunk,
			Vector: append([]float32(nil), e.Vector...),
		}
	}
	return dst
}
