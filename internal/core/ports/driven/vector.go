package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

// VectorIndex answers nearest-neighbour queries over a built index.
// It is read-only once built and safe for concurrent queries.
type VectorIndex interface {
	// Metadata describes how the index was built.
	Metadata() domain.IndexMetadata

	// Query returns the k chunks closest to query, ranked by ascending
	// distance with ties broken by chunk ID.
	// Returns domain.ErrModelIdentityMismatch if query was produced by a
	// different model than the index.
	Query(ctx context.Context, query domain.EmbeddingVector, k int) (domain.RetrievalResult, error)

	// Snapshot returns the persisted form of the index.
	Snapshot() *domain.IndexSnapshot

	// Len returns the number of indexed chunks.
	Len() int
}

// IndexBuildParams records how an index's chunks were produced.
type IndexBuildParams struct {
	// Model is the embedding model identity every vector must carry.
	Model domain.ModelIdentity

	// ChunkSize and ChunkOverlap are the chunker parameters used.
	ChunkSize    int
	ChunkOverlap int

	// BuiltAt is the build timestamp. Zero means now.
	BuiltAt time.Time
}

// IndexBuilder constructs in-memory vector indexes.
type IndexBuilder interface {
	// Build creates an index where vectors[i] is the embedding of chunks[i].
	// Returns domain.ErrEmptyIndex, domain.ErrDimensionMismatch or
	// domain.ErrModelIdentityMismatch when the inputs are unusable.
	Build(chunks []domain.Chunk, vectors []domain.EmbeddingVector, params IndexBuildParams) (VectorIndex, error)

	// Restore recreates an index from its persisted form.
	// Returns domain.ErrIndexCorrupt if the snapshot is inconsistent.
	Restore(snapshot *domain.IndexSnapshot) (VectorIndex, error)
}

// IndexStore persists vector indexes.
// Save must publish atomically: a crash mid-write never leaves a loadable
// but incomplete index.
type IndexStore interface {
	// Exists reports whether a complete index is persisted.
	Exists(ctx context.Context) (bool, error)

	// Save replaces any persisted index with snapshot.
	Save(ctx context.Context, snapshot *domain.IndexSnapshot) error

	// Load reads the persisted index.
	// Returns domain.ErrNotFound if none exists.
	Load(ctx context.Context) (*domain.IndexSnapshot, error)

	// Location describes where the index is persisted.
	Location() string

	// Close releases resources.
	Close() error
}

// BuildLock grants exclusive permission to build an index.
type BuildLock interface {
	// Acquire takes the lock without waiting.
	// Returns domain.ErrBuildInProgress if another build holds it.
	Acquire(ctx context.Context) (release func() error, err error)
}
