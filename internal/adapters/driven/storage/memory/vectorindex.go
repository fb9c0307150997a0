package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an exact nearest-neighbour index over cosine distance.
// It is read-only after build and safe for concurrent queries.
type VectorIndex struct {
	mu       sync.RWMutex
	metadata domain.IndexMetadata
	entries  []domain.IndexEntry
	norms    []float64
}

// BuildOption configures index metadata at build time.
type BuildOption func(*domain.IndexMetadata)

// WithChunking records the chunker parameters the chunks were cut with.
func WithChunking(size, overlap int) BuildOption {
	return func(m *domain.IndexMetadata) {
		m.ChunkSize = size
		m.ChunkOverlap = overlap
	}
}

// WithBuiltAt overrides the build timestamp.
func WithBuiltAt(t time.Time) BuildOption {
	return func(m *domain.IndexMetadata) {
		m.BuiltAt = t
	}
}

// BuildVectorIndex builds an index from chunks and their embeddings.
// vectors[i] must be the embedding of chunks[i] produced by model.
func BuildVectorIndex(
	chunks []domain.Chunk,
	vectors []domain.EmbeddingVector,
	model domain.ModelIdentity,
	opts ...BuildOption,
) (*VectorIndex, error) {
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyIndex
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrDimensionMismatch, len(chunks), len(vectors))
	}

	dims := vectors[0].Dimensions()
	if dims == 0 {
		return nil, fmt.Errorf("%w: empty vector", domain.ErrDimensionMismatch)
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i, v := range vectors {
		if v.Model != model {
			return nil, fmt.Errorf("%w: vector %d produced by %q, index model %q",
				domain.ErrModelIdentityMismatch, i, v.Model, model)
		}
		if v.Dimensions() != dims {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, i, v.Dimensions(), dims)
		}
		entries[i] = domain.IndexEntry{Chunk: chunks[i], Vector: v.Values}
	}

	meta := domain.IndexMetadata{
		DocumentID: chunks[0].DocumentID,
		Model:      model,
		Dimensions: dims,
		Metric:     domain.MetricCosine,
		ChunkCount: len(chunks),
		BuiltAt:    time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&meta)
	}

	return newVectorIndex(meta, entries), nil
}

// NewVectorIndexFromSnapshot restores an index from its persisted form.
// Returns domain.ErrIndexCorrupt if the snapshot is inconsistent.
func NewVectorIndexFromSnapshot(snapshot *domain.IndexSnapshot) (*VectorIndex, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	entries := make([]domain.IndexEntry, len(snapshot.Entries))
	copy(entries, snapshot.Entries)
	return newVectorIndex(snapshot.Metadata, entries), nil
}

func newVectorIndex(meta domain.IndexMetadata, entries []domain.IndexEntry) *VectorIndex {
	norms := make([]float64, len(entries))
	for i, e := range entries {
		norms[i] = squaredNorm(e.Vector)
	}
	return &VectorIndex{metadata: meta, entries: entries, norms: norms}
}

// Metadata describes how the index was built.
func (x *VectorIndex) Metadata() domain.IndexMetadata {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.metadata
}

// Len returns the number of indexed chunks.
func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Snapshot returns the persisted form of the index.
func (x *VectorIndex) Snapshot() *domain.IndexSnapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entries := make([]domain.IndexEntry, len(x.entries))
	copy(entries, x.entries)
	return &domain.IndexSnapshot{Metadata: x.metadata, Entries: entries}
}

// Query returns the k chunks closest to query by cosine distance.
// Fewer than k chunks are returned when the index is smaller than k.
func (x *VectorIndex) Query(ctx context.Context, query domain.EmbeddingVector, k int) (domain.RetrievalResult, error) {
	if k < 1 {
		return domain.RetrievalResult{}, fmt.Errorf("%w: k=%d", domain.ErrInvalidTopK, k)
	}
	if err := ctx.Err(); err != nil {
		return domain.RetrievalResult{}, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if query.Model != x.metadata.Model {
		return domain.RetrievalResult{}, fmt.Errorf("%w: query produced by %q, index built with %q",
			domain.ErrModelIdentityMismatch, query.Model, x.metadata.Model)
	}
	if query.Dimensions() != x.metadata.Dimensions {
		return domain.RetrievalResult{}, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, query.Dimensions(), x.metadata.Dimensions)
	}

	qNorm := squaredNorm(query.Values)
	scored := make([]domain.ScoredChunk, len(x.entries))
	for i, e := range x.entries {
		scored[i] = domain.ScoredChunk{
			Chunk:    e.Chunk,
			Distance: cosineDistance(query.Values, e.Vector, qNorm, x.norms[i]),
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Distance != scored[j].Distance {
			return scored[i].Distance < scored[j].Distance
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})

	if k > len(scored) {
		k = len(scored)
	}
	result := scored[:k:k]
	for i := range result {
		result[i].Rank = i + 1
	}
	return domain.RetrievalResult{Chunks: result}, nil
}

func squaredNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}

// cosineDistance returns 1 - cos(a, b). A zero vector has distance 1 to
// everything.
func cosineDistance(a, b []float32, aNorm, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	sim := dot / math.Sqrt(aNorm*bNorm)
	sim = math.Max(-1, math.Min(1, sim))
	return 1 - sim
}
