package memory

import (
	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
)

// Ensure Builder implements the interface.
var _ driven.IndexBuilder = Builder{}

// Builder creates exact in-memory cosine indexes.
type Builder struct{}

// NewBuilder creates an index builder.
func NewBuilder() Builder {
	return Builder{}
}

// Build creates an index from chunks and their embeddings.
func (Builder) Build(
	chunks []domain.Chunk,
	vectors []domain.EmbeddingVector,
	params driven.IndexBuildParams,
) (driven.VectorIndex, error) {
	opts := []BuildOption{WithChunking(params.ChunkSize, params.ChunkOverlap)}
	if !params.BuiltAt.IsZero() {
		opts = append(opts, WithBuiltAt(params.BuiltAt))
	}
	idx, err := BuildVectorIndex(chunks, vectors, params.Model, opts...)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Restore recreates an index from a persisted snapshot.
func (Builder) Restore(snapshot *domain.IndexSnapshot) (driven.VectorIndex, error) {
	idx, err := NewVectorIndexFromSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	return idx, nil
}
