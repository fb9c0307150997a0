package driving

import (
	"context"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
)

// IndexService owns the build phase of the pipeline.
type IndexService interface {
	// EnsureIndex returns the index, loading it from storage when persisted
	// and building it under the build lock otherwise.
	EnsureIndex(ctx context.Context) (driven.VectorIndex, error)

	// Rebuild discards any persisted index and builds a new one.
	Rebuild(ctx context.Context) (driven.VectorIndex, error)

	// Status reports the state of the persisted index.
	Status(ctx context.Context) (*domain.IndexStatus, error)
}
