package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 4

// Retriever embeds a query and finds its nearest chunks.
type Retriever struct {
	embedder driven.EmbeddingService
}

// NewRetriever creates a retriever that embeds queries with embedder.
func NewRetriever(embedder driven.EmbeddingService) *Retriever {
	return &Retriever{embedder: embedder}
}

// Retrieve returns the k chunks of index most similar to query.
// The query is embedded with the same model the index was built with;
// otherwise domain.ErrModelIdentityMismatch is returned before any
// embedding call.
func (r *Retriever) Retrieve(
	ctx context.Context, index driven.VectorIndex, query string, k int,
) (domain.RetrievalResult, error) {
	if k < 1 {
		return domain.RetrievalResult{}, fmt.Errorf("%w: k=%d", domain.ErrInvalidTopK, k)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.RetrievalResult{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if index == nil || index.Len() == 0 {
		return domain.RetrievalResult{}, domain.ErrEmptyIndex
	}

	model := r.embedder.Identity()
	if indexModel := index.Metadata().Model; indexModel != model {
		return domain.RetrievalResult{}, fmt.Errorf("%w: index built with %q, query embedder is %q",
			domain.ErrModelIdentityMismatch, indexModel, model)
	}

	values, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, domain.ErrEmbeddingService) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
		}
		return domain.RetrievalResult{}, fmt.Errorf("embed query: %w", err)
	}

	result, err := index.Query(ctx, domain.EmbeddingVector{Model: model, Values: values}, k)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("query index: %w", err)
	}
	result.Query = query

	logger.Debug("Retrieved %d chunks for %q", result.Len(), query)
	for _, c := range result.Chunks {
		logger.Debug("  #%d %s distance=%.4f", c.Rank, c.Chunk.ID, c.Distance)
	}
	return result, nil
}

// RetrievalService exposes retrieval without generation, ensuring the
// index exists first.
type RetrievalService struct {
	indexes   driving.IndexService
	retriever *Retriever
	topK      int
}

// NewRetrievalService creates a retrieval service.
// topK is used when a caller passes k = 0; values below 1 select DefaultTopK.
func NewRetrievalService(indexes driving.IndexService, retriever *Retriever, topK int) *RetrievalService {
	if topK < 1 {
		topK = DefaultTopK
	}
	return &RetrievalService{indexes: indexes, retriever: retriever, topK: topK}
}

// Retrieve returns the k chunks most similar to query.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) (domain.RetrievalResult, error) {
	if k == 0 {
		k = s.topK
	}
	if k < 1 {
		return domain.RetrievalResult{}, fmt.Errorf("%w: k=%d", domain.ErrInvalidTopK, k)
	}
	index, err := s.indexes.EnsureIndex(ctx)
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	return s.retriever.Retrieve(ctx, index, query, k)
}
