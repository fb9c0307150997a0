package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// DefaultBatchSize is the number of chunks embedded per request.
const DefaultBatchSize = 64

// IndexConfig controls the build phase.
type IndexConfig struct {
	// SourcePath locates the reference document.
	SourcePath string

	// BatchSize is the number of chunks per embedding request.
	BatchSize int

	// RequestsPerSecond paces embedding requests. Zero disables pacing.
	RequestsPerSecond float64
}

// IndexService owns the build phase: ingest, chunk, embed, build, persist.
// Builds run under the build lock; the built index is cached for reuse.
type IndexService struct {
	source   driven.DocumentSource
	registry driven.NormaliserRegistry
	chunker  driven.Chunker
	embedder driven.EmbeddingService
	builder  driven.IndexBuilder
	store    driven.IndexStore
	lock     driven.BuildLock
	cfg      IndexConfig
	limiter  *rate.Limiter
	now      func() time.Time

	// buildMu serialises load and build; mu guards index.
	buildMu sync.Mutex
	mu      sync.RWMutex
	index   driven.VectorIndex
}

// NewIndexService creates a new index service.
func NewIndexService(
	source driven.DocumentSource,
	registry driven.NormaliserRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	builder driven.IndexBuilder,
	store driven.IndexStore,
	lock driven.BuildLock,
	cfg IndexConfig,
) *IndexService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &IndexService{
		source:   source,
		registry: registry,
		chunker:  chunker,
		embedder: embedder,
		builder:  builder,
		store:    store,
		lock:     lock,
		cfg:      cfg,
		limiter:  limiter,
		now:      time.Now,
	}
}

// EnsureIndex returns the index, loading it from storage when persisted and
// building it under the build lock otherwise. A persisted index that fails
// validation is rebuilt. A persisted index built by a different embedding
// model is rejected with domain.ErrModelIdentityMismatch.
func (s *IndexService) EnsureIndex(ctx context.Context) (driven.VectorIndex, error) {
	if idx := s.cached(); idx != nil {
		return idx, nil
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	// Another caller may have finished while we waited.
	if idx := s.cached(); idx != nil {
		return idx, nil
	}

	idx, err := s.load(ctx)
	switch {
	case err == nil && idx != nil:
		s.setCached(idx)
		return idx, nil
	case errors.Is(err, domain.ErrIndexCorrupt):
		logger.Warn("Index at %s is unusable, rebuilding: %v", s.store.Location(), err)
	case err != nil:
		return nil, err
	}

	return s.buildAndPublish(ctx, true)
}

// Rebuild discards any persisted index and builds a new one.
// If the build fails the previous index, persisted and cached, is kept.
func (s *IndexService) Rebuild(ctx context.Context) (driven.VectorIndex, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	return s.buildAndPublish(ctx, false)
}

// Status reports the state of the persisted index.
func (s *IndexService) Status(ctx context.Context) (*domain.IndexStatus, error) {
	status := &domain.IndexStatus{Location: s.store.Location()}

	exists, err := s.store.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check index: %w", err)
	}
	status.Exists = exists

	if idx := s.cached(); idx != nil {
		meta := idx.Metadata()
		status.Loaded = true
		status.Metadata = &meta
		return status, nil
	}

	if !exists {
		return status, nil
	}

	snapshot, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrIndexCorrupt):
		logger.Warn("Index at %s is unusable: %v", status.Location, err)
		return status, nil
	case errors.Is(err, domain.ErrNotFound):
		status.Exists = false
		return status, nil
	case err != nil:
		return nil, fmt.Errorf("load index: %w", err)
	}
	meta := snapshot.Metadata
	status.Metadata = &meta
	return status, nil
}

func (s *IndexService) cached() driven.VectorIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

func (s *IndexService) setCached(idx driven.VectorIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = idx
}

// load restores the persisted index. Returns nil, nil when none exists.
func (s *IndexService) load(ctx context.Context) (driven.VectorIndex, error) {
	snapshot, err := s.store.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("No index at %s", s.store.Location())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	idx, err := s.builder.Restore(snapshot)
	if err != nil {
		return nil, fmt.Errorf("restore index: %w", err)
	}

	meta := idx.Metadata()
	if want := s.embedder.Identity(); meta.Model != want {
		return nil, fmt.Errorf("%w: index at %s was built with %q but embeddings use %q; run 'diagnobot index build' to rebuild",
			domain.ErrModelIdentityMismatch, s.store.Location(), meta.Model, want)
	}
	if meta.ChunkSize != s.chunker.Size() || meta.ChunkOverlap != s.chunker.Overlap() {
		logger.Warn("Index was chunked with size=%d overlap=%d, settings say size=%d overlap=%d; rebuild to apply",
			meta.ChunkSize, meta.ChunkOverlap, s.chunker.Size(), s.chunker.Overlap())
	}

	logger.Info("Loaded index: %d chunks, model %s", meta.ChunkCount, meta.Model)
	return idx, nil
}

// buildAndPublish builds under the build lock, persists, then caches.
// With recheck set, storage is consulted again once the lock is held, since
// another process may have published an index while this one waited.
func (s *IndexService) buildAndPublish(ctx context.Context, recheck bool) (driven.VectorIndex, error) {
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire build lock: %w", err)
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("Failed to release build lock: %v", err)
		}
	}()

	if recheck {
		idx, err := s.load(ctx)
		if err == nil && idx != nil {
			logger.Info("Index was published by another build")
			s.setCached(idx)
			return idx, nil
		}
		if err != nil && !errors.Is(err, domain.ErrIndexCorrupt) {
			return nil, err
		}
	}

	idx, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, idx.Snapshot()); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	logger.Info("Index persisted to %s", s.store.Location())

	s.setCached(idx)
	return idx, nil
}

// build runs the pipeline. Any failure aborts the build with nothing kept.
func (s *IndexService) build(ctx context.Context) (driven.VectorIndex, error) {
	logger.Section("Index Build")
	start := s.now()

	raw, err := s.source.Open(ctx, s.cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	doc, err := s.registry.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	logger.Info("Loaded %q: %d pages", doc.ID, len(doc.Pages))

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %q produced no chunks", domain.ErrEmptyIndex, doc.ID)
	}
	logger.Info("Split into %d chunks (size=%d, overlap=%d)", len(chunks), s.chunker.Size(), s.chunker.Overlap())

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	idx, err := s.builder.Build(chunks, vectors, driven.IndexBuildParams{
		Model:        s.embedder.Identity(),
		ChunkSize:    s.chunker.Size(),
		ChunkOverlap: s.chunker.Overlap(),
		BuiltAt:      s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	logger.Info("Built index of %d chunks in %s", idx.Len(), s.now().Sub(start).Round(time.Millisecond))
	return idx, nil
}

// embedChunks embeds chunk texts in batches, preserving order.
func (s *IndexService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.EmbeddingVector, error) {
	model := s.embedder.Identity()
	vectors := make([]domain.EmbeddingVector, 0, len(chunks))

	for start := 0; start < len(chunks); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(chunks))

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("embed chunks: %w", err)
			}
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, domain.ErrEmbeddingService) {
				err = fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
			}
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(embeddings) != len(texts) {
			return nil, fmt.Errorf("%w: %d embeddings returned for %d chunks",
				domain.ErrEmbeddingService, len(embeddings), len(texts))
		}

		for _, e := range embeddings {
			vectors = append(vectors, domain.EmbeddingVector{Model: model, Values: e})
		}
		logger.Debug("Embedded %d/%d chunks", end, len(chunks))
	}

	return vectors, nil
}
