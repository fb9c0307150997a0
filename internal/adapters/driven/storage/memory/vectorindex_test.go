package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

const testModel = domain.ModelIdentity("test/model")

func testChunks(n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:          domain.ChunkID("doc", i, 0),
			DocumentID:  "doc",
			Text:        fmt.Sprintf("chunk %d", i),
			SourcePage:  i,
			StartOffset: 0,
		}
	}
	return chunks
}

func vec(model domain.ModelIdentity, values ...float32) domain.EmbeddingVector {
	return domain.EmbeddingVector{Model: model, Values: values}
}

func buildTestIndex(t *testing.T) *VectorIndex {
	t.Helper()
	idx, err := BuildVectorIndex(testChunks(3), []domain.EmbeddingVector{
		vec(testModel, 1, 0, 0),
		vec(testModel, 0, 1, 0),
		vec(testModel, 0.7, 0.7, 0),
	}, testModel, WithChunking(40, 10))
	require.NoError(t, err)
	return idx
}

func TestBuildVectorIndex_Metadata(t *testing.T) {
	builtAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	idx, err := BuildVectorIndex(testChunks(2), []domain.EmbeddingVector{
		vec(testModel, 1, 2),
		vec(testModel, 3, 4),
	}, testModel, WithChunking(40, 10), WithBuiltAt(builtAt))
	require.NoError(t, err)

	assert.Equal(t, domain.IndexMetadata{
		DocumentID:   "doc",
		Model:        testModel,
		Dimensions:   2,
		Metric:       domain.MetricCosine,
		ChunkCount:   2,
		ChunkSize:    40,
		ChunkOverlap: 10,
		BuiltAt:      builtAt,
	}, idx.Metadata())
	assert.Equal(t, 2, idx.Len())
}

func TestBuildVectorIndex_Errors(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []domain.Chunk
		vectors []domain.EmbeddingVector
		wantErr error
	}{
		{"no chunks", nil, nil, domain.ErrEmptyIndex},
		{"count mismatch", testChunks(2), []domain.EmbeddingVector{vec(testModel, 1)}, domain.ErrDimensionMismatch},
		{"empty vector", testChunks(1), []domain.EmbeddingVector{vec(testModel)}, domain.ErrDimensionMismatch},
		{
			"length mismatch",
			testChunks(2),
			[]domain.EmbeddingVector{vec(testModel, 1, 2), vec(testModel, 1)},
			domain.ErrDimensionMismatch,
		},
		{
			"model mismatch",
			testChunks(2),
			[]domain.EmbeddingVector{vec(testModel, 1), vec("other/model", 1)},
			domain.ErrModelIdentityMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildVectorIndex(tt.chunks, tt.vectors, testModel)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestQuery_IdenticalVectorRanksFirstAtZero(t *testing.T) {
	idx := buildTestIndex(t)

	result, err := idx.Query(context.Background(), vec(testModel, 0, 1, 0), 3)
	require.NoError(t, err)

	require.Equal(t, 3, result.Len())
	assert.Equal(t, "doc:1:0", result.Chunks[0].Chunk.ID)
	assert.Equal(t, 1, result.Chunks[0].Rank)
	assert.Equal(t, 0.0, result.Chunks[0].Distance)
	assert.Equal(t, "doc:2:0", result.Chunks[1].Chunk.ID)
	assert.Equal(t, "doc:0:0", result.Chunks[2].Chunk.ID)
	assert.InDelta(t, 1.0, result.Chunks[2].Distance, 1e-9)
	assert.Equal(t, 3, result.Chunks[2].Rank)
}

func TestQuery_KLargerThanIndex(t *testing.T) {
	idx := buildTestIndex(t)

	result, err := idx.Query(context.Background(), vec(testModel, 1, 0, 0), 10)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Len())
}

func TestQuery_TiesBrokenByChunkID(t *testing.T) {
	chunks := testChunks(3)
	chunks[0].ID, chunks[1].ID, chunks[2].ID = "doc:9:0", "doc:1:0", "doc:5:0"
	idx, err := BuildVectorIndex(chunks, []domain.EmbeddingVector{
		vec(testModel, 1, 1),
		vec(testModel, 2, 2),
		vec(testModel, 3, 3),
	}, testModel)
	require.NoError(t, err)

	result, err := idx.Query(context.Background(), vec(testModel, 1, 1), 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"doc:1:0", "doc:5:0", "doc:9:0"}, []string{
		result.Chunks[0].Chunk.ID, result.Chunks[1].Chunk.ID, result.Chunks[2].Chunk.ID,
	})
}

func TestQuery_ZeroVector(t *testing.T) {
	idx := buildTestIndex(t)

	result, err := idx.Query(context.Background(), vec(testModel, 0, 0, 0), 1)
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Chunks[0].Distance)
}

func TestQuery_Errors(t *testing.T) {
	idx := buildTestIndex(t)
	ctx := context.Background()

	_, err := idx.Query(ctx, vec("other/model", 1, 0, 0), 1)
	assert.ErrorIs(t, err, domain.ErrModelIdentityMismatch)

	_, err = idx.Query(ctx, vec(testModel, 1, 0), 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = idx.Query(ctx, vec(testModel, 1, 0, 0), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTopK)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = idx.Query(cancelled, vec(testModel, 1, 0, 0), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQuery_Concurrent(t *testing.T) {
	idx := buildTestIndex(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := idx.Query(context.Background(), vec(testModel, 1, 0, 0), 1)
			assert.NoError(t, err)
			assert.Equal(t, "doc:0:0", result.Chunks[0].Chunk.ID)
		}()
	}
	wg.Wait()
}

func TestSnapshotRoundTrip(t *testing.T) {
	idx := buildTestIndex(t)

	restored, err := NewVectorIndexFromSnapshot(idx.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, idx.Metadata(), restored.Metadata())
	assert.Equal(t, idx.Snapshot().Entries, restored.Snapshot().Entries)

	q := vec(testModel, 0.2, 0.9, 0.1)
	before, err := idx.Query(context.Background(), q, 3)
	require.NoError(t, err)
	after, err := restored.Query(context.Background(), q, 3)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNewVectorIndexFromSnapshot_Corrupt(t *testing.T) {
	valid := func() *domain.IndexSnapshot { return buildTestIndex(t).Snapshot() }

	tests := []struct {
		name   string
		mutate func(s *domain.IndexSnapshot) *domain.IndexSnapshot
	}{
		{"nil", func(*domain.IndexSnapshot) *domain.IndexSnapshot { return nil }},
		{"no entries", func(s *domain.IndexSnapshot) *domain.IndexSnapshot { s.Entries = nil; return s }},
		{"other metric", func(s *domain.IndexSnapshot) *domain.IndexSnapshot { s.Metadata.Metric = "l2"; return s }},
		{"no model", func(s *domain.IndexSnapshot) *domain.IndexSnapshot { s.Metadata.Model = ""; return s }},
		{"count", func(s *domain.IndexSnapshot) *domain.IndexSnapshot { s.Metadata.ChunkCount = 9; return s }},
		{"dimensions", func(s *domain.IndexSnapshot) *domain.IndexSnapshot {
			s.Entries[1].Vector = []float32{1}
			return s
		}},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(valid()).Validate()
			assert.ErrorIs(t, err, domain.ErrIndexCorrupt)

			_, err = NewVectorIndexFromSnapshot(tt.mutate(valid()))
			assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
		})
	}
}
