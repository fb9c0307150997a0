package sqlite

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

const testModel = domain.ModelIdentity("hashing/hashing-384")

// setupTestStore creates an index store in a temporary directory.
func setupTestStore(t *testing.T) *IndexStore {
	t.Helper()
	store, err := NewIndexStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func testSnapshot(t *testing.T) *domain.IndexSnapshot {
	t.Helper()
	chunks := []domain.Chunk{
		{ID: "doc:0:0", DocumentID: "doc", Text: "Fever is a common symptom of infection.", SourcePage: 0},
		{ID: "doc:0:30", DocumentID: "doc", Text: "of infection. Héadache ⚠️", SourcePage: 0, StartOffset: 30},
		{ID: "doc:1:0", DocumentID: "doc", Text: "Rest and hydration are standard advice.", SourcePage: 1},
	}
	vectors := []domain.EmbeddingVector{
		{Model: testModel, Values: []float32{0.1, float32(math.Pi), -0.3}},
		{Model: testModel, Values: []float32{math.SmallestNonzeroFloat32, 1, 0}},
		{Model: testModel, Values: []float32{-0.5, 0.25, math.MaxFloat32}},
	}
	idx, err := memory.BuildVectorIndex(chunks, vectors, testModel,
		memory.WithChunking(40, 10),
		memory.WithBuiltAt(time.Date(2026, 10, 18, 9, 30, 0, 123456789, time.UTC)))
	require.NoError(t, err)
	return idx.Snapshot()
}

func TestNewIndexStore_DirectoryCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "index")

	store, err := NewIndexStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(dir, FileName), store.Location())
}

func TestNewIndexStore_DefaultDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewIndexStore("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".diagnobot", "index", FileName), store.Location())
}

func TestIndexStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	snap := testSnapshot(t)

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Save(ctx, snap))

	exists, err = store.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Metadata, loaded.Metadata)
	require.Len(t, loaded.Entries, len(snap.Entries))
	for i := range snap.Entries {
		assert.Equal(t, snap.Entries[i].Chunk, loaded.Entries[i].Chunk)
		require.Len(t, loaded.Entries[i].Vector, len(snap.Entries[i].Vector))
		for j := range snap.Entries[i].Vector {
			assert.Equal(t, math.Float32bits(snap.Entries[i].Vector[j]), math.Float32bits(loaded.Entries[i].Vector[j]))
		}
	}
}

func TestIndexStore_RestartYieldsIdenticalResults(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	snap := testSnapshot(t)

	first, err := NewIndexStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, snap))
	require.NoError(t, first.Close())

	before, err := memory.NewVectorIndexFromSnapshot(snap)
	require.NoError(t, err)

	second, err := NewIndexStore(dir)
	require.NoError(t, err)
	loaded, err := second.Load(ctx)
	require.NoError(t, err)
	after, err := memory.NewVectorIndexFromSnapshot(loaded)
	require.NoError(t, err)

	q := domain.EmbeddingVector{Model: testModel, Values: []float32{0.2, 0.4, -0.1}}
	want, err := before.Query(ctx, q, 3)
	require.NoError(t, err)
	got, err := after.Query(ctx, q, 3)
	require.NoError(t, err)

	require.Equal(t, want.Len(), got.Len())
	for i := range want.Chunks {
		assert.Equal(t, want.Chunks[i].Chunk, got.Chunks[i].Chunk)
		assert.Equal(t, math.Float64bits(want.Chunks[i].Distance), math.Float64bits(got.Chunks[i].Distance))
	}
}

func TestIndexStore_SaveReplacesAndLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	snap := testSnapshot(t)
	require.NoError(t, store.Save(ctx, snap))

	smaller := &domain.IndexSnapshot{Metadata: snap.Metadata, Entries: snap.Entries[:1]}
	smaller.Metadata.ChunkCount = 1
	require.NoError(t, store.Save(ctx, smaller))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Entries, 1)

	files, err := os.ReadDir(filepath.Dir(store.Location()))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, FileName, files[0].Name())
}

func TestIndexStore_SaveRejectsInvalidSnapshot(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	err := store.Save(ctx, &domain.IndexSnapshot{})
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIndexStore_FailedSaveKeepsPreviousIndex(t *testing.T) {
	store := setupTestStore(t)
	snap := testSnapshot(t)
	require.NoError(t, store.Save(context.Background(), snap))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Save(ctx, snap)
	require.Error(t, err)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded.Entries, len(snap.Entries))

	files, err := os.ReadDir(filepath.Dir(store.Location()))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestIndexStore_LoadMissing(t *testing.T) {
	_, err := setupTestStore(t).Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexStore_LoadCorrupt(t *testing.T) {
	t.Run("not a database", func(t *testing.T) {
		store := setupTestStore(t)
		require.NoError(t, os.WriteFile(store.Location(), []byte("garbage"), 0o600))

		_, err := store.Load(context.Background())
		assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
	})

	t.Run("chunk count mismatch", func(t *testing.T) {
		ctx := context.Background()
		store := setupTestStore(t)
		require.NoError(t, store.Save(ctx, testSnapshot(t)))

		db, err := sql.Open("sqlite", store.Location())
		require.NoError(t, err)
		_, err = db.Exec("DELETE FROM chunks WHERE position = 2")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		_, err = store.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
	})

	t.Run("other metric", func(t *testing.T) {
		ctx := context.Background()
		store := setupTestStore(t)
		require.NoError(t, store.Save(ctx, testSnapshot(t)))

		db, err := sql.Open("sqlite", store.Location())
		require.NoError(t, err)
		_, err = db.Exec("UPDATE index_metadata SET metric = 'l2'")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		_, err = store.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
	})
}

func TestMigrate_RecordsVersion(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, store.Save(ctx, testSnapshot(t)))

	db, err := sql.Open("sqlite", store.Location())
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestFloat32Conversion(t *testing.T) {
	in := []float32{0, -1.5, float32(math.Inf(1)), math.SmallestNonzeroFloat32}

	out := bytesToFloat32Slice(float32SliceToBytes(in))

	assert.Equal(t, in, out)
	assert.Empty(t, bytesToFloat32Slice(nil))
}
