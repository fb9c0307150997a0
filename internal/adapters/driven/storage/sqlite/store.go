package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/diagnobot/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// FileName is the name of the published index database.
const FileName = "index.db"

// IndexStore persists a vector index as an SQLite database file.
type IndexStore struct {
	dir  string
	path string
}

// NewIndexStore creates an index store in dataDir.
// If dataDir is empty, defaults to ~/.diagnobot/index.
func NewIndexStore(dataDir string) (*IndexStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".diagnobot", "index")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &IndexStore{
		dir:  dataDir,
		path: filepath.Join(dataDir, FileName),
	}, nil
}

// Location returns the database file path.
func (s *IndexStore) Location() string {
	return s.path
}

// Close releases resources. Connections are opened per operation.
func (s *IndexStore) Close() error {
	return nil
}

// Exists reports whether a published index file is present.
func (s *IndexStore) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat index: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Save writes snapshot to a temporary database and atomically renames it
// over the published index.
func (s *IndexStore) Save(ctx context.Context, snapshot *domain.IndexSnapshot) (err error) {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary index: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary index: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeDatabase(ctx, tmpPath, snapshot); err != nil {
		return err
	}
	if err := syncFile(tmpPath); err != nil {
		return fmt.Errorf("syncing temporary index: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("publishing index: %w", err)
	}
	if err := syncFile(s.dir); err != nil {
		logger.Warn("sync index directory %s: %v", s.dir, err)
	}

	logger.Debug("Saved index with %d chunks to %s", len(snapshot.Entries), s.path)
	return nil
}

// Load reads the published index.
func (s *IndexStore) Load(ctx context.Context) (*domain.IndexSnapshot, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	db, err := openDatabase(s.path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	meta, err := readMetadata(ctx, db)
	if err != nil {
		return nil, err
	}
	entries, err := readEntries(ctx, db)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.IndexSnapshot{Metadata: meta, Entries: entries}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func writeDatabase(ctx context.Context, path string, snapshot *domain.IndexSnapshot) error {
	db, err := openDatabase(path)
	if err != nil {
		return err
	}

	if err := migrate(ctx, db, migrations.FS); err != nil {
		db.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	if err := insertSnapshot(ctx, db, snapshot); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

func insertSnapshot(ctx context.Context, db *sql.DB, snapshot *domain.IndexSnapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	meta := snapshot.Metadata
	_, err = tx.ExecContext(ctx, `
		INSERT INTO index_metadata
			(id, document_id, model, dimensions, metric, chunk_count, chunk_size, chunk_overlap, built_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.DocumentID, string(meta.Model), meta.Dimensions, string(meta.Metric),
		meta.ChunkCount, meta.ChunkSize, meta.ChunkOverlap, meta.BuiltAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (position, id, document_id, page, start_offset, text, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range snapshot.Entries {
		c := e.Chunk
		if _, err := stmt.ExecContext(ctx, i, c.ID, c.DocumentID, c.SourcePage, c.StartOffset,
			c.Text, float32SliceToBytes(e.Vector)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	return nil
}

func readMetadata(ctx context.Context, db *sql.DB) (domain.IndexMetadata, error) {
	var (
		meta    domain.IndexMetadata
		model   string
		metric  string
		builtAt string
	)
	row := db.QueryRowContext(ctx, `
		SELECT document_id, model, dimensions, metric, chunk_count, chunk_size, chunk_overlap, built_at
		FROM index_metadata WHERE id = 1`)
	err := row.Scan(&meta.DocumentID, &model, &meta.Dimensions, &metric,
		&meta.ChunkCount, &meta.ChunkSize, &meta.ChunkOverlap, &builtAt)
	if err != nil {
		return meta, fmt.Errorf("%w: reading metadata: %w", domain.ErrIndexCorrupt, err)
	}

	meta.Model = domain.ModelIdentity(model)
	meta.Metric = domain.DistanceMetric(metric)
	t, err := time.Parse(time.RFC3339Nano, builtAt)
	if err != nil {
		return meta, fmt.Errorf("%w: built_at: %w", domain.ErrIndexCorrupt, err)
	}
	meta.BuiltAt = t.UTC()
	return meta, nil
}

func readEntries(ctx context.Context, db *sql.DB) ([]domain.IndexEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, document_id, page, start_offset, text, vector
		FROM chunks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %w", domain.ErrIndexCorrupt, err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		var (
			c    domain.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.SourcePage, &c.StartOffset, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %w", domain.ErrIndexCorrupt, err)
		}
		if len(blob)%4 != 0 {
			return nil, fmt.Errorf("%w: chunk %s vector has %d bytes", domain.ErrIndexCorrupt, c.ID, len(blob))
		}
		entries = append(entries, domain.IndexEntry{Chunk: c, Vector: bytesToFloat32Slice(blob)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating chunks: %w", domain.ErrIndexCorrupt, err)
	}
	return entries, nil
}

// migrate applies pending up migrations and records their versions.
func migrate(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_index.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// syncFile flushes a file or directory to stable storage.
func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
