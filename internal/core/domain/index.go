package domain

import (
	"fmt"
	"time"
)

// DistanceMetric identifies how vector distance is computed.
type DistanceMetric string

// MetricCosine is cosine distance (1 - cosine similarity).
// It is the only metric the index supports; it is recorded in metadata so a
// persisted index can never be queried under a different metric.
const MetricCosine DistanceMetric = "cosine"

// String returns the string representation.
func (m DistanceMetric) String() string {
	return string(m)
}

// IndexMetadata describes how a vector index was built.
type IndexMetadata struct {
	// DocumentID is the identity of the indexed document.
	DocumentID string

	// Model is the embedding model identity used for every vector.
	Model ModelIdentity

	// Dimensions is the length of every vector.
	Dimensions int

	// Metric is the distance metric used at build and query time.
	Metric DistanceMetric

	// ChunkCount is the number of indexed chunks.
	ChunkCount int

	// ChunkSize is the chunker window used at build time.
	ChunkSize int

	// ChunkOverlap is the chunker overlap used at build time.
	ChunkOverlap int

	// BuiltAt is when the build completed.
	BuiltAt time.Time
}

// IndexEntry pairs a chunk with its embedding.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

// IndexSnapshot is the persisted form of a vector index.
type IndexSnapshot struct {
	Metadata IndexMetadata
	Entries  []IndexEntry
}

// Validate checks that the snapshot is complete and self-consistent.
// Returns ErrIndexCorrupt otherwise.
func (s *IndexSnapshot) Validate() error {
	if s == nil || len(s.Entries) == 0 {
		return fmt.Errorf("%w: %w", ErrIndexCorrupt, ErrEmptyIndex)
	}
	meta := s.Metadata
	if meta.Metric != MetricCosine {
		return fmt.Errorf("%w: unsupported metric %q", ErrIndexCorrupt, meta.Metric)
	}
	if meta.Model == "" {
		return fmt.Errorf("%w: missing model identity", ErrIndexCorrupt)
	}
	if meta.ChunkCount != len(s.Entries) {
		return fmt.Errorf("%w: metadata records %d chunks, found %d", ErrIndexCorrupt, meta.ChunkCount, len(s.Entries))
	}
	for i, e := range s.Entries {
		if len(e.Vector) != meta.Dimensions {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				ErrIndexCorrupt, i, len(e.Vector), meta.Dimensions)
		}
	}
	return nil
}

// IndexStatus reports the state of the persisted index.
type IndexStatus struct {
	// Location is where the index is persisted.
	Location string

	// Exists is true when a complete index is persisted at Location.
	Exists bool

	// Loaded is true when the index is held in memory.
	Loaded bool

	// Metadata is set when Exists is true.
	Metadata *IndexMetadata
}

// ScoredChunk is a chunk returned by a query with its distance and rank.
type ScoredChunk struct {
	// Chunk is the matched passage.
	Chunk Chunk

	// Distance is the cosine distance to the query (0 = identical direction).
	Distance float64

	// Rank is the 1-based position in the result.
	Rank int
}

// RetrievalResult is the ordered set of chunks returned for one query,
// most similar first.
type RetrievalResult struct {
	// Query is the query text, when known.
	Query string

	// Chunks are ranked by ascending distance, ties broken by chunk ID.
	Chunks []ScoredChunk
}

// Len returns the number of chunks in the result.
func (r RetrievalResult) Len() int {
	return len(r.Chunks)
}

// Texts returns the chunk texts in rank order.
func (r RetrievalResult) Texts() []string {
	texts := make([]string, len(r.Chunks))
	for i := range r.Chunks {
		texts[i] = r.Chunks[i].Chunk.Text
	}
	return texts
}
