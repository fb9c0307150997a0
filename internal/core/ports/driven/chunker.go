package driven

import "github.com/custodia-labs/diagnobot/internal/core/domain"

// Chunker splits document pages into overlapping fixed-size passages.
type Chunker interface {
	// Chunk returns the passages of doc in page then offset order.
	// Chunk IDs are deterministic for a given document and parameters.
	Chunk(doc *domain.Document) ([]domain.Chunk, error)

	// Size returns the maximum chunk length in characters.
	Size() int

	// Overlap returns the number of characters shared by consecutive chunks.
	Overlap() int
}
