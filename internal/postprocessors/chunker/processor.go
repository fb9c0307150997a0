// Package chunker provides a fixed-size sliding-window text chunker.
package chunker

import (
	"fmt"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 50

// Processor splits page text into fixed-size overlapping chunks.
// Sizes and offsets are measured in characters (runes), not bytes.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a new chunker processor with the given options.
// Returns domain.ErrInvalidChunkingParameters unless 0 <= overlap < size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize <= 0 || p.overlap < 0 || p.overlap >= p.chunkSize {
		return nil, fmt.Errorf("%w: size=%d overlap=%d (need 0 <= overlap < size)",
			domain.ErrInvalidChunkingParameters, p.chunkSize, p.overlap)
	}

	return p, nil
}

// Size returns the chunk size in characters.
func (p *Processor) Size() int {
	return p.chunkSize
}

// Overlap returns the overlap in characters.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Chunk slides a window of chunkSize across each page independently,
// advancing by chunkSize-overlap. The last window of a page may be shorter
// and is always emitted. Empty pages produce no chunks.
func (p *Processor) Chunk(doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	step := p.chunkSize - p.overlap

	// Estimate number of chunks
	estimated := doc.TextLength()/step + len(doc.Pages)
	chunks := make([]domain.Chunk, 0, estimated)

	for _, page := range doc.Pages {
		runes := []rune(page.Text)
		total := len(runes)
		if total == 0 {
			continue
		}

		for start := 0; ; start += step {
			end := min(start+p.chunkSize, total)

			chunks = append(chunks, domain.Chunk{
				ID:          domain.ChunkID(doc.ID, page.Index, start),
				DocumentID:  doc.ID,
				Text:        string(runes[start:end]),
				SourcePage:  page.Index,
				StartOffset: start,
			})

			// A further window would only repeat the tail of this one
			if end == total {
				break
			}
		}
	}

	return chunks, nil
}

// NewFromSettings creates a chunker from configured settings.
func NewFromSettings(s domain.ChunkingSettings) (*Processor, error) {
	return New(WithChunkSize(s.Size), WithOverlap(s.Overlap))
}
