package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Document is a parsed reference text as an ordered sequence of pages.
// It is immutable once produced by a normaliser.
type Document struct {
	// ID is the stable document identity used to derive chunk IDs.
	ID string

	// URI is the location the document was read from.
	URI string

	// Title is a human-readable title.
	Title string

	// Pages are the page texts in load order.
	Pages []Page

	// Metadata contains format-specific key-value pairs.
	Metadata map[string]any
}

// Page is one page-level text record of a Document.
type Page struct {
	// Index is the zero-based position of the page in the source.
	Index int

	// Text is the extracted plain text of the page.
	Text string
}

// TextLength returns the total number of characters across all pages.
func (d *Document) TextLength() int {
	total := 0
	for _, p := range d.Pages {
		total += utf8.RuneCountInString(p.Text)
	}
	return total
}

// Chunk is a bounded passage of a page, the unit of embedding and retrieval.
type Chunk struct {
	// ID is derived from DocumentID, SourcePage and StartOffset.
	ID string

	// DocumentID links to the Document the chunk was cut from.
	DocumentID string

	// Text is the passage content.
	Text string

	// SourcePage is the index of the page the chunk was cut from.
	SourcePage int

	// StartOffset is the character offset of the chunk within its page.
	StartOffset int
}

// ChunkID returns the deterministic identifier for a chunk.
// Re-chunking the same document with the same parameters yields the same IDs.
func ChunkID(documentID string, page, offset int) string {
	return fmt.Sprintf("%s:%d:%d", documentID, page, offset)
}

// ParseChunkID splits a chunk identifier into its components.
// Document IDs may themselves contain colons; the last two fields are numeric.
func ParseChunkID(id string) (documentID string, page, offset int, err error) {
	last := strings.LastIndex(id, ":")
	if last <= 0 {
		return "", 0, 0, fmt.Errorf("%w: chunk id %q", ErrInvalidInput, id)
	}
	mid := strings.LastIndex(id[:last], ":")
	if mid <= 0 {
		return "", 0, 0, fmt.Errorf("%w: chunk id %q", ErrInvalidInput, id)
	}

	page, err = strconv.Atoi(id[mid+1 : last])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: chunk id %q page: %w", ErrInvalidInput, id, err)
	}
	offset, err = strconv.Atoi(id[last+1:])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: chunk id %q offset: %w", ErrInvalidInput, id, err)
	}
	return id[:mid], page, offset, nil
}
