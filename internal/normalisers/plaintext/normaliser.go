package plaintext

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// PageBreak separates pages in plain text documents.
const PageBreak = "\f"

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/plain"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise converts a plain text document into pages.
// Form feeds separate pages; text without form feeds is a single page.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, domain.ErrSourceUnreadable
	}

	content := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")
	parts := strings.Split(content, PageBreak)

	pages := make([]domain.Page, len(parts))
	for i, text := range parts {
		pages[i] = domain.Page{Index: i, Text: strings.TrimSpace(text)}
	}

	return &domain.Document{
		ID:       raw.Identity(),
		URI:      raw.URI,
		Title:    extractTitle(raw, pages),
		Pages:    pages,
		Metadata: raw.CopyMetadata(),
	}, nil
}

// extractTitle prefers metadata, then the first non-empty line, then the file name.
func extractTitle(raw *domain.RawDocument, pages []domain.Page) string {
	if title, ok := raw.Metadata["title"].(string); ok && title != "" {
		return title
	}
	for _, p := range pages {
		for _, line := range strings.Split(p.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if utf8.RuneCountInString(line) > 100 {
				return string([]rune(line)[:100]) + "..."
			}
			return line
		}
	}
	return raw.Title()
}
