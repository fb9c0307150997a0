// Package pdf extracts page text from PDF reference documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles PDF documents. It emits one page per PDF page in
// source order; pages without text are kept as empty pages so page
// indices match the source.
type Normaliser struct{}

// New creates a new PDF normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the plain text of every page.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (doc *domain.Document, err error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %s: %v", domain.ErrSourceUnreadable, raw.URI, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnreadable, raw.URI, err)
	}

	total := reader.NumPage()
	pages := make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := pageText(reader.Page(i))
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %w", domain.ErrSourceUnreadable, raw.URI, i, err)
		}
		pages = append(pages, domain.Page{Index: i - 1, Text: text})
	}
	logger.Debug("Extracted %d pages from %s", total, raw.URI)

	meta := raw.CopyMetadata()
	meta["page_count"] = total

	return &domain.Document{
		ID:       raw.Identity(),
		URI:      raw.URI,
		Title:    extractTitle(reader, raw, pages),
		Pages:    pages,
		Metadata: meta,
	}, nil
}

func pageText(p pdf.Page) (string, error) {
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// extractTitle prefers metadata, then the PDF Info title, then the first
// non-empty line, then the file name.
func extractTitle(reader *pdf.Reader, raw *domain.RawDocument, pages []domain.Page) string {
	if title, ok := raw.Metadata["title"].(string); ok && title != "" {
		return title
	}
	if title := strings.TrimSpace(reader.Trailer().Key("Info").Key("Title").Text()); title != "" {
		return title
	}
	for _, p := range pages {
		line, _, _ := strings.Cut(p.Text, "\n")
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return raw.Title()
}
