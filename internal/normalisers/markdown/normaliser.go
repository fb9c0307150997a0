package markdown

import (
	"bytes"
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
// Each level-1 heading starts a new page.
type Normaliser struct {
	md goldmark.Markdown
}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{md: goldmark.New()}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise parses markdown and renders each section as plain text.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	src := raw.Content
	root := n.md.Parser().Parse(text.NewReader(src))

	var (
		pages []domain.Page
		title string
		buf   bytes.Buffer
	)
	flush := func() {
		if t := strings.TrimSpace(buf.String()); t != "" {
			pages = append(pages, domain.Page{Index: len(pages), Text: t})
		}
		buf.Reset()
	}

	for block := root.FirstChild(); block != nil; block = block.NextSibling() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if h, ok := block.(*ast.Heading); ok && h.Level == 1 {
			flush()
			if title == "" {
				title = strings.TrimSpace(renderText(h, src))
			}
		}
		buf.WriteString(renderText(block, src))
		buf.WriteString("\n\n")
	}
	flush()

	if len(pages) == 0 {
		pages = []domain.Page{{Index: 0}}
	}
	if t, ok := raw.Metadata["title"].(string); ok && t != "" {
		title = t
	}
	if title == "" {
		title = raw.Title()
	}

	meta := raw.CopyMetadata()
	meta["format"] = "markdown"

	return &domain.Document{
		ID:       raw.Identity(),
		URI:      raw.URI,
		Title:    title,
		Pages:    pages,
		Metadata: meta,
	}, nil
}

// renderText flattens a block node into plain text.
// Code is kept verbatim, raw HTML is dropped and links keep their label.
func renderText(node ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(v.Value(src))
				if v.SoftLineBreak() || v.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(v.Value)
			}
		case *ast.AutoLink:
			if entering {
				buf.Write(v.Label(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		default:
			if !entering && n != node && n.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimRight(buf.String(), "\n")
}
