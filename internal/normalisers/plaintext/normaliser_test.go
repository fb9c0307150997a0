package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, &Normaliser{}, normaliser)
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"text/plain"}, New().SupportedMIMETypes())
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 5, New().Priority())
}

func TestNormalise_SinglePage(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "/path/to/notes.txt",
		MIMEType: "text/plain",
		Content:  []byte("Fever is a rise in body temperature."),
	}

	doc, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "notes", doc.ID)
	assert.Equal(t, raw.URI, doc.URI)
	assert.Equal(t, "Fever is a rise in body temperature.", doc.Title)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, domain.Page{Index: 0, Text: "Fever is a rise in body temperature."}, doc.Pages[0])
	assert.Equal(t, "text/plain", doc.Metadata["mime_type"])
}

func TestNormalise_FormFeedPages(t *testing.T) {
	raw := &domain.RawDocument{
		URI:        "/path/book.txt",
		DocumentID: "doc",
		Content:    []byte("Page one.\r\n\fPage two.\f\fPage four."),
	}

	doc, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "doc", doc.ID)
	require.Len(t, doc.Pages, 4)
	assert.Equal(t, "Page one.", doc.Pages[0].Text)
	assert.Equal(t, "Page two.", doc.Pages[1].Text)
	assert.Empty(t, doc.Pages[2].Text)
	assert.Equal(t, 3, doc.Pages[3].Index)
}

func TestNormalise_EmptyContent(t *testing.T) {
	raw := &domain.RawDocument{URI: "/path/to/empty_file.txt", Content: []byte("")}

	doc, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	assert.Empty(t, doc.Pages[0].Text)
	assert.Equal(t, "empty file", doc.Title)
}

func TestNormalise_InvalidUTF8(t *testing.T) {
	raw := &domain.RawDocument{URI: "/bin.txt", Content: []byte{0xff, 0xfe, 0xfd}}

	_, err := New().Normalise(context.Background(), raw)

	assert.ErrorIs(t, err, domain.ErrSourceUnreadable)
}

func TestNormalise_NilDocument(t *testing.T) {
	doc, err := New().Normalise(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, doc)
}

func TestNormalise_MetadataTitle(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "/x.txt",
		Content:  []byte("body"),
		Metadata: map[string]any{"title": "Reference"},
	}

	doc, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "Reference", doc.Title)
	assert.Equal(t, "Reference", doc.Metadata["title"])
}
