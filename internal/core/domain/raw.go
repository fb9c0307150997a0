package domain

import (
	"path/filepath"
	"strings"
)

// RawDocument represents opaque bytes read from a reference source.
// It is the source's output before normalisation.
type RawDocument struct {
	// URI is the original location (file path).
	URI string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// DocumentID overrides the derived document identity when set.
	DocumentID string

	// Metadata contains source-specific key-value pairs.
	Metadata map[string]any
}

// Identity returns the document identity for this raw document.
// It is DocumentID when set, otherwise the file name without its extension.
func (r *RawDocument) Identity() string {
	if r.DocumentID != "" {
		return r.DocumentID
	}
	name := filepath.Base(r.URI)
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// Title returns metadata["title"] when present, otherwise a readable form
// of the file name.
func (r *RawDocument) Title() string {
	if title, ok := r.Metadata["title"].(string); ok && title != "" {
		return title
	}
	name := strings.TrimSuffix(filepath.Base(r.URI), filepath.Ext(r.URI))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}

// CopyMetadata returns a shallow copy of the raw metadata with the MIME
// type recorded.
func (r *RawDocument) CopyMetadata() map[string]any {
	dst := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		dst[k] = v
	}
	dst["mime_type"] = r.MIMEType
	return dst
}
