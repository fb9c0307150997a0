package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name     string
		location string
		home     string
		want     string
	}{
		{
			name:     "file:// URI is converted to local path",
			location: "file:///Users/test/documents/book.pdf",
			want:     "/Users/test/documents/book.pdf",
		},
		{
			name:     "file:// URI with spaces",
			location: "file:///Users/test/my documents/book.pdf",
			want:     "/Users/test/my documents/book.pdf",
		},
		{
			name:     "bare path passes through unchanged",
			location: "/Users/test/documents/book.pdf",
			want:     "/Users/test/documents/book.pdf",
		},
		{
			name:     "relative path passes through unchanged",
			location: "relative/path/book.pdf",
			want:     "relative/path/book.pdf",
		},
		{
			name:     "home directory expanded",
			location: "~/books/book.pdf",
			home:     "/home/user",
			want:     "/home/user/books/book.pdf",
		},
		{
			name:     "tilde kept without home",
			location: "~/books/book.pdf",
			want:     "~/books/book.pdf",
		},
		{
			name:     "surrounding whitespace trimmed",
			location: "  book.pdf\n",
			want:     "book.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePath(tt.location, tt.home))
		})
	}
}
