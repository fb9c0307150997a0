package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

// DocumentSource reads a reference document from a location.
type DocumentSource interface {
	// Open reads the document at location.
	// Returns domain.ErrSourceUnavailable if the location cannot be resolved.
	Open(ctx context.Context, location string) (*domain.RawDocument, error)
}

// SourceWatcher reports changes to a reference document.
type SourceWatcher interface {
	// Watch emits an event each time the document at location is written,
	// replaced or removed. The channel is closed when ctx is done.
	Watch(ctx context.Context, location string) (<-chan SourceChange, error)

	// Close releases resources.
	Close() error
}

// SourceChange describes one change to a watched document.
type SourceChange struct {
	// Location is the watched path.
	Location string

	// Removed is true when the document no longer exists.
	Removed bool

	// At is when the change was observed.
	At time.Time
}
