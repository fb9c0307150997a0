// Package filesystem reads reference documents from local disk and watches
// them for changes.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// Verify interface compliance.
var (
	_ driven.DocumentSource = (*Connector)(nil)
	_ driven.SourceWatcher  = (*Connector)(nil)
)

// Connector reads documents from the local filesystem.
type Connector struct {
	documentID string
	home       string

	mu       sync.Mutex
	watchers []*fsnotify.Watcher
	closed   bool
}

// Option configures a Connector.
type Option func(*Connector)

// WithDocumentID overrides the document identity derived from the file name.
func WithDocumentID(id string) Option {
	return func(c *Connector) {
		c.documentID = id
	}
}

// WithHomeDir sets the directory a leading ~/ expands to.
func WithHomeDir(home string) Option {
	return func(c *Connector) {
		c.home = home
	}
}

// New creates a filesystem connector.
func New(opts ...Option) *Connector {
	c := &Connector{}
	if home, err := os.UserHomeDir(); err == nil {
		c.home = home
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open reads the file at location.
func (c *Connector) Open(ctx context.Context, location string) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := ResolvePath(location, c.home)
	if path == "" {
		return nil, fmt.Errorf("%w: empty location", domain.ErrSourceUnavailable)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrSourceUnavailable, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrSourceUnreadable, path, err)
	}
	logger.Debug("Read %s (%d bytes)", path, len(content))

	return &domain.RawDocument{
		URI:        path,
		MIMEType:   detectMIMEType(path),
		Content:    content,
		DocumentID: c.documentID,
		Metadata: map[string]any{
			"size":     info.Size(),
			"mod_time": info.ModTime(),
		},
	}, nil
}

// Watch emits a change each time the file at location is written,
// replaced or removed. The parent directory is watched so that editors
// replacing the file by rename are observed.
func (c *Connector) Watch(ctx context.Context, location string) (<-chan driven.SourceChange, error) {
	path, err := filepath.Abs(ResolvePath(location, c.home))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("connector closed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("%w: watch %s: %w", domain.ErrSourceUnavailable, path, err)
	}
	c.watchers = append(c.watchers, watcher)

	changes := make(chan driven.SourceChange)
	go c.watchLoop(ctx, watcher, path, changes)
	return changes, nil
}

func (c *Connector) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, changes chan<- driven.SourceChange) {
	defer close(changes)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			change := handleFsEvent(path, event)
			if change == nil {
				continue
			}
			logger.Debug("Source change: %s %s", event.Op, event.Name)
			select {
			case changes <- *change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watch %s: %v", path, err)
		}
	}
}

// handleFsEvent maps an fsnotify event to a change of the watched file.
// Events for other files and chmod-only events are ignored.
func handleFsEvent(path string, event fsnotify.Event) *driven.SourceChange {
	if filepath.Clean(event.Name) != path {
		return nil
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &driven.SourceChange{Location: path, Removed: true, At: time.Now()}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return &driven.SourceChange{Location: path, At: time.Now()}
	default:
		return nil
	}
}

// Close stops all watchers.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	var errs []error
	for _, w := range c.watchers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.watchers = nil
	return errors.Join(errs...)
}

// detectMIMEType returns the MIME type for a file based on its extension.
func detectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case "":
		return "text/plain"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt", ".text":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}
