// Package file implements the index build lock as an exclusively created
// lock file next to the persisted index.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// Ensure BuildLock implements the interface.
var _ driven.BuildLock = (*BuildLock)(nil)

// FileName is the name of the lock file inside the index directory.
const FileName = "index.lock"

// DefaultStaleAfter is how old a lock must be before it is reclaimed.
const DefaultStaleAfter = 30 * time.Minute

const (
	reclaimSuffix   = ".reclaim"
	reclaimGuardTTL = time.Minute
)

// BuildLock guards index builds across goroutines and processes.
type BuildLock struct {
	path       string
	staleAfter time.Duration
	now        func() time.Time

	// held serialises builds inside one process even when the lock file
	// is reclaimed as stale.
	mu   sync.Mutex
	held bool
}

// Option configures a BuildLock.
type Option func(*BuildLock)

// WithStaleAfter sets the age after which an abandoned lock is reclaimed.
// Non-positive values disable reclaiming.
func WithStaleAfter(d time.Duration) Option {
	return func(l *BuildLock) {
		l.staleAfter = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *BuildLock) {
		l.now = now
	}
}

// New creates a build lock for the index directory dir.
func New(dir string, opts ...Option) (*BuildLock, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: lock directory is empty", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	l := &BuildLock{
		path:       filepath.Join(dir, FileName),
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the lock file path.
func (l *BuildLock) Path() string {
	return l.path
}

// Acquire creates the lock file. It never waits: a live lock held by any
// build returns domain.ErrBuildInProgress.
func (l *BuildLock) Acquire(ctx context.Context) (func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, fmt.Errorf("%w: %s", domain.ErrBuildInProgress, l.path)
	}

	if err := l.create(); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}
		if !l.reclaim() {
			return nil, fmt.Errorf("%w: %s", domain.ErrBuildInProgress, l.describe())
		}
		if err := l.create(); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return nil, fmt.Errorf("%w: %s", domain.ErrBuildInProgress, l.path)
			}
			return nil, fmt.Errorf("creating lock file: %w", err)
		}
	}

	l.held = true
	logger.Debug("Acquired build lock %s", l.path)

	var once sync.Once
	release := func() error {
		var err error
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.held = false
			if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				err = fmt.Errorf("removing lock file: %w", rmErr)
				return
			}
			logger.Debug("Released build lock %s", l.path)
		})
		return err
	}
	return release, nil
}

// create writes the lock file exclusively, recording owner pid and time.
func (l *BuildLock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), l.now().UTC().Format(time.RFC3339Nano))
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		_ = os.Remove(l.path)
		return err
	}
	return f.Close()
}

// reclaim removes a lock older than staleAfter and reports whether it did.
func (l *BuildLock) reclaim() bool {
	if l.staleAfter <= 0 {
		return false
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	_, acquired, err := parseLock(data)
	if err != nil {
		// Unreadable lock: fall back to the file's modification time.
		info, statErr := os.Stat(l.path)
		if statErr != nil {
			return errors.Is(statErr, fs.ErrNotExist)
		}
		acquired = info.ModTime()
	}
	if l.now().Sub(acquired) < l.staleAfter {
		return false
	}

	logger.Warn("Reclaiming stale build lock %s (acquired %s)", l.path, acquired.Format(time.RFC3339))
	return l.removeStale(data)
}

// removeStale deletes the lock file only while it still holds observed.
// Reclaimers are serialised by a guard file so a lock created by another
// reclaimer after observed was read is never removed.
func (l *BuildLock) removeStale(observed []byte) bool {
	guard := l.path + reclaimSuffix
	if err := createGuard(guard); err != nil {
		if !errors.Is(err, fs.ErrExist) || !l.clearOrphanedGuard(guard) {
			return false
		}
		if err := createGuard(guard); err != nil {
			return false
		}
	}
	defer os.Remove(guard)

	current, err := os.ReadFile(l.path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	if !bytes.Equal(current, observed) {
		logger.Debug("Build lock %s was replaced while reclaiming", l.path)
		return false
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return true
}

// clearOrphanedGuard removes a guard left behind by a reclaimer that died.
func (l *BuildLock) clearOrphanedGuard(guard string) bool {
	info, err := os.Stat(guard)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	if l.now().Sub(info.ModTime()) < reclaimGuardTTL {
		return false
	}
	logger.Warn("Removing orphaned reclaim guard %s", guard)
	err = os.Remove(guard)
	return err == nil || errors.Is(err, fs.ErrNotExist)
}

func createGuard(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}

func (l *BuildLock) describe() string {
	pid, acquired, err := readLock(l.path)
	if err != nil {
		return l.path
	}
	return fmt.Sprintf("%s held by pid %d since %s", l.path, pid, acquired.Format(time.RFC3339))
}

// readLock parses the owner pid and acquisition time from a lock file.
func readLock(path string) (int, time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, time.Time{}, err
	}
	return parseLock(data)
}

func parseLock(data []byte) (int, time.Time, error) {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		return 0, time.Time{}, errors.New("malformed lock file")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("lock pid: %w", err)
	}
	acquired, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(lines[1]))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("lock time: %w", err)
	}
	return pid, acquired, nil
}
