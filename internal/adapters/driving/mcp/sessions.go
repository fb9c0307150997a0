package mcp

import (
	"sync"
	"time"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

// maxSessions bounds the number of open chat sessions. The least recently
// used session is dropped when a new one would exceed it.
const maxSessions = 128

// sessionEntry holds one chat session. mu serialises turns, since a
// ConversationSession is not safe for concurrent mutation.
type sessionEntry struct {
	mu       sync.Mutex
	session  *domain.ConversationSession
	lastUsed time.Time
}

// sessionRegistry tracks the chat sessions opened through the chat tool.
type sessionRegistry struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	max     int
	now     func() time.Time
}

func newSessionRegistry(maxEntries int) *sessionRegistry {
	return &sessionRegistry{
		entries: make(map[string]*sessionEntry),
		max:     maxEntries,
		now:     time.Now,
	}
}

// add registers session, evicting the least recently used one when full.
func (r *sessionRegistry) add(session *domain.ConversationSession) *sessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.entries) >= r.max {
		r.evictOldest()
	}
	entry := &sessionEntry{session: session, lastUsed: r.now()}
	r.entries[session.ID] = entry
	return entry
}

func (r *sessionRegistry) get(id string) (*sessionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if ok {
		entry.lastUsed = r.now()
	}
	return entry, ok
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// evictOldest must be called with mu held.
func (r *sessionRegistry) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, entry := range r.entries {
		if oldestID == "" || entry.lastUsed.Before(oldest) {
			oldestID, oldest = id, entry.lastUsed
		}
	}
	if oldestID != "" {
		delete(r.entries, oldestID)
	}
}
