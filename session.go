package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionTTL is the rolling lifetime of a browser session.
const SessionTTL = 24 * time.Hour

// SessionState is the server-side session record. The core only relies on
// the principal id inside it; everything else about session persistence is
// the store's business.
type SessionState struct {
	UserID   uuid.UUID `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// SessionStore persists opaque session records keyed by a browser-held
// session identifier. Get refreshes the rolling expiry. A miss (absent or
// expired) returns ErrSessionNotFound.
type SessionStore interface {
	Get(ctx context.Context, sid string) (*SessionState, error)
	Put(ctx context.Context, sid string, state *SessionState, ttl time.Duration) error
	Delete(ctx context.Context, sid string) error
}

type memorySessionEntry struct {
	state     SessionState
	ttl       time.Duration
	expiresAt time.Time
}

// MemorySessionStore is a process-local SessionStore with rolling expiry.
// Same substitution role as MemoryTokenCache.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memorySessionEntry
	now     func() time.Time
}

// NewMemorySessionStore creates an empty in-process session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memorySessionEntry),
		now:     time.Now,
	}
}

// WithClock overrides the store clock. Test hook.
func (s *MemorySessionStore) WithClock(now func() time.Time) *MemorySessionStore {
	s.now = now
	return s
}

// Get loads a live session and slides its expiry window forward.
func (s *MemorySessionStore) Get(ctx context.Context, sid string) (*SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, sid)
		return nil, ErrSessionNotFound
	}

	entry.expiresAt = s.now().Add(entry.ttl)
	// sid may be a zero-copy string over a pooled request buffer; the map
	// replaces string keys on update, so store a private copy.
	s.entries[strings.Clone(sid)] = entry

	state := entry.state
	return &state, nil
}

// Put stores the session record under sid with the given rolling ttl.
func (s *MemorySessionStore) Put(ctx context.Context, sid string, state *SessionState, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = SessionTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[strings.Clone(sid)] = memorySessionEntry{
		state:     *state,
		ttl:       ttl,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Delete invalidates the session record. Absent sessions are not an error.
func (s *MemorySessionStore) Delete(ctx context.Context, sid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sid)
	return nil
}

var _ SessionStore = (*MemorySessionStore)(nil)
