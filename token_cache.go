package identity

import (
	"context"
	"sync"
	"time"
)

// BearerTokenTTL is the fixed cache lifetime of a bearer token. The cache,
// not the user record, enforces it.
const BearerTokenTTL = time.Hour

type memoryCacheEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryTokenCache is a process-local TokenCache: a key-value map with
// per-key expiry. It backs tests and single-node deployments; the Redis
// adapter is the multi-node path. Writes replace silently, so concurrent
// logins for one user degrade to last-writer-wins, which is safe because
// only one token is meaningful per user.
type MemoryTokenCache struct {
	mu      sync.Mutex
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

// NewMemoryTokenCache creates an empty in-process token cache.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{
		entries: make(map[string]memoryCacheEntry),
		now:     time.Now,
	}
}

// WithClock overrides the cache clock. Test hook.
func (c *MemoryTokenCache) WithClock(now func() time.Time) *MemoryTokenCache {
	c.now = now
	return c
}

// Set stores value under key for ttl, replacing any previous entry.
func (c *MemoryTokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryCacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Get returns the live value for key, or ErrTokenNotCached when the key is
// absent or its TTL has lapsed. Lapsed entries are reaped on read.
func (c *MemoryTokenCache) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", ErrTokenNotCached
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return "", ErrTokenNotCached
	}
	return entry.value, nil
}

// Del removes key. Deleting an absent key is not an error.
func (c *MemoryTokenCache) Del(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

var _ TokenCache = (*MemoryTokenCache)(nil)
