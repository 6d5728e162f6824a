package identitycache

import (
	"context"
	"sync"
	"time"

	"github.com/moe-gov/beacon/internal/domain/identity"
)

type entry struct {
	viewer  identity.Viewer
	expires time.Time
}

// MemoryCache is C2's in-process fallback TTLCache, used when no cache
// endpoint is configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
}

// NewMemoryCache constructs an empty in-memory TTL cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry), ttl: ttl}
}

var _ identity.TTLCache = (*MemoryCache)(nil)

func (c *MemoryCache) Get(ctx context.Context, key string) (identity.Viewer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return identity.Viewer{}, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(c.entries, key)
		return identity.Viewer{}, false, nil
	}
	return e.viewer, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, viewer identity.Viewer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expires time.Time
	if c.ttl > 0 {
		expires = time.Now().Add(c.ttl)
	}
	c.entries[key] = entry{viewer: viewer, expires: expires}
	return nil
}
