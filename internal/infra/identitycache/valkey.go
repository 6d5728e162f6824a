// Package identitycache implements C2's identity.TTLCache: a Valkey-backed
// token-to-Viewer cache grounded on the teacher's ValkeyStore, plus an
// in-memory fallback for local runs and tests.
package identitycache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/moe-gov/beacon/internal/domain/identity"
)

// ValkeyCache is C2's resolved-token cache (spec §4.2: "resolved viewers are
// cached for cacheTtl, keyed on the raw token"). The TTL is fixed at
// construction time since identity.TTLCache.Set carries no per-call TTL.
type ValkeyCache struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyCache constructs the cache adapter.
func NewValkeyCache(client valkey.Client, prefix string, ttl time.Duration) *ValkeyCache {
	if prefix == "" {
		prefix = "viewer"
	}
	return &ValkeyCache{client: client, prefix: prefix, ttl: ttl}
}

var _ identity.TTLCache = (*ValkeyCache)(nil)

func (c *ValkeyCache) Get(ctx context.Context, token string) (identity.Viewer, bool, error) {
	cmd := c.client.B().Get().Key(c.key(token)).Build()
	payload, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return identity.Viewer{}, false, nil
		}
		return identity.Viewer{}, false, err
	}
	var v identity.Viewer
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return identity.Viewer{}, false, err
	}
	return v, true, nil
}

func (c *ValkeyCache) Set(ctx context.Context, token string, viewer identity.Viewer) error {
	payload, err := json.Marshal(viewer)
	if err != nil {
		return err
	}
	builder := c.client.B().Set().Key(c.key(token)).Value(string(payload))
	var cmd valkey.Completed
	if c.ttl > 0 {
		ttl := c.ttl
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return c.client.Do(ctx, cmd).Error()
}

func (c *ValkeyCache) key(token string) string {
	return c.prefix + ":" + token
}
