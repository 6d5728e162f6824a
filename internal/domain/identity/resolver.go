package identity

import "context"

// Resolver is C2's external contract: given an opaque caller token, resolve
// the viewer or fail with Unauthenticated/Unauthorized (spec §4.2). The HTTP
// layer that extracts the bearer token from a request is an out-of-scope
// collaborator (spec §1); everything downstream of "I have a token string"
// lives here.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Viewer, error)
}

// TTLCache is the minimal cache contract the caching decorator needs. A
// concrete adapter (internal/infra/identitycache) backs it with Valkey,
// or with an in-process map (identitycache.MemoryCache) as the fallback.
type TTLCache interface {
	Get(ctx context.Context, key string) (Viewer, bool, error)
	Set(ctx context.Context, key string, v Viewer) error
}
