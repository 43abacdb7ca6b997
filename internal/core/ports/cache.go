package ports

import (
	"context"
	"time"
)

// CacheOptions controls how an entry is stored.
type CacheOptions struct {
	// TTL is how long the entry counts as fresh.
	TTL time.Duration
	// Tags register the entry for bulk invalidation.
	Tags []string
	// StaleWhileRevalidate extends servability past the TTL: within this
	// extra window a lookup returns the stale value immediately and refreshes
	// in the background.
	StaleWhileRevalidate time.Duration
}

// CacheLoader produces the value on a miss. The returned value must be
// JSON-marshalable.
type CacheLoader func(ctx context.Context) (any, error)

// CacheService is a cache-aside layer over a KeyValueStore. Store failures
// degrade to misses/no-ops and are never surfaced to callers; correctness
// must hold with caching disabled entirely.
type CacheService interface {
	// Aside returns the cached JSON payload for namespace/key, calling loader
	// on a miss and storing the result. On a stale-but-servable hit it
	// returns the old payload and schedules exactly one background refresh.
	// Loader errors on a cold miss are propagated and never cached.
	Aside(ctx context.Context, namespace, key string, loader CacheLoader, opts CacheOptions) ([]byte, error)

	// Get returns the cached JSON payload if present and servable.
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	// Set stores value under namespace/key and registers its tags.
	Set(ctx context.Context, namespace, key string, value any, opts CacheOptions) error
	// Delete removes one entry and scrubs it from its tags' index sets.
	Delete(ctx context.Context, namespace, key string) error

	// InvalidateByTag removes every entry registered under tag. Returns the
	// number of entries removed.
	InvalidateByTag(ctx context.Context, tag string) (int, error)
	// InvalidateByPattern removes entries in a namespace whose keys match a
	// glob pattern ('*' wildcard). Returns the number removed.
	InvalidateByPattern(ctx context.Context, namespace, pattern string) (int, error)
	// Clear removes everything under this cache's key prefix, leaving
	// unrelated keys in a shared store untouched.
	Clear(ctx context.Context) error
}
