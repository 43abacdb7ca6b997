package ports

import (
	"context"
	"time"
)

// KeyValueStore abstracts the backing store shared by the rate limiter and
// the cache layer. Implementations must be safe for concurrent use and should
// degrade gracefully (return an error, never panic) so callers can fall back
// to their primary data source.
type KeyValueStore interface {
	// Get returns the raw bytes for key. ok=false if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key with a TTL (0 or negative means no expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys; absence is not an error.
	Delete(ctx context.Context, keys ...string) error
	// Keys returns all live keys matching a glob pattern ('*' wildcard).
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Set-membership operations back the cache tag index.
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...string) error
}
