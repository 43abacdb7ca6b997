package ports

import (
	"context"

	"github.com/inkstone/newsroom/internal/core/domain/ratelimit"
)

// RateLimiterService decides whether a request identified by key may proceed
// under policy. Checking consumes one unit of quota; there is no peek.
// Implementations MUST be safe for concurrent use and MUST fail open (allow,
// with a logged degraded-mode event) when the backing store is unavailable.
type RateLimiterService interface {
	Check(ctx context.Context, key string, policy ratelimit.Policy) (ratelimit.Result, error)
}
