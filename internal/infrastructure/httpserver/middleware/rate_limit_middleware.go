package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/core/domain/apperror"
	"github.com/inkstone/newsroom/internal/core/domain/ratelimit"
	"github.com/inkstone/newsroom/internal/core/ports"
	"github.com/inkstone/newsroom/internal/infrastructure/httpserver/helpers"
)

// RateLimitMiddleware attaches a named policy to a route. Keys are derived as
// path + ":" + discriminator so exhausting one endpoint's quota never bleeds
// into another.
type RateLimitMiddleware struct {
	limiter   ports.RateLimiterService
	logger    *logrus.Logger
	enabled   bool
	decisions *prometheus.CounterVec
}

func NewRateLimitMiddleware(limiter ports.RateLimiterService, enabled bool, decisions *prometheus.CounterVec, logger *logrus.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, logger: logger, enabled: enabled, decisions: decisions}
}

// Policy applies the named preset to the wrapped route.
func (m *RateLimitMiddleware) Policy(name string) echo.MiddlewareFunc {
	policy, ok := ratelimit.Presets[name]
	if !ok {
		policy = ratelimit.Presets["standard"]
	}
	return m.WithPolicy(policy)
}

// WithPolicy applies an explicit policy to the wrapped route.
func (m *RateLimitMiddleware) WithPolicy(policy ratelimit.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !m.enabled || m.limiter == nil {
				return next(c)
			}

			key := deriveKey(c, policy.KeyBy)
			result, err := m.limiter.Check(c.Request().Context(), key, policy)
			if err != nil {
				// The limiter itself fails open; an error here is unexpected
				// but still must not block traffic.
				if m.logger != nil {
					m.logger.WithError(err).Warn("rate limit check errored; allowing request")
				}
				return next(c)
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
			header.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
			header.Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))

			if m.decisions != nil {
				outcome := "allowed"
				if !result.Allowed {
					outcome = "denied"
				}
				m.decisions.WithLabelValues(policy.Name, outcome).Inc()
			}

			if !result.Allowed {
				header.Set("Retry-After", fmt.Sprintf("%d", result.RetryAfterSeconds))
				return apperror.RateLimited(result.RetryAfterSeconds)
			}
			return next(c)
		}
	}
}

// deriveKey picks the discriminator the policy keys on. User-keyed policies
// fall back to the client IP for anonymous callers.
func deriveKey(c echo.Context, keyBy ratelimit.KeyBy) string {
	path := c.Path()
	if path == "" {
		path = c.Request().URL.Path
	}
	who := helpers.GetIdentity(c)

	var discriminator string
	switch keyBy {
	case ratelimit.KeyByUser:
		if who != nil {
			discriminator = who.ID.String()
		} else {
			discriminator = c.RealIP()
		}
	case ratelimit.KeyByAPIKey:
		discriminator = helpers.APIKey(c)
	case ratelimit.KeyByIPUser:
		discriminator = c.RealIP()
		if who != nil {
			discriminator += ":" + who.ID.String()
		}
	default: // ratelimit.KeyByIP
		discriminator = c.RealIP()
	}
	return path + ":" + discriminator
}
