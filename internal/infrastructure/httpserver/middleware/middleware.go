package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/core/ports"
)

// Collection holds all middleware instances in governor order. The server
// applies them in a fixed sequence: request context, origin check, identity
// resolution, then per-route rate limit and role requirements.
type Collection struct {
	RequestContext *RequestContextMiddleware
	OriginCheck    *OriginCheckMiddleware
	Auth           *AuthMiddleware
	RateLimit      *RateLimitMiddleware
	Logging        *LoggingMiddleware
	Metrics        *MetricsMiddleware
}

// CollectionDeps groups what the middleware stack needs from the rest of the
// application.
type CollectionDeps struct {
	IdentityProvider ports.IdentityProvider
	AccessControl    ports.AccessControlService
	RateLimiter      ports.RateLimiterService
	RateLimitEnabled bool
	AllowedOrigins   []string
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RateLimitMetric  *prometheus.CounterVec
}

// NewCollection creates a new collection of all middleware.
func NewCollection(deps CollectionDeps, logger *logrus.Logger) *Collection {
	return &Collection{
		RequestContext: NewRequestContextMiddleware(logger),
		OriginCheck:    NewOriginCheckMiddleware(deps.AllowedOrigins),
		Auth:           NewAuthMiddleware(deps.IdentityProvider, deps.AccessControl, logger),
		RateLimit:      NewRateLimitMiddleware(deps.RateLimiter, deps.RateLimitEnabled, deps.RateLimitMetric, logger),
		Logging:        NewLoggingMiddleware(logger),
		Metrics:        NewMetricsMiddleware(deps.RequestsTotal, deps.RequestDuration),
	}
}
