package httpserver

import (
	"github.com/labstack/echo/v4/middleware"
)

// setupMiddleware wires the governor chain. Order is fixed: request context
// opens first and closes last, the origin check runs before any identity
// work, identity resolution runs before per-route rate limits so user-keyed
// policies see who is calling. Per-route stages (rate limit policies, role
// requirements) attach in setupRoutes.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.CORS())
	s.echo.Use(middleware.Secure())

	s.echo.Use(s.middleware.RequestContext.Handler())
	s.echo.Use(s.middleware.Metrics.CollectHTTPMetrics())
	s.echo.Use(s.middleware.Logging.RequestLogging())
	s.echo.Use(s.middleware.OriginCheck.Handler())
	s.echo.Use(s.middleware.Auth.ResolveIdentity())
}
