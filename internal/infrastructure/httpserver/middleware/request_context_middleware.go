package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/infrastructure/httpserver/helpers"
)

// RequestContextMiddleware opens and closes the per-request correlation
// record. It is the outermost custom stage of the governor: everything that
// runs after it can rely on the context being present, and teardown runs even
// when a later stage or the handler fails.
type RequestContextMiddleware struct {
	logger *logrus.Logger
}

func NewRequestContextMiddleware(logger *logrus.Logger) *RequestContextMiddleware {
	return &RequestContextMiddleware{logger: logger}
}

func (m *RequestContextMiddleware) Handler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rc := helpers.NewRequestContext(c)
			helpers.SetRequestContext(c, rc)
			defer func() {
				if m.logger != nil {
					fields := logrus.Fields{
						"request_id": rc.RequestID,
						"method":     rc.Method,
						"path":       rc.Path,
						"ip":         rc.IP,
						"duration":   time.Since(rc.StartedAt).String(),
						"status":     c.Response().Status,
					}
					if rc.UserID != nil {
						fields["user_id"] = rc.UserID.String()
					}
					m.logger.WithFields(fields).Debug("request completed")
				}
				helpers.ClearRequestContext(c)
			}()
			return next(c)
		}
	}
}
