package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/infrastructure/httpserver/helpers"
)

type LoggingMiddleware struct {
	logger *logrus.Logger
}

func NewLoggingMiddleware(logger *logrus.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

func (m *LoggingMiddleware) RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m.logger != nil {
				fields := logrus.Fields{"method": c.Request().Method, "path": c.Path()}
				if rc, ok := helpers.GetRequestContext(c); ok {
					fields["request_id"] = rc.RequestID
				}
				m.logger.WithFields(fields).Debug("incoming request")
			}
			return next(c)
		}
	}
}
