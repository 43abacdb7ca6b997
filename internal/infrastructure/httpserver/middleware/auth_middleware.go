package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/core/domain/apperror"
	"github.com/inkstone/newsroom/internal/core/domain/identity"
	"github.com/inkstone/newsroom/internal/core/ports"
	"github.com/inkstone/newsroom/internal/infrastructure/httpserver/helpers"
)

// AuthMiddleware resolves the caller once per request and enforces role
// requirements. Resolution is deliberately per-request: role data is read
// fresh so a ban or promotion takes effect on the very next call.
type AuthMiddleware struct {
	provider ports.IdentityProvider
	gate     ports.AccessControlService
	logger   *logrus.Logger
}

func NewAuthMiddleware(provider ports.IdentityProvider, gate ports.AccessControlService, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{provider: provider, gate: gate, logger: logger}
}

// ResolveIdentity attaches the caller's identity when a valid credential is
// present, and lets anonymous requests straight through. It never rejects.
func (m *AuthMiddleware) ResolveIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := helpers.BearerToken(c)
			if token == "" {
				return next(c)
			}
			who, err := m.provider.Resolve(c.Request().Context(), token)
			if err != nil {
				// Identity source outage: the caller presented a credential we
				// cannot verify either way, so fail the request, don't guess.
				return apperror.Internal("failed to resolve identity", err)
			}
			if who != nil {
				helpers.SetIdentity(c, who)
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"user_id": who.ID, "role": who.Role}).Debug("identity resolved")
				}
			}
			return next(c)
		}
	}
}

// RequireAuth rejects anonymous requests with an unauthenticated error.
func (m *AuthMiddleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := m.gate.RequireAuth(helpers.GetIdentity(c)); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireMinRole rejects callers below min in the role hierarchy. The
// unauthenticated case stays distinct from the underprivileged one: clients
// re-authenticate on 401 and give up on 403.
func (m *AuthMiddleware) RequireMinRole(min identity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := m.gate.RequireMinRole(helpers.GetIdentity(c), min); err != nil {
				return err
			}
			return next(c)
		}
	}
}
