package helpers

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inkstone/newsroom/internal/core/domain/identity"
)

// RequestContext is the per-request correlation record. It is created by the
// governor before anything else runs and torn down after the response is
// written; handlers receive it through the echo context, never through
// globals, so concurrent requests cannot leak into each other.
type RequestContext struct {
	RequestID string
	Method    string
	Path      string
	IP        string
	UserID    *uuid.UUID
	StartedAt time.Time
}

func NewRequestContext(c echo.Context) *RequestContext {
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &RequestContext{
		RequestID: requestID,
		Method:    c.Request().Method,
		Path:      c.Request().URL.Path,
		IP:        c.RealIP(),
		StartedAt: time.Now(),
	}
}

func SetRequestContext(c echo.Context, rc *RequestContext) {
	c.Set(RequestContextKey, rc)
}

func GetRequestContext(c echo.Context) (*RequestContext, bool) {
	rc, ok := c.Get(RequestContextKey).(*RequestContext)
	return rc, ok && rc != nil
}

// ClearRequestContext is the teardown half of the request lifecycle.
func ClearRequestContext(c echo.Context) {
	c.Set(RequestContextKey, nil)
}

// SetIdentity stores the resolved caller and stamps its id onto the request
// context for log correlation.
func SetIdentity(c echo.Context, who *identity.Identity) {
	c.Set(IdentityKey, who)
	if who != nil {
		if rc, ok := GetRequestContext(c); ok {
			id := who.ID
			rc.UserID = &id
		}
	}
}

// GetIdentity returns the resolved caller, or nil for anonymous requests.
func GetIdentity(c echo.Context) *identity.Identity {
	who, _ := c.Get(IdentityKey).(*identity.Identity)
	return who
}

// BearerToken extracts the bearer credential from the Authorization header.
// An absent or malformed header yields "", which resolves as anonymous.
func BearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// APIKey returns the caller's API key header value, or "none".
func APIKey(c echo.Context) string {
	if key := c.Request().Header.Get("X-API-Key"); key != "" {
		return key
	}
	return "none"
}
