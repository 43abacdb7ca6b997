package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkstone/newsroom/internal/core/domain/apperror"
)

func originRequest(t *testing.T, method, origin string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/api/v1/posts", nil)
	if origin != "" {
		req.Header.Set(echo.HeaderOrigin, origin)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestOriginCheckAllowsListedOrigin(t *testing.T) {
	m := NewOriginCheckMiddleware([]string{"https://app.example.com"})
	c := originRequest(t, http.MethodPost, "https://app.example.com")
	require.NoError(t, m.Handler()(okHandler)(c))
}

func TestOriginCheckRejectsForeignOrigin(t *testing.T) {
	m := NewOriginCheckMiddleware([]string{"https://app.example.com"})
	c := originRequest(t, http.MethodPost, "https://evil.example.net")

	err := m.Handler()(okHandler)(c)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeForbidden, apperror.FromError(err).Code)
}

func TestOriginCheckIgnoresReads(t *testing.T) {
	m := NewOriginCheckMiddleware([]string{"https://app.example.com"})
	c := originRequest(t, http.MethodGet, "https://evil.example.net")
	require.NoError(t, m.Handler()(okHandler)(c))
}

func TestOriginCheckAllowsRequestsWithoutOrigin(t *testing.T) {
	m := NewOriginCheckMiddleware([]string{"https://app.example.com"})
	c := originRequest(t, http.MethodPost, "")
	require.NoError(t, m.Handler()(okHandler)(c))
}

func TestOriginCheckDisabledWithEmptyAllowlist(t *testing.T) {
	m := NewOriginCheckMiddleware(nil)
	c := originRequest(t, http.MethodDelete, "https://evil.example.net")
	require.NoError(t, m.Handler()(okHandler)(c))
}

func TestOriginCheckNormalizesTrailingSlash(t *testing.T) {
	m := NewOriginCheckMiddleware([]string{"https://app.example.com/"})
	c := originRequest(t, http.MethodPost, "https://app.example.com")
	require.NoError(t, m.Handler()(okHandler)(c))
}
