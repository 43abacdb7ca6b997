package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkstone/newsroom/internal/application/services"
	"github.com/inkstone/newsroom/internal/core/domain/identity"
	"github.com/inkstone/newsroom/internal/core/domain/post"
	"github.com/inkstone/newsroom/internal/core/domain/ratelimit"
	"github.com/inkstone/newsroom/internal/infrastructure/kv"
	"github.com/inkstone/newsroom/test/mocks"
)

// newTestServer wires a full server over in-memory infrastructure. Tokens map
// straight to identities so tests pick a caller by role.
func newTestServer(t *testing.T, repo *mocks.PostRepositoryMock, limiter *mocks.RateLimiterMock) *Server {
	t.Helper()

	identities := map[string]*identity.Identity{
		"reader-token":      {ID: uuid.New(), Role: identity.RoleReader, IsActive: true},
		"contributor-token": {ID: uuid.New(), Role: identity.RoleContributor, IsActive: true},
		"editor-token":      {ID: uuid.New(), Role: identity.RoleEditor, IsActive: true},
		"admin-token":       {ID: uuid.New(), Role: identity.RoleAdmin, IsActive: true},
	}
	provider := &mocks.IdentityProviderMock{
		ResolveFn: func(ctx context.Context, token string) (*identity.Identity, error) {
			return identities[token], nil
		},
	}

	logger := quietLogger()
	cache := services.NewCacheService(kv.NewMemoryStore(), nil, logger, "newsroom")
	gate := services.NewAccessControlService()

	return NewServer(&ServerConfig{
		Host:             "127.0.0.1",
		Port:             "0",
		Environment:      "test",
		RateLimitEnabled: true,
		AllowedOrigins:   []string{"https://app.example.com"},
	}, logger, ServerDeps{
		PostService:      services.NewPostService(repo, cache, gate, logger),
		CacheService:     cache,
		IdentityProvider: provider,
		AccessControl:    gate,
		RateLimiter:      limiter,
	})
}

func doRequest(s *Server, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	return body.Error.Code
}

func TestServerGetPost(t *testing.T) {
	p := &post.Post{ID: uuid.New(), AuthorID: uuid.New(), Title: "Hello", Slug: "hello", Status: post.StatusPublished}
	repo := &mocks.PostRepositoryMock{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*post.Post, error) {
			return p, nil
		},
	}
	s := newTestServer(t, repo, &mocks.RateLimiterMock{})

	rec := doRequest(s, http.MethodGet, "/api/v1/posts/"+p.ID.String(), "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool      `json:"success"`
		Data    post.Post `json:"data"`
		Meta    struct {
			RequestID string `json:"requestId"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Hello", body.Data.Title)
	assert.NotEmpty(t, body.Meta.RequestID)
}

func TestServerCreatePostRoleLadder(t *testing.T) {
	repo := &mocks.PostRepositoryMock{}
	s := newTestServer(t, repo, &mocks.RateLimiterMock{})
	body := `{"title":"Hello","slug":"hello","body":"world"}`

	rec := doRequest(s, http.MethodPost, "/api/v1/posts", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	rec = doRequest(s, http.MethodPost, "/api/v1/posts", "reader-token", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))

	rec = doRequest(s, http.MethodPost, "/api/v1/posts", "contributor-token", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestServerCreatePostValidation(t *testing.T) {
	s := newTestServer(t, &mocks.PostRepositoryMock{}, &mocks.RateLimiterMock{})

	rec := doRequest(s, http.MethodPost, "/api/v1/posts", "contributor-token", `{"slug":"hello"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestServerPublishNeedsEditor(t *testing.T) {
	p := &post.Post{ID: uuid.New(), AuthorID: uuid.New(), Status: post.StatusPending}
	repo := &mocks.PostRepositoryMock{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*post.Post, error) {
			cp := *p
			return &cp, nil
		},
	}
	s := newTestServer(t, repo, &mocks.RateLimiterMock{})
	target := "/api/v1/posts/" + p.ID.String() + "/publish"

	rec := doRequest(s, http.MethodPost, target, "contributor-token", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(s, http.MethodPost, target, "editor-token", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerRateLimitDenial(t *testing.T) {
	limiter := &mocks.RateLimiterMock{
		CheckFn: func(ctx context.Context, key string, policy ratelimit.Policy) (ratelimit.Result, error) {
			return ratelimit.Result{Allowed: false, Limit: 300, Remaining: 0, ResetAt: time.Now().Add(time.Minute), RetryAfterSeconds: 60}, nil
		},
	}
	s := newTestServer(t, &mocks.PostRepositoryMock{}, limiter)

	rec := doRequest(s, http.MethodGet, "/api/v1/posts", "", "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "300", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestServerOriginCheckBlocksForeignWrites(t *testing.T) {
	s := newTestServer(t, &mocks.PostRepositoryMock{}, &mocks.RateLimiterMock{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example.net")
	req.Header.Set(echo.HeaderAuthorization, "Bearer contributor-token")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServerAdminCacheInvalidate(t *testing.T) {
	s := newTestServer(t, &mocks.PostRepositoryMock{}, &mocks.RateLimiterMock{})

	rec := doRequest(s, http.MethodPost, "/api/v1/admin/cache/invalidate", "editor-token", `{"tag":"all:posts"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/v1/admin/cache/invalidate", "admin-token", `{"tag":"all:posts"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/v1/admin/cache/invalidate", "admin-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestServerUnknownRouteEnvelope(t *testing.T) {
	s := newTestServer(t, &mocks.PostRepositoryMock{}, &mocks.RateLimiterMock{})

	rec := doRequest(s, http.MethodGet, "/api/v1/nope", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestServerHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &mocks.PostRepositoryMock{}, &mocks.RateLimiterMock{})

	rec := doRequest(s, http.MethodGet, "/health", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "newsroom", body["service"])
}
