package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkstone/newsroom/internal/application/services"
	"github.com/inkstone/newsroom/internal/core/domain/apperror"
	"github.com/inkstone/newsroom/internal/core/domain/identity"
	"github.com/inkstone/newsroom/internal/infrastructure/httpserver/helpers"
	"github.com/inkstone/newsroom/test/mocks"
)

func authContext(t *testing.T, token string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func newAuthMiddleware(provider *mocks.IdentityProviderMock) *AuthMiddleware {
	return NewAuthMiddleware(provider, services.NewAccessControlService(), discardLogger())
}

func TestResolveIdentityAttachesCaller(t *testing.T) {
	who := &identity.Identity{ID: uuid.New(), Role: identity.RoleEditor, IsActive: true}
	provider := &mocks.IdentityProviderMock{
		ResolveFn: func(ctx context.Context, token string) (*identity.Identity, error) {
			assert.Equal(t, "valid-token", token)
			return who, nil
		},
	}
	m := newAuthMiddleware(provider)
	c, _ := authContext(t, "valid-token")

	require.NoError(t, m.ResolveIdentity()(okHandler)(c))
	assert.Equal(t, who, helpers.GetIdentity(c))
}

func TestResolveIdentityAnonymousPassesThrough(t *testing.T) {
	provider := &mocks.IdentityProviderMock{
		ResolveFn: func(ctx context.Context, token string) (*identity.Identity, error) {
			t.Fatal("provider must not be called without a credential")
			return nil, nil
		},
	}
	m := newAuthMiddleware(provider)
	c, rec := authContext(t, "")

	require.NoError(t, m.ResolveIdentity()(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, helpers.GetIdentity(c))
}

func TestResolveIdentityInvalidTokenStaysAnonymous(t *testing.T) {
	provider := &mocks.IdentityProviderMock{
		ResolveFn: func(ctx context.Context, token string) (*identity.Identity, error) {
			return nil, nil
		},
	}
	m := newAuthMiddleware(provider)
	c, rec := authContext(t, "garbage")

	require.NoError(t, m.ResolveIdentity()(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, helpers.GetIdentity(c))
}

func TestResolveIdentityProviderOutageFailsRequest(t *testing.T) {
	provider := &mocks.IdentityProviderMock{
		ResolveFn: func(ctx context.Context, token string) (*identity.Identity, error) {
			return nil, errors.New("profile store down")
		},
	}
	m := newAuthMiddleware(provider)
	c, _ := authContext(t, "valid-token")

	err := m.ResolveIdentity()(okHandler)(c)
	require.Error(t, err)
	appErr := apperror.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperror.CodeInternal, appErr.Code)
}

func TestRequireAuthDistinguishes401From403(t *testing.T) {
	m := newAuthMiddleware(&mocks.IdentityProviderMock{})

	// Anonymous: authentication failure.
	c, _ := authContext(t, "")
	err := m.RequireAuth()(okHandler)(c)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeUnauthorized, apperror.FromError(err).Code)

	// Authenticated but below the bar: authorization failure.
	c, _ = authContext(t, "")
	helpers.SetIdentity(c, &identity.Identity{ID: uuid.New(), Role: identity.RoleContributor, IsActive: true})
	err = m.RequireMinRole(identity.RoleEditor)(okHandler)(c)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeForbidden, apperror.FromError(err).Code)

	// Authenticated and privileged enough.
	c, rec := authContext(t, "")
	helpers.SetIdentity(c, &identity.Identity{ID: uuid.New(), Role: identity.RoleEditor, IsActive: true})
	require.NoError(t, m.RequireMinRole(identity.RoleEditor)(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
