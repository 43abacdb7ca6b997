package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkstone/newsroom/internal/core/domain/apperror"
	"github.com/inkstone/newsroom/internal/core/domain/identity"
)

func activeIdentity(role identity.Role) *identity.Identity {
	return &identity.Identity{ID: uuid.New(), Role: role, IsActive: true}
}

func errCode(t *testing.T, err error) apperror.Code {
	t.Helper()
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr), "expected apperror, got %v", err)
	return appErr.Code
}

func TestRequireAuth(t *testing.T) {
	ac := NewAccessControlService()

	assert.Equal(t, apperror.CodeUnauthorized, errCode(t, ac.RequireAuth(nil)))

	inactive := activeIdentity(identity.RoleEditor)
	inactive.IsActive = false
	assert.Equal(t, apperror.CodeForbidden, errCode(t, ac.RequireAuth(inactive)))

	assert.NoError(t, ac.RequireAuth(activeIdentity(identity.RoleReader)))
}

func TestRequireMinRole(t *testing.T) {
	ac := NewAccessControlService()

	cases := []struct {
		role identity.Role
		ok   bool
	}{
		{identity.RoleReader, false},
		{identity.RoleContributor, false},
		{identity.RoleEditor, true},
		{identity.RoleAdmin, true},
		{identity.RoleSuperAdmin, true},
		{identity.Role("moderator"), false}, // unknown roles never qualify
	}
	for _, tc := range cases {
		err := ac.RequireMinRole(activeIdentity(tc.role), identity.RoleEditor)
		if tc.ok {
			assert.NoError(t, err, "role %s", tc.role)
		} else {
			assert.Equal(t, apperror.CodeForbidden, errCode(t, err), "role %s", tc.role)
		}
	}

	// Missing identity is an authentication failure, not an authorization one.
	assert.Equal(t, apperror.CodeUnauthorized, errCode(t, ac.RequireMinRole(nil, identity.RoleEditor)))
}

func TestRequireOwnershipOrRole(t *testing.T) {
	ac := NewAccessControlService()
	owner := activeIdentity(identity.RoleContributor)

	assert.NoError(t, ac.RequireOwnershipOrRole(owner, owner.ID, identity.RoleEditor))

	stranger := activeIdentity(identity.RoleContributor)
	assert.Equal(t, apperror.CodeForbidden, errCode(t, ac.RequireOwnershipOrRole(stranger, owner.ID, identity.RoleEditor)))

	editor := activeIdentity(identity.RoleEditor)
	assert.NoError(t, ac.RequireOwnershipOrRole(editor, owner.ID, identity.RoleEditor))
}
