package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/inkstone/newsroom/internal/core/domain/identity"
)

// IdentityProvider resolves the caller behind a bearer credential. Resolution
// happens once per request and is never memoized across requests, so bans and
// promotions take effect on the very next call.
type IdentityProvider interface {
	// Resolve returns the identity for token, or nil (with nil error) when the
	// token is absent/invalid. It never fails the request on its own.
	Resolve(ctx context.Context, token string) (*identity.Identity, error)
}

// ProfileRepository is the external identity/profile source the provider
// reads from.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error)
}

// AccessControlService enforces the role hierarchy and resource-ownership
// rules. It returns typed apperror values the HTTP boundary translates:
// missing identity maps to 401, insufficient role/ownership to 403.
type AccessControlService interface {
	// RequireAuth fails with an unauthenticated error when who is nil or inactive.
	RequireAuth(who *identity.Identity) error
	// RequireMinRole fails unless who holds min or a higher role.
	RequireMinRole(who *identity.Identity, min identity.Role) error
	// RequireOwnershipOrRole passes when who owns the resource or holds min
	// or a higher role.
	RequireOwnershipOrRole(who *identity.Identity, ownerID uuid.UUID, min identity.Role) error
}
