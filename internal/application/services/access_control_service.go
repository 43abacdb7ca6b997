package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/inkstone/newsroom/internal/core/domain/apperror"
	"github.com/inkstone/newsroom/internal/core/domain/identity"
	"github.com/inkstone/newsroom/internal/core/ports"
)

// AccessControlService implements ports.AccessControlService. All failures
// are typed apperror values; unauthenticated and forbidden stay distinct
// because client retry behavior differs (re-authenticate vs give up).
type AccessControlService struct{}

func NewAccessControlService() ports.AccessControlService {
	return &AccessControlService{}
}

func (a *AccessControlService) RequireAuth(who *identity.Identity) error {
	if who == nil {
		return apperror.Unauthorized("authentication required")
	}
	if !who.IsActive {
		return apperror.Forbidden("account is deactivated")
	}
	return nil
}

func (a *AccessControlService) RequireMinRole(who *identity.Identity, min identity.Role) error {
	if err := a.RequireAuth(who); err != nil {
		return err
	}
	if !who.Role.AtLeast(min) {
		return apperror.Forbidden(fmt.Sprintf("requires %s role or above", min))
	}
	return nil
}

func (a *AccessControlService) RequireOwnershipOrRole(who *identity.Identity, ownerID uuid.UUID, min identity.Role) error {
	if err := a.RequireAuth(who); err != nil {
		return err
	}
	if who.ID == ownerID {
		return nil
	}
	if !who.Role.AtLeast(min) {
		return apperror.Forbidden("not the resource owner and insufficient role")
	}
	return nil
}
