package identity

import (
	"time"

	"github.com/google/uuid"
)

// Role is an author's position in the newsroom hierarchy.
type Role string

const (
	RoleReader      Role = "reader"
	RoleContributor Role = "contributor"
	RoleEditor      Role = "editor"
	RoleAdmin       Role = "admin"
	RoleSuperAdmin  Role = "superadmin"
)

// roleRank defines the total order over roles. Higher rank means more privilege.
var roleRank = map[Role]int{
	RoleReader:      0,
	RoleContributor: 1,
	RoleEditor:      2,
	RoleAdmin:       3,
	RoleSuperAdmin:  4,
}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r sits at or above min in the hierarchy.
// Unknown roles never satisfy any requirement.
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	mr, ok := roleRank[min]
	if !ok {
		return false
	}
	return rr >= mr
}

// Profile holds display fields attached to an identity.
type Profile struct {
	DisplayName string  `json:"display_name" db:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty" db:"avatar_url"`
	Bio         *string `json:"bio,omitempty" db:"bio"`
}

// Identity is the caller resolved for a single request. It is a read-only
// snapshot: role changes take effect on the next request, not this one.
type Identity struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Profile   *Profile  `json:"profile,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
