package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/core/domain/identity"
	"github.com/inkstone/newsroom/internal/infrastructure/db"
)

// ProfileRepository reads identity snapshots from Postgres. It is the
// external identity/profile source: the role column is read fresh on every
// request so bans and promotions bite immediately.
type ProfileRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewProfileRepository(database *db.Database, logger *logrus.Logger) *ProfileRepository {
	return &ProfileRepository{db: database, logger: logger}
}

type profileRow struct {
	ID          uuid.UUID     `db:"id"`
	Email       string        `db:"email"`
	Role        identity.Role `db:"role"`
	DisplayName string        `db:"display_name"`
	AvatarURL   *string       `db:"avatar_url"`
	Bio         *string       `db:"bio"`
	IsActive    bool          `db:"is_active"`
	CreatedAt   time.Time     `db:"created_at"`
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error) {
	var row profileRow
	query := `SELECT id, email, role, display_name, avatar_url, bio, is_active, created_at FROM profiles WHERE id = $1`
	if err := r.db.DB.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &identity.Identity{
		ID:    row.ID,
		Email: row.Email,
		Role:  row.Role,
		Profile: &identity.Profile{
			DisplayName: row.DisplayName,
			AvatarURL:   row.AvatarURL,
			Bio:         row.Bio,
		},
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
	}, nil
}
