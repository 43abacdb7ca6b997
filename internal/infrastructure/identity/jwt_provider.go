package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domain "github.com/inkstone/newsroom/internal/core/domain/identity"
	"github.com/inkstone/newsroom/internal/core/ports"
)

// JWTProvider resolves a bearer token to an identity snapshot. The token only
// proves who the caller is; the role comes from the profile store on every
// request, never from the token, so a role change cannot outlive its claim.
type JWTProvider struct {
	secret   []byte
	profiles ports.ProfileRepository
	logger   *logrus.Logger
}

func NewJWTProvider(secret string, profiles ports.ProfileRepository, logger *logrus.Logger) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), profiles: profiles, logger: logger}
}

// Resolve implements ports.IdentityProvider. Invalid or expired tokens yield
// (nil, nil): anonymity is a state, not an error. Only a profile-store outage
// surfaces as an error.
func (p *JWTProvider) Resolve(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, nil
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !parsed.Valid {
		if p.logger != nil {
			p.logger.WithError(err).Debug("bearer token rejected")
		}
		return nil, nil
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, nil
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, nil
	}

	ident, err := p.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return ident, nil
}
