package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkstone/newsroom/internal/core/domain/identity"
	"github.com/inkstone/newsroom/internal/core/domain/post"
	"github.com/inkstone/newsroom/internal/core/domain/ratelimit"
)

// PostRepositoryMock is a lightweight mock for PostRepository
type PostRepositoryMock struct {
	CreateFn    func(ctx context.Context, p *post.Post) error
	GetByIDFn   func(ctx context.Context, id uuid.UUID) (*post.Post, error)
	GetBySlugFn func(ctx context.Context, slug string) (*post.Post, error)
	UpdateFn    func(ctx context.Context, p *post.Post) error
	DeleteFn    func(ctx context.Context, id uuid.UUID) error
	ListFn      func(ctx context.Context, status post.Status, limit, offset int) ([]*post.Post, error)
	CountFn     func(ctx context.Context, status post.Status) (int, error)
	TrendingFn  func(ctx context.Context, limit int) ([]*post.Post, error)
}

func (m *PostRepositoryMock) Create(ctx context.Context, p *post.Post) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, p)
	}
	return nil
}
func (m *PostRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (*post.Post, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, sql.ErrNoRows
}
func (m *PostRepositoryMock) GetBySlug(ctx context.Context, slug string) (*post.Post, error) {
	if m.GetBySlugFn != nil {
		return m.GetBySlugFn(ctx, slug)
	}
	return nil, sql.ErrNoRows
}
func (m *PostRepositoryMock) Update(ctx context.Context, p *post.Post) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, p)
	}
	return nil
}
func (m *PostRepositoryMock) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}
func (m *PostRepositoryMock) List(ctx context.Context, status post.Status, limit, offset int) ([]*post.Post, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, status, limit, offset)
	}
	return nil, nil
}
func (m *PostRepositoryMock) Count(ctx context.Context, status post.Status) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, status)
	}
	return 0, nil
}
func (m *PostRepositoryMock) Trending(ctx context.Context, limit int) ([]*post.Post, error) {
	if m.TrendingFn != nil {
		return m.TrendingFn(ctx, limit)
	}
	return nil, nil
}

// ProfileRepositoryMock serves identities from a function field.
type ProfileRepositoryMock struct {
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*identity.Identity, error)
}

func (m *ProfileRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, sql.ErrNoRows
}

// IdentityProviderMock resolves tokens from a fixed table.
type IdentityProviderMock struct {
	ResolveFn func(ctx context.Context, token string) (*identity.Identity, error)
}

func (m *IdentityProviderMock) Resolve(ctx context.Context, token string) (*identity.Identity, error) {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, token)
	}
	return nil, nil
}

// RateLimiterMock returns a scripted decision.
type RateLimiterMock struct {
	CheckFn func(ctx context.Context, key string, policy ratelimit.Policy) (ratelimit.Result, error)
}

func (m *RateLimiterMock) Check(ctx context.Context, key string, policy ratelimit.Policy) (ratelimit.Result, error) {
	if m.CheckFn != nil {
		return m.CheckFn(ctx, key, policy)
	}
	return ratelimit.Result{Allowed: true, Limit: policy.Limit, Remaining: policy.Limit}, nil
}

// FailingStore errors on every operation; used to exercise fail-open and
// degraded-mode paths.
type FailingStore struct{}

func (FailingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("store down")
}
func (FailingStore) Set(context.Context, string, []byte, time.Duration) error {
	return fmt.Errorf("store down")
}
func (FailingStore) Delete(context.Context, ...string) error { return fmt.Errorf("store down") }
func (FailingStore) Keys(context.Context, string) ([]string, error) {
	return nil, fmt.Errorf("store down")
}
func (FailingStore) SAdd(context.Context, string, ...string) error { return fmt.Errorf("store down") }
func (FailingStore) SMembers(context.Context, string) ([]string, error) {
	return nil, fmt.Errorf("store down")
}
func (FailingStore) SRem(context.Context, string, ...string) error { return fmt.Errorf("store down") }
