package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/inkstone/newsroom/internal/core/domain/identity"
	"github.com/inkstone/newsroom/internal/core/domain/post"
)

// PostRepository defines the interface for post data operations.
type PostRepository interface {
	Create(ctx context.Context, p *post.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*post.Post, error)
	GetBySlug(ctx context.Context, slug string) (*post.Post, error)
	Update(ctx context.Context, p *post.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, status post.Status, limit, offset int) ([]*post.Post, error)
	Count(ctx context.Context, status post.Status) (int, error)
	Trending(ctx context.Context, limit int) ([]*post.Post, error)
}

// PostService defines the post business logic consumed by handlers. Reads go
// through the cache layer; writes invalidate by tag.
type PostService interface {
	CreatePost(ctx context.Context, who *identity.Identity, req *post.CreatePostRequest) (*post.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*post.Post, error)
	UpdatePost(ctx context.Context, who *identity.Identity, id uuid.UUID, req *post.UpdatePostRequest) (*post.Post, error)
	DeletePost(ctx context.Context, who *identity.Identity, id uuid.UUID) error
	PublishPost(ctx context.Context, who *identity.Identity, id uuid.UUID) (*post.Post, error)
	UnpublishPost(ctx context.Context, who *identity.Identity, id uuid.UUID) (*post.Post, error)
	ListPublished(ctx context.Context, page, limit int) ([]*post.Post, int, error)
	Trending(ctx context.Context, limit int) ([]*post.Post, error)
}
