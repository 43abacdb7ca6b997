package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/core/domain/post"
	"github.com/inkstone/newsroom/internal/infrastructure/db"
)

// PostRepository implements ports.PostRepository against Postgres.
type PostRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewPostRepository(database *db.Database, logger *logrus.Logger) *PostRepository {
	return &PostRepository{db: database, logger: logger}
}

func (r *PostRepository) Create(ctx context.Context, p *post.Post) error {
	query := `
		INSERT INTO posts (id, author_id, title, slug, body, status, view_count, published_at, created_at, updated_at)
		VALUES (:id, :author_id, :title, :slug, :body, :status, :view_count, :published_at, :created_at, :updated_at)`
	if _, err := r.db.DB.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID) (*post.Post, error) {
	var p post.Post
	err := r.db.DB.GetContext(ctx, &p, `SELECT * FROM posts WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*post.Post, error) {
	var p post.Post
	err := r.db.DB.GetContext(ctx, &p, `SELECT * FROM posts WHERE slug = $1`, slug)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostRepository) Update(ctx context.Context, p *post.Post) error {
	query := `
		UPDATE posts
		SET title = :title, slug = :slug, body = :body, status = :status,
		    view_count = :view_count, published_at = :published_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.DB.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.DB.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

func (r *PostRepository) List(ctx context.Context, status post.Status, limit, offset int) ([]*post.Post, error) {
	posts := []*post.Post{}
	query := `SELECT * FROM posts WHERE status = $1 ORDER BY published_at DESC NULLS LAST, created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.DB.SelectContext(ctx, &posts, query, status, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

func (r *PostRepository) Count(ctx context.Context, status post.Status) (int, error) {
	var count int
	if err := r.db.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM posts WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// Trending ranks published posts by recent view volume. The query is the
// expensive aggregate the cache layer shields with stale-while-revalidate.
func (r *PostRepository) Trending(ctx context.Context, limit int) ([]*post.Post, error) {
	posts := []*post.Post{}
	query := `
		SELECT * FROM posts
		WHERE status = 'published' AND published_at > NOW() - INTERVAL '7 days'
		ORDER BY view_count DESC, published_at DESC
		LIMIT $1`
	if err := r.db.DB.SelectContext(ctx, &posts, query, limit); err != nil {
		return nil, fmt.Errorf("failed to load trending posts: %w", err)
	}
	return posts, nil
}
