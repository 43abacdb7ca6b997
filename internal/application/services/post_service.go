package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/core/domain/apperror"
	"github.com/inkstone/newsroom/internal/core/domain/identity"
	"github.com/inkstone/newsroom/internal/core/domain/post"
	"github.com/inkstone/newsroom/internal/core/ports"
)

const (
	postsNamespace = "posts"

	// tagAllPosts marks every cached post listing; any write invalidates it.
	tagAllPosts = "all:posts"

	postTTL      = 5 * time.Minute
	listTTL      = time.Minute
	trendingTTL  = time.Minute
	trendingSWR  = 2 * time.Minute
	maxPageLimit = 100
)

// PostService implements ports.PostService. Reads go through the cache-aside
// layer; every write invalidates the posts tag so listings and aggregates
// regenerate on next read.
type PostService struct {
	repo   ports.PostRepository
	cache  ports.CacheService
	gate   ports.AccessControlService
	logger *logrus.Logger
}

func NewPostService(repo ports.PostRepository, cache ports.CacheService, gate ports.AccessControlService, logger *logrus.Logger) *PostService {
	return &PostService{repo: repo, cache: cache, gate: gate, logger: logger}
}

func (s *PostService) CreatePost(ctx context.Context, who *identity.Identity, req *post.CreatePostRequest) (*post.Post, error) {
	if err := s.gate.RequireMinRole(who, identity.RoleContributor); err != nil {
		return nil, err
	}
	if existing, err := s.repo.GetBySlug(ctx, req.Slug); err == nil && existing != nil {
		return nil, apperror.Conflict("a post with this slug already exists")
	}

	now := time.Now()
	p := &post.Post{
		ID:        uuid.New(),
		AuthorID:  who.ID,
		Title:     req.Title,
		Slug:      req.Slug,
		Body:      req.Body,
		Status:    post.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, apperror.Database("failed to create post", err)
	}
	s.invalidatePostCaches(ctx, p.ID)
	return p, nil
}

func (s *PostService) GetPost(ctx context.Context, id uuid.UUID) (*post.Post, error) {
	return AsideAs(ctx, s.cache, postsNamespace, CacheKey("id", id.String()), func(ctx context.Context) (*post.Post, error) {
		return s.fetchPost(ctx, id)
	}, ports.CacheOptions{TTL: postTTL, Tags: []string{tagAllPosts, "post:" + id.String()}})
}

func (s *PostService) UpdatePost(ctx context.Context, who *identity.Identity, id uuid.UUID, req *post.UpdatePostRequest) (*post.Post, error) {
	if err := s.gate.RequireAuth(who); err != nil {
		return nil, err
	}
	p, err := s.fetchPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.CanModify(who, p) {
		return nil, apperror.Forbidden("you may not modify this post")
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Slug != nil {
		p.Slug = *req.Slug
	}
	if req.Body != nil {
		p.Body = *req.Body
	}
	p.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, apperror.Database("failed to update post", err)
	}
	s.invalidatePostCaches(ctx, p.ID)
	return p, nil
}

func (s *PostService) DeletePost(ctx context.Context, who *identity.Identity, id uuid.UUID) error {
	if err := s.gate.RequireAuth(who); err != nil {
		return err
	}
	p, err := s.fetchPost(ctx, id)
	if err != nil {
		return err
	}
	if !post.CanDelete(who, p) {
		return apperror.Forbidden("you may not delete this post")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperror.Database("failed to delete post", err)
	}
	s.invalidatePostCaches(ctx, id)
	return nil
}

func (s *PostService) PublishPost(ctx context.Context, who *identity.Identity, id uuid.UUID) (*post.Post, error) {
	return s.transition(ctx, who, id, post.StatusPublished, post.CanPublish)
}

func (s *PostService) UnpublishPost(ctx context.Context, who *identity.Identity, id uuid.UUID) (*post.Post, error) {
	return s.transition(ctx, who, id, post.StatusDraft, post.CanUnpublish)
}

func (s *PostService) transition(ctx context.Context, who *identity.Identity, id uuid.UUID, to post.Status, allowed func(*identity.Identity, *post.Post) bool) (*post.Post, error) {
	if err := s.gate.RequireAuth(who); err != nil {
		return nil, err
	}
	p, err := s.fetchPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if !allowed(who, p) {
		return nil, apperror.Forbidden(fmt.Sprintf("you may not move this post to %s", to))
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	if to == post.StatusPublished {
		now := time.Now()
		p.PublishedAt = &now
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, apperror.Database("failed to update post status", err)
	}
	s.invalidatePostCaches(ctx, p.ID)
	return p, nil
}

func (s *PostService) ListPublished(ctx context.Context, page, limit int) ([]*post.Post, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageLimit {
		limit = 20
	}

	type pageResult struct {
		Posts []*post.Post `json:"posts"`
		Total int          `json:"total"`
	}
	key := CacheKey("published", fmt.Sprintf("p%d", page), fmt.Sprintf("l%d", limit))
	res, err := AsideAs(ctx, s.cache, postsNamespace, key, func(ctx context.Context) (pageResult, error) {
		posts, err := s.repo.List(ctx, post.StatusPublished, limit, (page-1)*limit)
		if err != nil {
			return pageResult{}, apperror.Database("failed to list posts", err)
		}
		total, err := s.repo.Count(ctx, post.StatusPublished)
		if err != nil {
			return pageResult{}, apperror.Database("failed to count posts", err)
		}
		return pageResult{Posts: posts, Total: total}, nil
	}, ports.CacheOptions{TTL: listTTL, Tags: []string{tagAllPosts}})
	if err != nil {
		return nil, 0, err
	}
	return res.Posts, res.Total, nil
}

// Trending serves the expensive aggregate with stale-while-revalidate so the
// TTL lapsing never turns into a synchronous regeneration spike.
func (s *PostService) Trending(ctx context.Context, limit int) ([]*post.Post, error) {
	if limit < 1 || limit > maxPageLimit {
		limit = 10
	}
	return AsideAs(ctx, s.cache, postsNamespace, CacheKey("trending", fmt.Sprintf("l%d", limit)), func(ctx context.Context) ([]*post.Post, error) {
		posts, err := s.repo.Trending(ctx, limit)
		if err != nil {
			return nil, apperror.Database("failed to load trending posts", err)
		}
		return posts, nil
	}, ports.CacheOptions{TTL: trendingTTL, StaleWhileRevalidate: trendingSWR, Tags: []string{tagAllPosts}})
}

func (s *PostService) fetchPost(ctx context.Context, id uuid.UUID) (*post.Post, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post not found")
		}
		return nil, apperror.Database("failed to load post", err)
	}
	if p == nil {
		return nil, apperror.NotFound("post not found")
	}
	return p, nil
}

func (s *PostService) invalidatePostCaches(ctx context.Context, id uuid.UUID) {
	if n, err := s.cache.InvalidateByTag(ctx, tagAllPosts); err == nil && s.logger != nil {
		s.logger.WithFields(logrus.Fields{"post_id": id, "invalidated": n}).Debug("post caches invalidated")
	}
	_, _ = s.cache.InvalidateByTag(ctx, "post:"+id.String())
}
