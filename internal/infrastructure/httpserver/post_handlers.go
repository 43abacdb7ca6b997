package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inkstone/newsroom/internal/core/domain/apperror"
	"github.com/inkstone/newsroom/internal/core/domain/post"
	"github.com/inkstone/newsroom/internal/infrastructure/httpserver/helpers"
)

// Post handlers. Authorization beyond the route-level role requirement
// (ownership, workflow-state rules) lives in the service; handlers only
// bind, validate and respond.

func (s *Server) createPost(c echo.Context) error {
	var req post.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	created, err := s.postService.CreatePost(c.Request().Context(), helpers.GetIdentity(c), &req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, created)
}

func (s *Server) getPost(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.BadRequest("invalid post id")
	}
	p, err := s.postService.GetPost(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, p)
}

func (s *Server) updatePost(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.BadRequest("invalid post id")
	}
	var req post.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updated, err := s.postService.UpdatePost(c.Request().Context(), helpers.GetIdentity(c), id, &req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, updated)
}

func (s *Server) deletePost(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.BadRequest("invalid post id")
	}
	if err := s.postService.DeletePost(c.Request().Context(), helpers.GetIdentity(c), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) publishPost(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.BadRequest("invalid post id")
	}
	p, err := s.postService.PublishPost(c.Request().Context(), helpers.GetIdentity(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, p)
}

func (s *Server) unpublishPost(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.BadRequest("invalid post id")
	}
	p, err := s.postService.UnpublishPost(c.Request().Context(), helpers.GetIdentity(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, p)
}

func (s *Server) listPosts(c echo.Context) error {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	posts, total, err := s.postService.ListPublished(c.Request().Context(), page, limit)
	if err != nil {
		return err
	}
	return respondPaginated(c, http.StatusOK, posts, NewPagination(page, limit, total))
}

func (s *Server) trendingPosts(c echo.Context) error {
	limit := queryInt(c, "limit", 10)
	posts, err := s.postService.Trending(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, posts)
}

// Admin cache handlers.

func (s *Server) clearCache(c echo.Context) error {
	if err := s.cacheService.Clear(c.Request().Context()); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]any{"cleared": true})
}

type invalidateCacheRequest struct {
	Tag       string `json:"tag,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

func (s *Server) invalidateCache(c echo.Context) error {
	var req invalidateCacheRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}

	switch {
	case req.Tag != "":
		n, err := s.cacheService.InvalidateByTag(c.Request().Context(), req.Tag)
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, map[string]any{"invalidated": n})
	case req.Namespace != "" && req.Pattern != "":
		n, err := s.cacheService.InvalidateByPattern(c.Request().Context(), req.Namespace, req.Pattern)
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, map[string]any{"invalidated": n})
	default:
		return apperror.Validation("provide either tag, or namespace and pattern")
	}
}

func queryInt(c echo.Context, name string, def int) int {
	if raw := c.QueryParam(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}
