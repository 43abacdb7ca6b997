package httpserver

import (
	"github.com/inkstone/newsroom/internal/core/domain/identity"
)

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")

	posts := api.Group("/posts")
	posts.GET("", s.listPosts, s.middleware.RateLimit.Policy("public"))
	posts.GET("/trending", s.trendingPosts, s.middleware.RateLimit.Policy("search"))
	posts.GET("/:id", s.getPost, s.middleware.RateLimit.Policy("public"))

	posts.POST("", s.createPost, s.middleware.Auth.RequireMinRole(identity.RoleContributor), s.middleware.RateLimit.Policy("write"))
	posts.PUT("/:id", s.updatePost, s.middleware.Auth.RequireAuth(), s.middleware.RateLimit.Policy("write"))
	posts.DELETE("/:id", s.deletePost, s.middleware.Auth.RequireAuth(), s.middleware.RateLimit.Policy("write"))
	posts.POST("/:id/publish", s.publishPost, s.middleware.Auth.RequireMinRole(identity.RoleEditor), s.middleware.RateLimit.Policy("write"))
	posts.POST("/:id/unpublish", s.unpublishPost, s.middleware.Auth.RequireMinRole(identity.RoleEditor), s.middleware.RateLimit.Policy("write"))

	admin := api.Group("/admin", s.middleware.Auth.RequireMinRole(identity.RoleAdmin), s.middleware.RateLimit.Policy("admin"))
	admin.POST("/cache/clear", s.clearCache)
	admin.POST("/cache/invalidate", s.invalidateCache)
}
