package httpserver

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/core/ports"
	customMiddleware "github.com/inkstone/newsroom/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host             string
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	TLSCertFile      string
	TLSKeyFile       string
	AllowedOrigins   []string
	Environment      string
	RateLimitEnabled bool
}

type ServerDeps struct {
	PostService      ports.PostService
	CacheService     ports.CacheService
	IdentityProvider ports.IdentityProvider
	AccessControl    ports.AccessControlService
	RateLimiter      ports.RateLimiterService
	HealthCheckers   []ports.HealthChecker
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	postService    ports.PostService
	cacheService   ports.CacheService
	middleware     *customMiddleware.Collection
	healthCheckers []ports.HealthChecker
}

// requestValidator adapts go-playground/validator to echo's Validator hook.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.HTTPErrorHandler = NewErrorHandler(logger, serverConfig.Environment)

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		postService:    deps.PostService,
		cacheService:   deps.CacheService,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewCollection(customMiddleware.CollectionDeps{
			IdentityProvider: deps.IdentityProvider,
			AccessControl:    deps.AccessControl,
			RateLimiter:      deps.RateLimiter,
			RateLimitEnabled: serverConfig.RateLimitEnabled,
			AllowedOrigins:   serverConfig.AllowedOrigins,
			RequestsTotal:    GetRequestsTotal(),
			RequestDuration:  GetRequestDuration(),
			RateLimitMetric:  GetRateLimitDecisions(),
		}, logger),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
