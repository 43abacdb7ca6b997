package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/configs"
	"github.com/inkstone/newsroom/internal/application/services"
	"github.com/inkstone/newsroom/internal/core/ports"
	"github.com/inkstone/newsroom/internal/infrastructure/db"
	"github.com/inkstone/newsroom/internal/infrastructure/health"
	"github.com/inkstone/newsroom/internal/infrastructure/httpserver"
	identityProvider "github.com/inkstone/newsroom/internal/infrastructure/identity"
	"github.com/inkstone/newsroom/internal/infrastructure/kv"
	"github.com/inkstone/newsroom/internal/infrastructure/repositories"
)

func main() {
	// Load configuration
	cfg, err := configs.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting newsroom server...")

	// Initialize database (apply pool settings from config)
	database, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	logger.Info("Connected to database successfully")

	// Run migrations
	if err := database.Migrate("./migrations"); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	// Key-value store: in-process map, optionally fronted by Redis. The
	// remote store is treated as unreliable; its failures degrade to the
	// in-process map instead of failing requests.
	memoryStore := kv.NewMemoryStore()
	stopJanitor := memoryStore.StartJanitor(cfg.Cache.SweepInterval)
	defer stopJanitor()

	var store ports.KeyValueStore = memoryStore
	healthCheckers := []ports.HealthChecker{health.NewDBHealthChecker(database)}
	if cfg.Redis.Enabled() {
		redisClient, err := kv.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable at startup; using in-process store")
		} else {
			defer redisClient.Close()
			store = kv.NewFallbackStore(kv.NewRedisStore(redisClient), memoryStore, logger)
			healthCheckers = append(healthCheckers, health.NewRedisHealthChecker(redisClient))
			logger.Info("Connected to Redis successfully")
		}
	} else {
		logger.Info("No Redis configured; rate limiting and caching use the in-process store")
	}

	clock := ports.SystemClock()
	rateLimiter := services.NewRateLimiterService(store, clock, logger)
	cacheService := services.NewCacheService(store, clock, logger, cfg.Cache.KeyPrefix)
	accessControl := services.NewAccessControlService()

	// Repositories and domain services
	postRepo := repositories.NewPostRepository(database, logger)
	profileRepo := repositories.NewProfileRepository(database, logger)
	postService := services.NewPostService(postRepo, cacheService, accessControl, logger)
	provider := identityProvider.NewJWTProvider(cfg.Auth.JWTSecret, profileRepo, logger)

	server := httpserver.NewServer(&httpserver.ServerConfig{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		TLSCertFile:      cfg.Server.TLSCertFile,
		TLSKeyFile:       cfg.Server.TLSKeyFile,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		Environment:      cfg.Server.Environment,
		RateLimitEnabled: cfg.RateLimit.Enabled,
	}, logger, httpserver.ServerDeps{
		PostService:      postService,
		CacheService:     cacheService,
		IdentityProvider: provider,
		AccessControl:    accessControl,
		RateLimiter:      rateLimiter,
		HealthCheckers:   healthCheckers,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Info("Server stopped:", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown:", err)
	}
	cacheService.WaitForRefreshes()
	logger.Info("Server exited")
}
