package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moviehub-backend/internal/api/middleware"
	"moviehub-backend/internal/api/routes"
	"moviehub-backend/internal/config"
	"moviehub-backend/internal/logging"
	"moviehub-backend/pkg/cache"
	"moviehub-backend/pkg/cleanup"
	"moviehub-backend/pkg/ratelimit"
	"moviehub-backend/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	shutdownTimeout    = 15 * time.Second
	cacheSweepInterval = 5 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration; a missing API key stops startup here
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Mode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Initialize Redis client only when a backend needs it
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient, err = redis.NewClient(cfg.Redis, logger.Named("redis"))
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer redisClient.Close()
	}

	limiter, err := newLimiter(cfg, redisClient)
	if err != nil {
		return err
	}

	store, err := cache.NewStore(cache.CacheConfig{
		Backend:   cfg.Cache.Backend,
		Capacity:  cfg.Cache.Capacity,
		KeyPrefix: cache.DefaultCacheConfig().KeyPrefix,
		PageTTL:   cfg.Cache.PageTTL,
	}, redisClient)
	if err != nil {
		return err
	}
	defer store.Close()

	if sweeper, ok := store.(cleanup.Sweeper); ok {
		go cleanup.NewCleanupService(sweeper, cacheSweepInterval, logger.Named("cleanup")).Start(ctx)
	}

	gin.SetMode(cfg.Mode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(logger.Named("http")),
		middleware.RequestMetrics(),
		cors.New(corsConfig(cfg.AllowedOrigins)),
	)

	routes.SetupRoutes(router, routes.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Limiter:     limiter,
		Store:       store,
		RedisClient: redisClient,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("site_url", cfg.SiteURL),
			zap.String("rate_limit_backend", cfg.RateLimit.Backend),
			zap.String("cache_backend", cfg.Cache.Backend))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func newLimiter(cfg *config.Config, redisClient *redis.Client) (ratelimit.Limiter, error) {
	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.MaxRequests = cfg.RateLimit.MaxRequests
	limiterConfig.Window = cfg.RateLimit.Window
	limiterConfig.Capacity = cfg.RateLimit.Capacity
	limiterConfig.EntryTTL = cfg.RateLimit.Window

	if cfg.RateLimit.Backend == "redis" {
		return ratelimit.NewRedisRateLimiter(redisClient.GetClient(), limiterConfig)
	}
	return ratelimit.NewMemoryRateLimiter(limiterConfig)
}

func corsConfig(allowedOrigins []string) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:              []string{"GET", "OPTIONS"},
		AllowHeaders:              []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders:             []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "X-Cache", "X-Request-ID"},
		OptionsResponseStatusCode: http.StatusOK,
		MaxAge:                    12 * time.Hour,
	}

	// Handle wildcard origin
	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	return corsConfig
}
