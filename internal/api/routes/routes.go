package routes

import (
	"time"

	"moviehub-backend/internal/api/handlers"
	"moviehub-backend/internal/api/middleware"
	"moviehub-backend/internal/catalog"
	"moviehub-backend/internal/config"
	"moviehub-backend/internal/services"
	"moviehub-backend/internal/upstream"
	"moviehub-backend/pkg/cache"
	"moviehub-backend/pkg/ratelimit"
	"moviehub-backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies are the long-lived components the routes are built on.
// RedisClient is nil when no backend runs on Redis.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Limiter     ratelimit.Limiter
	Store       cache.Store
	RedisClient *redis.Client
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config

	// Initialize upstream access
	upstreamClient := upstream.NewClient(cfg.Upstream, deps.Store, deps.Logger.Named("upstream"))
	fetcher := catalog.NewProxyFetcher(cfg.SiteURL, cfg.Upstream.Timeout+5*time.Second)
	aggregator := catalog.NewAggregator(fetcher, deps.Store, cfg.Cache.PageTTL, deps.Logger.Named("catalog"))

	// Initialize services
	catalogService := services.NewCatalogService(aggregator, fetcher)

	// Initialize handlers
	proxyHandler := handlers.NewProxyHandler(upstreamClient, deps.Limiter, deps.Logger.Named("proxy"))
	catalogHandler := handlers.NewCatalogHandler(catalogService, deps.Logger.Named("catalog"))
	healthHandler := handlers.NewHealthHandler(deps.RedisClient, deps.Limiter, deps.Store, upstreamClient)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/health", healthHandler.HealthCheck)

	// Upstream proxy; preflight never reaches the limiter
	tmdb := api.Group("/tmdb")
	{
		tmdb.GET("/*path",
			proxyHandler.RequireCredential,
			middleware.RateLimitMiddleware(deps.Limiter, deps.Logger.Named("ratelimit")),
			proxyHandler.Get,
		)
		tmdb.OPTIONS("/*path", proxyHandler.Options)
	}

	// Aggregated browsing; every upstream page is fetched through the proxy
	api.GET("/search", catalogHandler.Search)
	api.GET("/genres", catalogHandler.GetGenres)
	movies := api.Group("/movies")
	{
		movies.GET("/:id", catalogHandler.GetMovie)
		movies.GET("/:id/recommendations", catalogHandler.GetRecommendations)
	}
}
