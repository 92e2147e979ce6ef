package handlers

import (
	"context"
	"net/http"
	"time"

	"moviehub-backend/internal/upstream"
	"moviehub-backend/pkg/cache"
	"moviehub-backend/pkg/ratelimit"
	"moviehub-backend/pkg/redis"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	redisClient *redis.Client
	limiter     ratelimit.Limiter
	store       cache.Store
	client      *upstream.Client
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

// NewHealthHandler creates the health handler. redisClient is nil when no
// backend runs on Redis.
func NewHealthHandler(redisClient *redis.Client, limiter ratelimit.Limiter, store cache.Store, client *upstream.Client) *HealthHandler {
	return &HealthHandler{
		redisClient: redisClient,
		limiter:     limiter,
		store:       store,
		client:      client,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}

	overallHealthy := true

	if h.redisClient != nil {
		redisStatus := h.checkRedis()
		response.Services["redis"] = redisStatus
		if !redisStatus["healthy"].(bool) {
			overallHealthy = false
		}
	}

	upstreamStatus := h.checkUpstream()
	response.Services["upstream"] = upstreamStatus
	if !upstreamStatus["healthy"].(bool) {
		overallHealthy = false
	}

	cacheStatus := h.checkCache(c.Request.Context())
	response.Services["cache"] = cacheStatus
	if !cacheStatus["healthy"].(bool) {
		overallHealthy = false
	}

	response.Services["rateLimiter"] = h.limiter.GetStats()

	if overallHealthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

// checkUpstream reports credential and circuit breaker state. An open breaker
// means the upstream API is currently failing.
func (h *HealthHandler) checkUpstream() map[string]interface{} {
	breakerState := h.client.BreakerState()
	status := map[string]interface{}{
		"service":        "upstream",
		"configured":     h.client.Configured(),
		"circuitBreaker": breakerState,
		"healthy":        h.client.Configured() && breakerState != "open",
	}
	if !h.client.Configured() {
		status["error"] = "API key is not configured"
	}
	return status
}

func (h *HealthHandler) checkCache(ctx context.Context) map[string]interface{} {
	stats := h.store.GetCacheStats()
	status := map[string]interface{}{
		"service": "cache",
		"backend": stats.Backend,
		"healthy": true,
		"stats":   stats,
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.store.HealthCheck(ctx); err != nil {
		status["healthy"] = false
		status["error"] = err.Error()
	}
	return status
}

func (h *HealthHandler) checkRedis() map[string]interface{} {
	status := map[string]interface{}{
		"service": "redis",
		"healthy": false,
	}

	healthStatus := h.redisClient.HealthCheck()
	status["healthy"] = healthStatus.IsConnected
	status["connectionInfo"] = healthStatus.ConnectionInfo
	status["responseTime"] = healthStatus.ResponseTime.String()
	status["lastPing"] = healthStatus.LastPing

	if healthStatus.Error != "" {
		status["error"] = healthStatus.Error
	}

	status["connectionStats"] = h.redisClient.GetConnectionStats()
	return status
}
