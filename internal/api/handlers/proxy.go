package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"moviehub-backend/internal/api/middleware"
	"moviehub-backend/internal/upstream"
	"moviehub-backend/pkg/ratelimit"
	"moviehub-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const staleWhileRevalidate = 86400

// ProxyHandler forwards catalog requests to the upstream API with the
// server-side credential attached.
type ProxyHandler struct {
	client  *upstream.Client
	limiter ratelimit.Limiter
	logger  *zap.Logger
}

func NewProxyHandler(client *upstream.Client, limiter ratelimit.Limiter, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

// RequireCredential refuses every request while no upstream credential is
// configured. It runs ahead of the rate limiter so no quota is spent.
func (h *ProxyHandler) RequireCredential(c *gin.Context) {
	if !h.client.Configured() {
		h.logger.Error("Upstream API key is not configured")
		utils.ConfigurationErrorResponse(c)
		return
	}
	c.Next()
}

// Get proxies GET /api/tmdb/*path
func (h *ProxyHandler) Get(c *gin.Context) {
	path, err := upstream.CleanPath(c.Param("path"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid path", "A catalog path is required and may not contain '.' or '..' segments")
		return
	}

	lifetime := upstream.LifetimeForPath(path)
	h.logger.Debug("Proxying upstream request",
		zap.String("path", path),
		zap.Duration("lifetime", lifetime))

	result, err := h.client.Fetch(c.Request.Context(), path, c.Request.URL.Query(), lifetime)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Debug("Client abandoned upstream request", zap.String("path", path))
		} else {
			h.logger.Error("Upstream request failed", zap.String("path", path), zap.Error(err))
		}
		utils.NetworkErrorResponse(c)
		return
	}

	if !result.OK() {
		h.logger.Warn("Upstream API error",
			zap.String("path", path),
			zap.Int("status", result.Failure.Status),
			zap.String("message", result.Failure.Message))
		utils.UpstreamErrorResponse(c, result.Failure)
		return
	}

	cacheState := "MISS"
	if result.Cached {
		cacheState = "HIT"
	}

	c.Header("Cache-Control", fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d", int(lifetime.Seconds()), staleWhileRevalidate))
	middleware.SetQuotaHeaders(c, h.limiter)
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET")
	c.Header("X-Cache", cacheState)
	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Body)
}

// Options answers CORS preflight requests. It never touches the limiter.
func (h *ProxyHandler) Options(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Status(http.StatusOK)
}
