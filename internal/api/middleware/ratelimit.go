package middleware

import (
	"math"
	"strconv"
	"time"

	"moviehub-backend/internal/metrics"
	"moviehub-backend/pkg/ratelimit"
	"moviehub-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "client_identity"

// RateLimitMiddleware admits or refuses each request against the fixed-window
// limiter. A limiter failure lets the request through.
func RateLimitMiddleware(limiter ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		identity := ClientIdentity(c.Request)
		c.Set(identityKey, identity)

		allowed, err := limiter.Admit(ctx, identity)
		if err != nil {
			metrics.RecordRateLimit("error")
			logger.Error("Rate limiter unavailable, admitting request",
				zap.String("identity", identity),
				zap.Error(err))
			c.Header("X-RateLimit-Error", "Rate limiter unavailable")
			c.Next()
			return
		}

		if allowed {
			metrics.RecordRateLimit("admitted")
			c.Next()
			return
		}

		metrics.RecordRateLimit("refused")
		status, err := limiter.Status(ctx, identity)
		if err != nil {
			logger.Warn("Failed to read rate limit status", zap.Error(err))
		}
		logger.Debug("Rate limit exceeded",
			zap.String("identity", identity),
			zap.Duration("reset_in", status.ResetIn))

		setRefusalHeaders(c, status.ResetIn, time.Now())
		utils.RateLimitResponse(c, ceilSeconds(status.ResetIn))
	}
}

// SetQuotaHeaders writes the limit and remaining quota for the current
// identity. It reads the limiter without recording a request.
func SetQuotaHeaders(c *gin.Context, limiter ratelimit.Limiter) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))

	status, err := limiter.Status(c.Request.Context(), Identity(c))
	if err != nil {
		return
	}
	c.Header("X-RateLimit-Remaining", strconv.Itoa(status.Remaining))
}

// Identity returns the identity resolved for this request
func Identity(c *gin.Context) string {
	if identity := c.GetString(identityKey); identity != "" {
		return identity
	}
	return ClientIdentity(c.Request)
}

// setRefusalHeaders sets the headers sent with a 429
func setRefusalHeaders(c *gin.Context, resetIn time.Duration, now time.Time) {
	reset := math.Ceil(float64(now.UnixMilli()+resetIn.Milliseconds()) / 1000)

	c.Header("X-RateLimit-Remaining", "0")
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(reset), 10))
	c.Header("Retry-After", strconv.Itoa(ceilSeconds(resetIn)))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
