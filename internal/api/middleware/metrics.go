package middleware

import (
	"time"

	"moviehub-backend/internal/metrics"

	"github.com/gin-gonic/gin"
)

// RequestMetrics records request counts and latency per route pattern.
// Unmatched routes share one label to keep cardinality bounded.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "/unknown"
		}
		metrics.RecordAPIRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
