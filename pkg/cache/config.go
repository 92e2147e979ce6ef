package cache

import "time"

// CacheConfig holds configuration for cache TTL values and behavior
type CacheConfig struct {
	Backend   string        `json:"backend"`   // "memory" or "redis"
	Capacity  int           `json:"capacity"`  // max entries for the memory backend
	KeyPrefix string        `json:"keyPrefix"` // prefix for all cache keys
	PageTTL   time.Duration `json:"pageTTL"`   // aggregated search pages
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:   "memory",
		Capacity:  1000,
		KeyPrefix: "moviehub:",
		PageTTL:   time.Hour,
	}
}
