package cache

import (
	"context"
	"time"
)

// Store defines the interface for caching operations. Values are JSON encoded.
type Store interface {
	// Get decodes the cached value into dest. The boolean is false on a miss;
	// a miss is not an error.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Statistics and health
	GetCacheStats() CacheStats
	HealthCheck(ctx context.Context) error
	Close() error
}

// CacheStats provides cache performance metrics
type CacheStats struct {
	Backend     string  `json:"backend"`
	HitRate     float64 `json:"hitRate"`
	MissRate    float64 `json:"missRate"`
	KeyCount    int     `json:"keyCount"`
	TotalHits   int64   `json:"totalHits"`
	TotalMisses int64   `json:"totalMisses"`
}
