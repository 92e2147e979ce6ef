package ratelimit

import (
	"fmt"
	"time"
)

// Config holds the configuration for rate limiting
type Config struct {
	// Requests allowed per identity in one window
	MaxRequests int `json:"maxRequests"`

	// Length of a fixed window
	Window time.Duration `json:"window"`

	// Maximum number of identities tracked at once. The least recently used
	// identity is evicted beyond this bound.
	Capacity int `json:"capacity"`

	// Lifetime of an idle entry, independent of the window. Defaults to the
	// window length and may not be shorter, or a live window could be lost.
	EntryTTL time.Duration `json:"entryTTL"`

	// Redis key prefix for rate limiting data
	RedisKeyPrefix string `json:"redisKeyPrefix"`

	// Enable/disable rate limiting
	Enabled bool `json:"enabled"`
}

// DefaultConfig returns a default rate limiting configuration: 40 requests per
// minute per client, keeping the upstream's own per-second quota out of reach.
func DefaultConfig() *Config {
	return &Config{
		MaxRequests:    40,
		Window:         time.Minute,
		Capacity:       500,
		EntryTTL:       time.Minute,
		RedisKeyPrefix: "ratelimit:",
		Enabled:        true,
	}
}

// normalize fills zero values and checks the remaining invariants.
func (c *Config) normalize() error {
	if c.MaxRequests <= 0 {
		return fmt.Errorf("ratelimit: max requests must be positive, got %d", c.MaxRequests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("ratelimit: window must be positive, got %s", c.Window)
	}
	if c.Capacity <= 0 {
		c.Capacity = 500
	}
	if c.EntryTTL < c.Window {
		c.EntryTTL = c.Window
	}
	if c.RedisKeyPrefix == "" {
		c.RedisKeyPrefix = "ratelimit:"
	}
	return nil
}
