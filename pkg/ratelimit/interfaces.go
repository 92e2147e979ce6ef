package ratelimit

import (
	"context"
	"time"
)

// UnknownIdentity is the key used when no client address could be derived.
const UnknownIdentity = "unknown"

// Limiter defines the fixed-window admission contract
type Limiter interface {
	// Admit reports whether a request from identity may proceed and records
	// it when it does. A refused request leaves the entry untouched.
	Admit(ctx context.Context, identity string) (bool, error)

	// Status is a read-only snapshot; it never counts as a request.
	Status(ctx context.Context, identity string) (Status, error)

	// Limit returns the configured requests per window.
	Limit() int

	GetStats() RateLimiterStats
}

// Status describes the current window for an identity
type Status struct {
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"resetIn"`
	Limited   bool          `json:"limited"`
}

// Entry is the per-identity window state
type Entry struct {
	Count     int       `json:"count"`
	ResetTime time.Time `json:"resetTime"`
}

// RateLimiterStats provides statistics about rate limiting
type RateLimiterStats struct {
	Backend         string `json:"backend"`
	TotalRequests   int64  `json:"totalRequests"`
	BlockedRequests int64  `json:"blockedRequests"`
	ActiveClients   int    `json:"activeClients"`
}

// Clock abstracts time so windows can be driven from tests
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// statusFor derives a Status from an entry. A nil entry, or one whose window
// has passed, means no history.
func statusFor(entry *Entry, cfg *Config, now time.Time) Status {
	if entry == nil || now.After(entry.ResetTime) {
		return Status{
			Remaining: cfg.MaxRequests,
			ResetIn:   cfg.Window,
			Limited:   false,
		}
	}

	return Status{
		Remaining: max(0, cfg.MaxRequests-entry.Count),
		ResetIn:   entry.ResetTime.Sub(now),
		Limited:   entry.Count >= cfg.MaxRequests,
	}
}
