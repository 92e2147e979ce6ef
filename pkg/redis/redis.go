package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"moviehub-backend/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const healthCheckInterval = 30 * time.Second

// Client wraps a go-redis client with background health reporting. The
// underlying client keeps its own connection pool and redials on demand, so
// the wrapper never swaps it out: limiters and caches may hold on to it.
type Client struct {
	client      *redis.Client
	config      config.RedisConfig
	logger      *zap.Logger
	mu          sync.RWMutex
	isConnected bool
	lastError   string
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

type HealthStatus struct {
	IsConnected    bool          `json:"isConnected"`
	LastPing       time.Time     `json:"lastPing"`
	ResponseTime   time.Duration `json:"responseTime"`
	ConnectionInfo string        `json:"connectionInfo"`
	Error          string        `json:"error,omitempty"`
}

// NewClient creates a new Redis client with connection pooling
func NewClient(cfg config.RedisConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opt, err := buildOptions(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		client: redis.NewClient(opt),
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	status := c.HealthCheck()
	if status.IsConnected {
		c.logger.Info("Redis connected", zap.String("addr", status.ConnectionInfo))
	} else {
		c.logger.Warn("Redis connection failed, will keep retrying",
			zap.String("addr", status.ConnectionInfo),
			zap.String("error", status.Error))
	}

	c.wg.Add(1)
	go c.healthCheckLoop()

	return c, nil
}

// NewFromClient wraps an existing go-redis client, e.g. one pointed at
// miniredis in tests. No background loop is started.
func NewFromClient(client *redis.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		client:      client,
		config:      config.RedisConfig{Host: client.Options().Addr},
		logger:      logger,
		isConnected: true,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func buildOptions(cfg config.RedisConfig) (*redis.Options, error) {
	var opt *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	// Apply additional configuration
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	opt.MinIdleConns = cfg.MinIdleConns
	opt.MaxRetries = cfg.MaxRetries
	opt.MinRetryBackoff = cfg.RetryDelay
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	opt.PoolTimeout = cfg.PoolTimeout

	return opt, nil
}

// GetClient returns the Redis client instance
func (c *Client) GetClient() *redis.Client {
	return c.client
}

// IsConnected returns the last observed connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// HealthCheck performs a health check and returns detailed status
func (c *Client) HealthCheck() HealthStatus {
	status := HealthStatus{
		ConnectionInfo: c.client.Options().Addr,
	}

	// Perform ping with timeout
	ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	status.ResponseTime = time.Since(start)
	status.LastPing = time.Now()

	c.mu.Lock()
	c.isConnected = err == nil
	if err != nil {
		c.lastError = err.Error()
	} else {
		c.lastError = ""
	}
	c.mu.Unlock()

	status.IsConnected = err == nil
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// healthCheckLoop runs periodic health checks and logs state changes
func (c *Client) healthCheckLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			wasConnected := c.IsConnected()
			status := c.HealthCheck()
			switch {
			case wasConnected && !status.IsConnected:
				c.logger.Warn("Redis health check failed", zap.String("error", status.Error))
			case !wasConnected && status.IsConnected:
				c.logger.Info("Redis connection restored")
			}
		}
	}
}

// Close gracefully shuts down the Redis client
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

// GetConnectionStats returns connection pool statistics
func (c *Client) GetConnectionStats() map[string]interface{} {
	stats := c.client.PoolStats()
	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"totalConns":  stats.TotalConns,
		"idleConns":   stats.IdleConns,
		"staleConns":  stats.StaleConns,
		"isConnected": c.IsConnected(),
	}
}
