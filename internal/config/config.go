package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"moviehub-backend/internal/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultUpstreamBaseURL = "https://api.themoviedb.org/3"
	DefaultPort            = "8080"
)

// envFiles are loaded in order; godotenv never overrides a variable that is
// already set, so earlier files win over later ones and the real environment
// wins over both.
var envFiles = []string{".env.local", ".env"}

type Config struct {
	Port           string   `validate:"required,numeric"`
	SiteURL        string   `validate:"required,url"`
	Mode           string   `validate:"oneof=debug release test"`
	LogLevel       string   `validate:"oneof=debug info warn error"`
	AllowedOrigins []string `validate:"min=1"`
	Upstream       UpstreamConfig
	RateLimit      RateLimitConfig
	Cache          CacheConfig
	Redis          RedisConfig
}

// UpstreamConfig describes the catalog API the proxy forwards to.
type UpstreamConfig struct {
	BaseURL string        `validate:"required,url"`
	APIKey  string        `validate:"required"`
	Timeout time.Duration `validate:"gt=0"`
}

type RateLimitConfig struct {
	Backend     string        `validate:"oneof=memory redis"`
	MaxRequests int           `validate:"gt=0"`
	Window      time.Duration `validate:"gt=0"`
	Capacity    int           `validate:"gt=0"`
}

type CacheConfig struct {
	Backend  string        `validate:"oneof=memory redis"`
	Capacity int           `validate:"gt=0"`
	PageTTL  time.Duration `validate:"gt=0"`
}

type RedisConfig struct {
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	RetryDelay   time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// UsesRedis reports whether any backend was configured to run on Redis.
func (c *Config) UsesRedis() bool {
	return c.RateLimit.Backend == "redis" || c.Cache.Backend == "redis"
}

// Load reads .env files when present, then the process environment, and
// validates the result. A missing upstream credential is a configuration
// error: the caller must refuse to start.
func Load() (*Config, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, &apperrors.ConfigurationError{Problems: []string{fmt.Sprintf("%s: %v", file, err)}}
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := &envParser{getenv: getenv}

	port := p.str("PORT", DefaultPort)
	cfg := &Config{
		Port:           port,
		SiteURL:        strings.TrimRight(p.str("SITE_URL", "http://localhost:"+port), "/"),
		Mode:           p.str("GIN_MODE", "release"),
		LogLevel:       strings.ToLower(p.str("LOG_LEVEL", "info")),
		AllowedOrigins: splitList(p.str("ALLOWED_ORIGINS", "*")),
		Upstream: UpstreamConfig{
			BaseURL: strings.TrimRight(p.str("TMDB_API_BASE_URL", DefaultUpstreamBaseURL), "/"),
			APIKey:  strings.TrimSpace(getenv("TMDB_API_KEY")),
			Timeout: p.duration("UPSTREAM_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Backend:     strings.ToLower(p.str("RATE_LIMIT_BACKEND", "memory")),
			MaxRequests: p.integer("RATE_LIMIT_MAX_REQUESTS", 40),
			Window:      time.Duration(p.integer("RATE_LIMIT_WINDOW_MS", 60000)) * time.Millisecond,
			Capacity:    p.integer("RATE_LIMIT_CAPACITY", 500),
		},
		Cache: CacheConfig{
			Backend:  strings.ToLower(p.str("CACHE_BACKEND", "memory")),
			Capacity: p.integer("CACHE_CAPACITY", 1000),
			PageTTL:  p.duration("CACHE_PAGE_TTL", time.Hour),
		},
		Redis: RedisConfig{
			URL:          getenv("REDIS_URL"),
			Host:         p.str("REDIS_HOST", "localhost"),
			Port:         p.str("REDIS_PORT", "6379"),
			Password:     getenv("REDIS_PASSWORD"),
			DB:           p.integer("REDIS_DB", 0),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			MaxRetries:   p.integer("REDIS_MAX_RETRIES", 3),
			RetryDelay:   p.duration("REDIS_RETRY_DELAY", 100*time.Millisecond),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  p.duration("REDIS_POOL_TIMEOUT", 4*time.Second),
		},
	}

	problems := p.problems
	problems = append(problems, validate(cfg)...)
	if len(problems) > 0 {
		return nil, &apperrors.ConfigurationError{Problems: problems}
	}
	return cfg, nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.Upstream.APIKey != "" {
		out.Upstream.APIKey = "****"
	}
	if out.Redis.Password != "" {
		out.Redis.Password = "****"
	}
	if out.Redis.URL != "" {
		out.Redis.URL = "****"
	}
	return out
}

var envNames = map[string]string{
	"Port":                  "PORT",
	"SiteURL":               "SITE_URL",
	"Mode":                  "GIN_MODE",
	"LogLevel":              "LOG_LEVEL",
	"AllowedOrigins":        "ALLOWED_ORIGINS",
	"Upstream.BaseURL":      "TMDB_API_BASE_URL",
	"Upstream.APIKey":       "TMDB_API_KEY",
	"Upstream.Timeout":      "UPSTREAM_TIMEOUT",
	"RateLimit.Backend":     "RATE_LIMIT_BACKEND",
	"RateLimit.MaxRequests": "RATE_LIMIT_MAX_REQUESTS",
	"RateLimit.Window":      "RATE_LIMIT_WINDOW_MS",
	"RateLimit.Capacity":    "RATE_LIMIT_CAPACITY",
	"Cache.Backend":         "CACHE_BACKEND",
	"Cache.Capacity":        "CACHE_CAPACITY",
	"Cache.PageTTL":         "CACHE_PAGE_TTL",
}

func validate(cfg *Config) []string {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := strings.TrimPrefix(fieldError.StructNamespace(), "Config.")
		name := field
		if env, ok := envNames[field]; ok {
			name = env
		}
		switch fieldError.Tag() {
		case "required":
			problems = append(problems, name+" is required")
		case "oneof":
			problems = append(problems, fmt.Sprintf("%s must be one of: %s", name, fieldError.Param()))
		default:
			problems = append(problems, fmt.Sprintf("%s is invalid (%s)", name, fieldError.Tag()))
		}
	}
	return problems
}

type envParser struct {
	getenv   func(string) string
	problems []string
}

func (p *envParser) str(key, fallback string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (p *envParser) integer(key string, fallback int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s must be an integer, got %q", key, raw))
		return fallback
	}
	return v
}

// duration accepts Go duration strings ("30s") or a bare number of seconds.
func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s must be a duration, got %q", key, raw))
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
