// Package upstream talks to the movie catalog API: it injects the server-side
// credential, caches successful bodies and fails fast when the API is down.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moviehub-backend/internal/apperrors"
	"moviehub-backend/internal/config"
	"moviehub-backend/internal/metrics"
	"moviehub-backend/pkg/cache"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// FallbackErrorMessage is used when an upstream error body carries no message
	FallbackErrorMessage = "Failed to fetch from TMDB"

	credentialParam = "api_key"
	breakerName     = "tmdb-api"
	maxBodyBytes    = 8 << 20
)

// ErrInvalidPath is returned for empty paths or paths with dot segments
var ErrInvalidPath = errors.New("invalid upstream path")

// Result is the outcome of an upstream call that reached the API. Exactly one
// of Body and Failure is set.
type Result struct {
	Body    json.RawMessage
	Failure *apperrors.UpstreamError
	Cached  bool
}

// OK reports whether the upstream answered with a success body
func (r Result) OK() bool {
	return r.Failure == nil
}

// errorBody is the upstream's error envelope
type errorBody struct {
	StatusCode    *int   `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// Client fetches from the upstream catalog API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	store      cache.Store
	breaker    *gobreaker.CircuitBreaker[Result]
	group      singleflight.Group
	logger     *zap.Logger
}

// NewClient creates an upstream client. store may be nil to disable response
// caching.
func NewClient(cfg config.UpstreamConfig, store cache.Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
		logger:     logger,
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A caller hanging up says nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return c
}

// Configured reports whether a credential is available
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// BreakerState returns the circuit breaker state name
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// CleanPath validates a client-supplied path and returns it without leading or
// trailing slashes.
func CleanPath(raw string) (string, error) {
	segments := splitPath(raw)
	if len(segments) == 0 {
		return "", ErrInvalidPath
	}
	for _, s := range segments {
		if s == "." || s == ".." {
			return "", ErrInvalidPath
		}
	}
	return strings.Join(segments, "/"), nil
}

// BuildURL joins path onto the base URL and appends query with the credential
// set. Any client-supplied credential is replaced.
func (c *Client) BuildURL(path string, query url.Values) (string, error) {
	target, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return "", fmt.Errorf("failed to build upstream url: %w", err)
	}

	params := cloneValues(query)
	params.Set(credentialParam, c.apiKey)
	return target + "?" + params.Encode(), nil
}

// Fetch retrieves path from the upstream API. Upstream non-success answers are
// returned as a Result with Failure set; a non-nil error means the upstream
// could not be reached or answered with something unreadable, and wraps
// apperrors.ErrTransport. Successful bodies are cached for lifetime.
func (c *Client) Fetch(ctx context.Context, path string, query url.Values, lifetime time.Duration) (Result, error) {
	target, err := c.BuildURL(path, query)
	if err != nil {
		return Result{}, err
	}
	key := cacheKey(path, query)

	if c.store != nil && lifetime > 0 {
		var body json.RawMessage
		found, err := c.store.Get(ctx, key, &body)
		if err != nil {
			c.logger.Warn("Upstream cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheLookup("upstream", found)
		if found {
			return Result{Body: body, Cached: true}, nil
		}
	}

	// The shared fetch is detached from any one caller; the http client
	// timeout bounds it. Each caller stops waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	flight := c.group.DoChan(key, func() (interface{}, error) {
		result, err := c.breaker.Execute(func() (Result, error) {
			return c.do(shared, path, target)
		})
		if err == nil && result.OK() && c.store != nil && lifetime > 0 {
			if err := c.store.Set(shared, key, result.Body, lifetime); err != nil {
				c.logger.Warn("Upstream cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return result, err
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	if res.Err != nil {
		if errors.Is(res.Err, gobreaker.ErrOpenState) || errors.Is(res.Err, gobreaker.ErrTooManyRequests) {
			return Result{}, fmt.Errorf("%w: %w", apperrors.ErrTransport, res.Err)
		}
		return Result{}, res.Err
	}
	return res.Val.(Result), nil
}

func (c *Client) do(ctx context.Context, path, target string) (Result, error) {
	category := string(CategoryForPath(path))
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", apperrors.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstream(category, "transport_error", time.Since(start))
		return Result{}, fmt.Errorf("%w: %w", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordUpstream(category, "transport_error", time.Since(start))
		return Result{}, fmt.Errorf("%w: reading body: %w", apperrors.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordUpstream(category, "upstream_error", time.Since(start))
		return Result{Failure: parseFailure(resp.StatusCode, data)}, nil
	}

	if !json.Valid(data) {
		metrics.RecordUpstream(category, "transport_error", time.Since(start))
		return Result{}, fmt.Errorf("%w: malformed JSON body from %s", apperrors.ErrTransport, path)
	}

	metrics.RecordUpstream(category, "success", time.Since(start))
	return Result{Body: json.RawMessage(data)}, nil
}

// parseFailure reads the upstream error envelope, tolerating bodies that are
// not JSON at all.
func parseFailure(status int, data []byte) *apperrors.UpstreamError {
	failure := &apperrors.UpstreamError{Status: status, Message: FallbackErrorMessage}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return failure
	}
	if body.StatusMessage != "" {
		failure.Message = body.StatusMessage
	}
	failure.Code = body.StatusCode
	return failure
}

// cacheKey identifies a response by path and client query. The credential is
// never part of the key.
func cacheKey(path string, query url.Values) string {
	params := cloneValues(query)
	params.Del(credentialParam)
	return "upstream:" + path + "?" + params.Encode()
}

func cloneValues(query url.Values) url.Values {
	params := make(url.Values, len(query)+1)
	for k, v := range query {
		params[k] = append([]string(nil), v...)
	}
	return params
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
