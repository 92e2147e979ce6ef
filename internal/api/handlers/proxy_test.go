package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"moviehub-backend/internal/api/middleware"
	"moviehub-backend/internal/config"
	"moviehub-backend/internal/upstream"
	"moviehub-backend/pkg/cache"
	"moviehub-backend/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type proxyFixture struct {
	router  *gin.Engine
	limiter *ratelimit.MemoryRateLimiter
	store   cache.Store
}

func setupProxyRouter(t *testing.T, upstreamURL, apiKey string, maxRequests int) *proxyFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.MaxRequests = maxRequests
	limiter, err := ratelimit.NewMemoryRateLimiter(limiterConfig)
	require.NoError(t, err)

	store, err := cache.NewMemoryCacheManager(cache.DefaultCacheConfig())
	require.NoError(t, err)

	client := upstream.NewClient(config.UpstreamConfig{
		BaseURL: upstreamURL,
		APIKey:  apiKey,
		Timeout: 2 * time.Second,
	}, store, nil)
	handler := NewProxyHandler(client, limiter, zap.NewNop())

	router := gin.New()
	router.GET("/api/tmdb/*path",
		handler.RequireCredential,
		middleware.RateLimitMiddleware(limiter, zap.NewNop()),
		handler.Get,
	)
	router.OPTIONS("/api/tmdb/*path", handler.Options)

	return &proxyFixture{router: router, limiter: limiter, store: store}
}

func (f *proxyFixture) do(method, target, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestProxyHandler_Success(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		assert.Equal(t, "/trending/movie/week", r.URL.Path)
		w.Write([]byte(`{"page":1,"results":[{"id":1}]}`))
	}))
	defer server.Close()

	fixture := setupProxyRouter(t, server.URL, "server-key", 40)
	w := fixture.do(http.MethodGet, "/api/tmdb/trending/movie/week?api_key=stolen&page=1", "1.2.3.4")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"page":1,"results":[{"id":1}]}`, w.Body.String())
	assert.Equal(t, "server-key", gotQuery.Get("api_key"))
	assert.Equal(t, "1", gotQuery.Get("page"))

	assert.Equal(t, "public, s-maxage=1800, stale-while-revalidate=86400", w.Header().Get("Cache-Control"))
	assert.Equal(t, "40", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "39", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	// Served from the response cache, still counted against the client
	w = fixture.do(http.MethodGet, "/api/tmdb/trending/movie/week?page=1", "1.2.3.4")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "38", w.Header().Get("X-RateLimit-Remaining"))
}

func TestProxyHandler_CacheLifetimeByCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	fixture := setupProxyRouter(t, server.URL, "server-key", 40)
	tests := map[string]string{
		"/api/tmdb/genre/movie/list":            "public, s-maxage=2592000, stale-while-revalidate=86400",
		"/api/tmdb/movie/550":                   "public, s-maxage=86400, stale-while-revalidate=86400",
		"/api/tmdb/movie/550/recommendations":   "public, s-maxage=3600, stale-while-revalidate=86400",
		"/api/tmdb/search/movie?query=alien":    "public, s-maxage=3600, stale-while-revalidate=86400",
		"/api/tmdb/movie/now_playing?region=US": "public, s-maxage=1800, stale-while-revalidate=86400",
	}

	for target, want := range tests {
		t.Run(target, func(t *testing.T) {
			w := fixture.do(http.MethodGet, target, "5.5.5.5")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, want, w.Header().Get("Cache-Control"))
		})
	}
}

func TestProxyHandler_UpstreamNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status_code":34,"status_message":"not found"}`))
	}))
	defer server.Close()

	fixture := setupProxyRouter(t, server.URL, "server-key", 40)
	w := fixture.do(http.MethodGet, "/api/tmdb/movie/999999999", "1.2.3.4")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Upstream API error","message":"not found","statusCode":34}`, w.Body.String())
	assert.Empty(t, w.Header().Get("Cache-Control"))
}

func TestProxyHandler_UpstreamErrorWithoutJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer server.Close()

	fixture := setupProxyRouter(t, server.URL, "server-key", 40)
	w := fixture.do(http.MethodGet, "/api/tmdb/movie/popular", "1.2.3.4")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"Upstream API error","message":"Failed to fetch from TMDB"}`, w.Body.String())
}

func TestProxyHandler_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	fixture := setupProxyRouter(t, server.URL, "server-key", 40)
	w := fixture.do(http.MethodGet, "/api/tmdb/movie/popular", "1.2.3.4")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Network error","message":"Failed to connect to TMDB API"}`, w.Body.String())
}

func TestProxyHandler_MissingCredential(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	fixture := setupProxyRouter(t, server.URL, "", 40)
	w := fixture.do(http.MethodGet, "/api/tmdb/movie/popular", "1.2.3.4")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Server configuration error","message":"TMDB API key is not configured"}`, w.Body.String())
	assert.Equal(t, int32(0), calls.Load())

	status, err := fixture.limiter.Status(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 40, status.Remaining)
}

func TestProxyHandler_RateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	fixture := setupProxyRouter(t, server.URL, "server-key", 2)
	assert.Equal(t, http.StatusOK, fixture.do(http.MethodGet, "/api/tmdb/movie/popular", "1.2.3.4").Code)
	assert.Equal(t, http.StatusOK, fixture.do(http.MethodGet, "/api/tmdb/movie/top_rated", "1.2.3.4").Code)

	w := fixture.do(http.MethodGet, "/api/tmdb/movie/upcoming", "1.2.3.4")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

	body := decodeBody(t, w)
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.Contains(t, body, "resetIn")

	// The refused request never reached the upstream
	assert.Equal(t, int32(2), calls.Load())
}

func TestProxyHandler_OptionsConsumesNoQuota(t *testing.T) {
	fixture := setupProxyRouter(t, "http://127.0.0.1:1", "server-key", 1)

	for i := 0; i < 5; i++ {
		w := fixture.do(http.MethodOptions, "/api/tmdb/movie/popular", "1.2.3.4")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
	}

	status, err := fixture.limiter.Status(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Remaining)
	assert.False(t, status.Limited)
}

func TestProxyHandler_InvalidPath(t *testing.T) {
	fixture := setupProxyRouter(t, "http://127.0.0.1:1", "server-key", 40)

	w := fixture.do(http.MethodGet, "/api/tmdb/", "1.2.3.4")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid path", decodeBody(t, w)["error"])
}
