package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moviehub-backend/internal/apperrors"
	"moviehub-backend/internal/models"

	"github.com/goccy/go-json"
)

// ProxyPath is where the proxy is mounted on this server
const ProxyPath = "/api/tmdb"

type identityKey struct{}

// WithClientIdentity attaches the end user's identity to ctx so proxy calls
// made on their behalf are rate limited against them.
func WithClientIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// ClientIdentityFrom returns the identity attached by WithClientIdentity
func ClientIdentityFrom(ctx context.Context) string {
	identity, _ := ctx.Value(identityKey{}).(string)
	return identity
}

// ProxyFetcher reads from the proxy over HTTP, the same way a browser does.
type ProxyFetcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewProxyFetcher creates a fetcher for the proxy served at siteURL
func NewProxyFetcher(siteURL string, timeout time.Duration) *ProxyFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ProxyFetcher{
		baseURL:    strings.TrimRight(siteURL, "/") + ProxyPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchPage fetches one upstream listing page through the proxy
func (f *ProxyFetcher) FetchPage(ctx context.Context, endpoint string, params url.Values) (*models.PagedResponse[models.Movie], error) {
	var page models.PagedResponse[models.Movie]
	if err := f.Get(ctx, endpoint, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get fetches endpoint through the proxy and decodes the body into dest.
// A non-2xx answer becomes an *apperrors.UpstreamError carrying the proxy's
// status and message.
func (f *ProxyFetcher) Get(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	target := f.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build proxy request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if identity := ClientIdentityFrom(ctx); identity != "" {
		req.Header.Set("X-Forwarded-For", identity)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading proxy body: %w", apperrors.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apperrors.UpstreamError{
			Status:  resp.StatusCode,
			Message: proxyErrorMessage(resp.StatusCode, data),
		}
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", apperrors.ErrTransport, endpoint, err)
	}
	return nil
}

// proxyErrorMessage prefers the body's message, then status_message, then the
// raw JSON body, and falls back to the status line for non-JSON bodies.
func proxyErrorMessage(status int, data []byte) string {
	var body struct {
		Message       string `json:"message"`
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Sprintf("HTTP error! status: %d", status)
	}

	switch {
	case body.Message != "":
		return body.Message
	case body.StatusMessage != "":
		return body.StatusMessage
	default:
		return string(data)
	}
}
