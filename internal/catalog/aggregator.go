// Package catalog re-buckets the upstream's fixed 20-item pages into the
// 50-item pages the UI shows.
package catalog

import (
	"context"
	"net/url"
	"time"

	"moviehub-backend/internal/apperrors"
	"moviehub-backend/internal/metrics"
	"moviehub-backend/internal/models"
	"moviehub-backend/pkg/cache"

	"go.uber.org/zap"
)

const (
	UIPageSize         = 50
	UpstreamPageSize   = 20
	UpstreamMaxPage    = 500
	UpstreamMaxResults = UpstreamPageSize * UpstreamMaxPage

	// MaxUIPage is the last UI page that can hold results
	MaxUIPage = (UpstreamMaxResults + UIPageSize - 1) / UIPageSize

	// DefaultPageTTL is how long an aggregated page is reused
	DefaultPageTTL = time.Hour

	searchEndpoint   = "search/movie"
	discoverEndpoint = "discover/movie"
)

// PageFetcher fetches one upstream listing page
type PageFetcher interface {
	FetchPage(ctx context.Context, endpoint string, params url.Values) (*models.PagedResponse[models.Movie], error)
}

// Aggregator assembles UI pages from upstream pages, caching each assembled
// page.
type Aggregator struct {
	fetcher PageFetcher
	store   cache.Store
	pageTTL time.Duration
	logger  *zap.Logger
}

// NewAggregator creates an aggregator. store may be nil to disable the page
// cache; a non-positive pageTTL selects DefaultPageTTL.
func NewAggregator(fetcher PageFetcher, store cache.Store, pageTTL time.Duration, logger *zap.Logger) *Aggregator {
	if pageTTL <= 0 {
		pageTTL = DefaultPageTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		fetcher: fetcher,
		store:   store,
		pageTTL: pageTTL,
		logger:  logger,
	}
}

// Endpoint picks full-text search when a query is given, discovery otherwise
func Endpoint(query string) string {
	if query != "" {
		return searchEndpoint
	}
	return discoverEndpoint
}

// FetchPage returns UI page number page (1-based) for query and filters. Any
// upstream failure aborts the whole page with an *apperrors.AggregationError;
// nothing partial is returned or cached.
func (a *Aggregator) FetchPage(ctx context.Context, query string, filters models.Filters, page int) (*models.AggregatedPage, error) {
	page = max(1, page)

	// The upstream serves no page past the ceiling. Checked before any index
	// arithmetic so huge page numbers cannot overflow.
	if page > MaxUIPage {
		return &models.AggregatedPage{
			Page:               page,
			Results:            []models.Movie{},
			TotalResults:       UpstreamMaxResults,
			TotalPages:         MaxUIPage,
			UpstreamTotalPages: UpstreamMaxPage,
		}, nil
	}

	startIndex := (page - 1) * UIPageSize
	startUpstreamPage := startIndex/UpstreamPageSize + 1
	offset := startIndex % UpstreamPageSize

	key := models.CacheKey(query, filters, page)
	if cached, ok := a.lookup(ctx, key); ok {
		return cached, nil
	}

	result, fetched, err := a.assemble(ctx, query, filters, page, startUpstreamPage, offset)
	metrics.AggregationUpstreamPages.Observe(float64(fetched))
	if err != nil {
		return nil, err
	}

	if a.store != nil {
		if err := a.store.Set(ctx, key, result, a.pageTTL); err != nil {
			a.logger.Warn("Failed to cache aggregated page", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

// assemble runs the serial fetch loop. The UI page is cut at raw upstream
// positions and deduplicated by ID afterwards, so neighbouring UI pages never
// share a slot even when upstream pages overlap.
func (a *Aggregator) assemble(ctx context.Context, query string, filters models.Filters, page, startUpstreamPage, offset int) (*models.AggregatedPage, int, error) {
	endpoint := Endpoint(query)
	var buffer []models.Movie
	var base *models.PagedResponse[models.Movie]
	fetched := 0

	for upstreamPage := startUpstreamPage; len(buffer) < offset+UIPageSize && upstreamPage <= UpstreamMaxPage; upstreamPage++ {
		resp, err := a.fetcher.FetchPage(ctx, endpoint, models.BuildDiscoverParams(query, filters, upstreamPage))
		if err != nil {
			return nil, fetched, &apperrors.AggregationError{Page: upstreamPage, Err: err}
		}
		fetched++
		if base == nil {
			base = resp
		}
		buffer = append(buffer, resp.Results...)

		if upstreamPage >= resp.TotalPages {
			break
		}
	}

	if base == nil {
		return &models.AggregatedPage{Page: page, Results: []models.Movie{}}, fetched, nil
	}

	start := min(offset, len(buffer))
	end := min(offset+UIPageSize, len(buffer))
	results := dedupByID(buffer[start:end])

	totalResults := min(base.TotalResults, UpstreamMaxResults)
	a.logger.Debug("Assembled page",
		zap.String("endpoint", endpoint),
		zap.Int("page", page),
		zap.Int("upstream_pages", fetched),
		zap.Int("results", len(results)))

	return &models.AggregatedPage{
		Page:               page,
		Results:            results,
		TotalResults:       totalResults,
		TotalPages:         ceilDiv(totalResults, UIPageSize),
		UpstreamTotalPages: base.TotalPages,
	}, fetched, nil
}

// dedupByID keeps the first occurrence of each movie, preserving order
func dedupByID(movies []models.Movie) []models.Movie {
	seen := make(map[int]struct{}, len(movies))
	out := make([]models.Movie, 0, len(movies))
	for _, movie := range movies {
		if _, dup := seen[movie.ID]; dup {
			continue
		}
		seen[movie.ID] = struct{}{}
		out = append(out, movie)
	}
	return out
}

func (a *Aggregator) lookup(ctx context.Context, key string) (*models.AggregatedPage, bool) {
	if a.store == nil {
		return nil, false
	}

	var cached models.AggregatedPage
	found, err := a.store.Get(ctx, key, &cached)
	if err != nil {
		a.logger.Warn("Page cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	metrics.RecordCacheLookup("page", found)
	if !found {
		return nil, false
	}
	if cached.Results == nil {
		cached.Results = []models.Movie{}
	}
	return &cached, true
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
