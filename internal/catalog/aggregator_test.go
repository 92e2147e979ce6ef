package catalog

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"moviehub-backend/internal/apperrors"
	"moviehub-backend/internal/models"
	"moviehub-backend/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves numbered upstream pages: page p holds IDs
// (p-1)*20+1 .. p*20 unless overridden.
type fakeFetcher struct {
	mu           sync.Mutex
	totalPages   int
	totalResults int
	pages        map[int][]models.Movie
	failAt       int
	calls        []int
	endpoints    []string
	params       []url.Values
}

func newFakeFetcher(totalPages, totalResults int) *fakeFetcher {
	return &fakeFetcher{
		totalPages:   totalPages,
		totalResults: totalResults,
		pages:        make(map[int][]models.Movie),
	}
}

func (f *fakeFetcher) FetchPage(_ context.Context, endpoint string, params url.Values) (*models.PagedResponse[models.Movie], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	page, _ := strconv.Atoi(params.Get("page"))
	f.calls = append(f.calls, page)
	f.endpoints = append(f.endpoints, endpoint)
	f.params = append(f.params, params)

	if page == f.failAt {
		return nil, &apperrors.UpstreamError{Status: 429, Message: "Too many requests. Please try again later."}
	}

	results, ok := f.pages[page]
	if !ok {
		results = moviesRange((page-1)*UpstreamPageSize+1, UpstreamPageSize)
	}
	return &models.PagedResponse[models.Movie]{
		Page:         page,
		Results:      results,
		TotalPages:   f.totalPages,
		TotalResults: f.totalResults,
	}, nil
}

func moviesRange(firstID, n int) []models.Movie {
	movies := make([]models.Movie, n)
	for i := range movies {
		movies[i] = models.Movie{ID: firstID + i, Title: "Movie " + strconv.Itoa(firstID+i)}
	}
	return movies
}

func ids(movies []models.Movie) []int {
	out := make([]int, len(movies))
	for i, m := range movies {
		out[i] = m.ID
	}
	return out
}

func newTestAggregator(t *testing.T, fetcher PageFetcher) (*Aggregator, cache.Store) {
	t.Helper()
	store, err := cache.NewMemoryCacheManager(cache.DefaultCacheConfig())
	require.NoError(t, err)
	return NewAggregator(fetcher, store, DefaultPageTTL, nil), store
}

func TestAggregator_FirstPage(t *testing.T) {
	fetcher := newFakeFetcher(500, 10000)
	agg, _ := newTestAggregator(t, fetcher)

	page, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 1)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, fetcher.calls)
	assert.Len(t, page.Results, UIPageSize)
	assert.Equal(t, 1, page.Results[0].ID)
	assert.Equal(t, 50, page.Results[49].ID)
	assert.Equal(t, 10000, page.TotalResults)
	assert.Equal(t, 200, page.TotalPages)
	assert.Equal(t, 500, page.UpstreamTotalPages)
}

func TestAggregator_SecondPageStartsAtUpstreamPageThree(t *testing.T) {
	fetcher := newFakeFetcher(500, 10000)
	agg, _ := newTestAggregator(t, fetcher)

	page, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 2)
	require.NoError(t, err)

	require.NotEmpty(t, fetcher.calls)
	assert.Equal(t, 3, fetcher.calls[0])
	assert.Equal(t, []int{3, 4, 5}, fetcher.calls)

	// Offset 50 is index 10 of upstream page 3
	assert.Equal(t, 51, page.Results[0].ID)
	assert.Equal(t, 100, page.Results[49].ID)
}

func TestAggregator_DedupAcrossPageBoundary(t *testing.T) {
	fetcher := newFakeFetcher(500, 10000)
	// Upstream page 2 repeats the last item of page 1
	fetcher.pages[2] = append([]models.Movie{{ID: 20}}, moviesRange(21, 19)...)
	agg, _ := newTestAggregator(t, fetcher)

	page, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 1)
	require.NoError(t, err)

	// The repeated slot is dropped rather than topped up from the next page
	require.Len(t, page.Results, UIPageSize-1)
	seen := map[int]bool{}
	for _, m := range page.Results {
		assert.False(t, seen[m.ID], "duplicate id %d", m.ID)
		seen[m.ID] = true
	}

	// Upstream order is preserved
	assert.Equal(t, []int{19, 20, 21}, ids(page.Results[18:21]))
}

func TestAggregator_ConsecutivePagesShareNoIDs(t *testing.T) {
	fetcher := newFakeFetcher(500, 10000)
	// Upstream page 3 repeats the last item of page 2 at its head
	fetcher.pages[3] = append([]models.Movie{{ID: 40}}, moviesRange(41, 19)...)
	agg, _ := newTestAggregator(t, fetcher)

	first, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 1)
	require.NoError(t, err)
	second, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 2)
	require.NoError(t, err)

	onFirst := map[int]bool{}
	for _, m := range first.Results {
		onFirst[m.ID] = true
	}
	for _, m := range second.Results {
		assert.False(t, onFirst[m.ID], "id %d appears on pages 1 and 2", m.ID)
	}

	assert.Len(t, first.Results, UIPageSize-1)
	assert.Equal(t, 49, first.Results[len(first.Results)-1].ID)
	assert.Equal(t, 50, second.Results[0].ID)
}

func TestAggregator_TotalsComeFromFirstResponse(t *testing.T) {
	fetcher := &shrinkingFetcher{fakeFetcher: newFakeFetcher(500, 10000)}
	agg, _ := newTestAggregator(t, fetcher)

	page, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 1)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, fetcher.calls)
	assert.Equal(t, 10000, page.TotalResults)
	assert.Equal(t, 200, page.TotalPages)
	assert.Equal(t, 500, page.UpstreamTotalPages)
}

// shrinkingFetcher reports smaller totals on every page after the first
type shrinkingFetcher struct {
	*fakeFetcher
}

func (f *shrinkingFetcher) FetchPage(ctx context.Context, endpoint string, params url.Values) (*models.PagedResponse[models.Movie], error) {
	resp, err := f.fakeFetcher.FetchPage(ctx, endpoint, params)
	if err != nil || resp.Page == 1 {
		return resp, err
	}
	resp.TotalPages = 400
	resp.TotalResults = 8000
	return resp, nil
}

func TestAggregator_HugePageNumberIsCeiling(t *testing.T) {
	fetcher := newFakeFetcher(500, 10000)
	agg, _ := newTestAggregator(t, fetcher)

	for _, n := range []int{MaxUIPage + 1, 368934881474191033, math.MaxInt} {
		page, err := agg.FetchPage(context.Background(), "x", models.DefaultFilters(), n)
		require.NoError(t, err)
		assert.Equal(t, n, page.Page)
		assert.Empty(t, page.Results)
		assert.Equal(t, UpstreamMaxResults, page.TotalResults)
		assert.Equal(t, MaxUIPage, page.TotalPages)
	}
	assert.Empty(t, fetcher.calls)
}

func TestAggregator_CeilingMakesNoCalls(t *testing.T) {
	fetcher := newFakeFetcher(500, 10000)
	agg, _ := newTestAggregator(t, fetcher)

	// Page 201 needs upstream page 501
	page, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 201)
	require.NoError(t, err)

	assert.Empty(t, fetcher.calls)
	assert.NotNil(t, page.Results)
	assert.Empty(t, page.Results)
	assert.Equal(t, 10000, page.TotalResults)
	assert.Equal(t, 200, page.TotalPages)
	assert.Equal(t, 500, page.UpstreamTotalPages)
}

func TestAggregator_LastReachablePage(t *testing.T) {
	fetcher := newFakeFetcher(500, 250000)
	agg, _ := newTestAggregator(t, fetcher)

	page, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 200)
	require.NoError(t, err)

	assert.Equal(t, []int{498, 499, 500}, fetcher.calls)
	assert.Len(t, page.Results, UIPageSize)
	assert.Equal(t, 10000, page.TotalResults)
	assert.Equal(t, 200, page.TotalPages)
}

func TestAggregator_UpstreamExhausted(t *testing.T) {
	fetcher := newFakeFetcher(2, 35)
	fetcher.pages[2] = moviesRange(21, 15)
	agg, _ := newTestAggregator(t, fetcher)

	page, err := agg.FetchPage(context.Background(), "inception", models.DefaultFilters(), 1)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, fetcher.calls)
	assert.Len(t, page.Results, 35)
	assert.Equal(t, 35, page.TotalResults)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, searchEndpoint, fetcher.endpoints[0])
	assert.Equal(t, "inception", fetcher.params[0].Get("query"))
}

func TestAggregator_NoResults(t *testing.T) {
	fetcher := newFakeFetcher(0, 0)
	fetcher.pages[1] = []models.Movie{}
	agg, _ := newTestAggregator(t, fetcher)

	page, err := agg.FetchPage(context.Background(), "zzzzzz", models.DefaultFilters(), 1)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, fetcher.calls)
	assert.Empty(t, page.Results)
	assert.Equal(t, 0, page.TotalResults)
	assert.Equal(t, 0, page.TotalPages)
}

func TestAggregator_PageBeyondResults(t *testing.T) {
	fetcher := newFakeFetcher(2, 40)
	fetcher.pages[6] = []models.Movie{}
	agg, _ := newTestAggregator(t, fetcher)

	page, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 3)
	require.NoError(t, err)

	// Upstream page 6 reports only 2 pages exist, so the loop stops there
	assert.Equal(t, []int{6}, fetcher.calls)
	assert.Empty(t, page.Results)
	assert.Equal(t, 1, page.TotalPages)
}

func TestAggregator_FailureAbortsAndCachesNothing(t *testing.T) {
	fetcher := newFakeFetcher(500, 10000)
	fetcher.failAt = 2
	agg, store := newTestAggregator(t, fetcher)

	page, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 1)
	require.Error(t, err)
	assert.Nil(t, page)

	var aggErr *apperrors.AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, 2, aggErr.Page)
	upstreamErr, ok := apperrors.AsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, 429, upstreamErr.Status)

	var cached models.AggregatedPage
	found, err := store.Get(context.Background(), models.CacheKey("", models.DefaultFilters(), 1), &cached)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAggregator_CacheHitSkipsFetches(t *testing.T) {
	fetcher := newFakeFetcher(500, 10000)
	agg, _ := newTestAggregator(t, fetcher)

	genre := 28
	filters := models.Filters{Genre: &genre, SortBy: models.SortRating}

	first, err := agg.FetchPage(context.Background(), "", filters, 1)
	require.NoError(t, err)
	calls := len(fetcher.calls)
	require.Equal(t, 3, calls)

	second, err := agg.FetchPage(context.Background(), "", filters, 1)
	require.NoError(t, err)
	assert.Equal(t, calls, len(fetcher.calls))
	assert.Equal(t, first, second)

	// A different filter set is a different key
	_, err = agg.FetchPage(context.Background(), "", models.DefaultFilters(), 1)
	require.NoError(t, err)
	assert.Equal(t, calls*2, len(fetcher.calls))

	assert.Equal(t, "28", fetcher.params[0].Get("with_genres"))
	assert.Equal(t, "vote_average.desc", fetcher.params[0].Get("sort_by"))
	assert.Equal(t, discoverEndpoint, fetcher.endpoints[0])
}

func TestAggregator_WithoutStore(t *testing.T) {
	fetcher := newFakeFetcher(1, 5)
	fetcher.pages[1] = moviesRange(1, 5)
	agg := NewAggregator(fetcher, nil, 0, nil)

	for i := 0; i < 2; i++ {
		page, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 1)
		require.NoError(t, err)
		assert.Len(t, page.Results, 5)
	}
	assert.Equal(t, []int{1, 1}, fetcher.calls)
}

func TestAggregator_PageBelowOneIsFirstPage(t *testing.T) {
	fetcher := newFakeFetcher(500, 10000)
	agg, _ := newTestAggregator(t, fetcher)

	page, err := agg.FetchPage(context.Background(), "", models.DefaultFilters(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, fetcher.calls[0])
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, 0, ceilDiv(0, UIPageSize))
	assert.Equal(t, 1, ceilDiv(1, UIPageSize))
	assert.Equal(t, 1, ceilDiv(50, UIPageSize))
	assert.Equal(t, 2, ceilDiv(51, UIPageSize))
	assert.Equal(t, 200, ceilDiv(UpstreamMaxResults, UIPageSize))
}
