package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"moviehub-backend/internal/catalog"
	"moviehub-backend/internal/models"
)

// Fetcher reads one catalog document through the proxy
type Fetcher interface {
	Get(ctx context.Context, endpoint string, params url.Values, dest interface{}) error
}

type CatalogService struct {
	aggregator *catalog.Aggregator
	fetcher    Fetcher
}

func NewCatalogService(aggregator *catalog.Aggregator, fetcher Fetcher) *CatalogService {
	return &CatalogService{
		aggregator: aggregator,
		fetcher:    fetcher,
	}
}

type SearchRequest struct {
	Query  string   `form:"query" validate:"max=200"`
	Genre  *int     `form:"genre" validate:"omitempty,gt=0"`
	Year   *int     `form:"year" validate:"omitempty,gte=1870,lte=2100"`
	Rating *float64 `form:"rating" validate:"omitempty,gte=0,lte=10"`
	SortBy string   `form:"sort_by" validate:"omitempty,oneof=popularity rating release_date"`
	Page   int      `form:"page" validate:"omitempty,gte=1"`
}

// Filters converts the request into aggregator filters, defaulting the sort
func (r SearchRequest) Filters() models.Filters {
	filters := models.DefaultFilters()
	filters.Genre = r.Genre
	filters.Year = r.Year
	filters.Rating = r.Rating
	if r.SortBy != "" {
		filters.SortBy = models.SortOption(r.SortBy)
	}
	return filters
}

type PageRequest struct {
	Page int `form:"page" validate:"omitempty,gte=1,lte=500"`
}

// Search returns one UI page of results. With neither a query nor a filter
// there is nothing to search and an empty page is returned without fetching.
func (s *CatalogService) Search(ctx context.Context, req SearchRequest) (*models.AggregatedPage, error) {
	query := strings.TrimSpace(req.Query)
	filters := req.Filters()
	page := max(1, req.Page)

	if query == "" && filters.IsEmpty() {
		return &models.AggregatedPage{Page: page, Results: []models.Movie{}}, nil
	}

	return s.aggregator.FetchPage(ctx, query, filters, page)
}

func (s *CatalogService) GetMovieDetails(ctx context.Context, id int) (*models.MovieDetails, error) {
	var details models.MovieDetails
	if err := s.fetcher.Get(ctx, fmt.Sprintf("movie/%d", id), nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (s *CatalogService) GetRecommendations(ctx context.Context, id, page int) (*models.PagedResponse[models.Movie], error) {
	params := url.Values{"page": {strconv.Itoa(max(1, page))}}

	var recommendations models.PagedResponse[models.Movie]
	if err := s.fetcher.Get(ctx, fmt.Sprintf("movie/%d/recommendations", id), params, &recommendations); err != nil {
		return nil, err
	}
	if recommendations.Results == nil {
		recommendations.Results = []models.Movie{}
	}
	return &recommendations, nil
}

func (s *CatalogService) GetGenres(ctx context.Context) (*models.GenreList, error) {
	var genres models.GenreList
	if err := s.fetcher.Get(ctx, "genre/movie/list", nil, &genres); err != nil {
		return nil, err
	}
	return &genres, nil
}
