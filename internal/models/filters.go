package models

import (
	"fmt"
	"net/url"
	"strconv"
)

// SortOption is the UI-level ordering choice
type SortOption string

const (
	SortPopularity  SortOption = "popularity"
	SortRating      SortOption = "rating"
	SortReleaseDate SortOption = "release_date"
)

// upstreamSort maps UI sort options to the upstream sort_by values
var upstreamSort = map[SortOption]string{
	SortPopularity:  "popularity.desc",
	SortRating:      "vote_average.desc",
	SortReleaseDate: "primary_release_date.desc",
}

// Filters narrows a discover/search listing. Nil fields are unset.
type Filters struct {
	Genre  *int       `json:"genre"`
	Year   *int       `json:"year"`
	Rating *float64   `json:"rating"`
	SortBy SortOption `json:"sortBy"`
}

// DefaultFilters returns the filter state a new visitor starts with
func DefaultFilters() Filters {
	return Filters{SortBy: SortPopularity}
}

// IsEmpty reports whether no narrowing filter is set; the sort order alone
// does not count.
func (f Filters) IsEmpty() bool {
	return f.Genre == nil && f.Year == nil && f.Rating == nil
}

// BuildDiscoverParams renders query and filters as upstream query parameters
// for the given upstream page.
func BuildDiscoverParams(query string, filters Filters, page int) url.Values {
	params := url.Values{}

	if query != "" {
		params.Set("query", query)
	}
	if filters.Genre != nil {
		params.Set("with_genres", strconv.Itoa(*filters.Genre))
	}
	if filters.Year != nil {
		params.Set("primary_release_year", strconv.Itoa(*filters.Year))
	}
	if filters.Rating != nil {
		params.Set("vote_average.gte", strconv.FormatFloat(*filters.Rating, 'f', -1, 64))
	}
	if sortBy, ok := upstreamSort[filters.SortBy]; ok {
		params.Set("sort_by", sortBy)
	}

	params.Set("page", strconv.Itoa(max(1, page)))
	return params
}

// CacheKey identifies one aggregated page for the given query and filters
func CacheKey(query string, filters Filters, page int) string {
	return fmt.Sprintf("search-%s-%s-%s-%s-%s-%d",
		query,
		optionalInt(filters.Genre),
		optionalInt(filters.Year),
		optionalFloat(filters.Rating),
		filters.SortBy,
		page,
	)
}

func optionalInt(v *int) string {
	if v == nil {
		return "null"
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
