package upstream

import (
	"strings"
	"time"
)

// Category groups upstream endpoints that share a cache lifetime
type Category string

const (
	CategoryPopular  Category = "popular"
	CategoryTrending Category = "trending"
	CategoryDetails  Category = "details"
	CategorySearch   Category = "search"
	CategoryGenres   Category = "genres"
)

// Lifetimes are cache durations per category. Time-sensitive listings are
// short-lived, per-item details long-lived, genre lists near static.
var Lifetimes = map[Category]time.Duration{
	CategoryPopular:  time.Hour,
	CategoryTrending: 30 * time.Minute,
	CategoryDetails:  24 * time.Hour,
	CategorySearch:   time.Hour,
	CategoryGenres:   30 * 24 * time.Hour,
}

// DefaultLifetime applies to paths no rule matches
const DefaultLifetime = time.Hour

type categoryRule struct {
	pattern  string
	category Category
}

// categoryRules are checked in order, first match wins. In a pattern "*"
// matches exactly one path segment and a trailing "**" matches the rest.
var categoryRules = []categoryRule{
	{"trending/**", CategoryTrending},
	{"movie/now_playing", CategoryTrending},
	{"movie/upcoming", CategoryTrending},
	{"genre/**", CategoryGenres},
	{"search/**", CategorySearch},
	{"discover/**", CategorySearch},
	{"movie/popular", CategoryPopular},
	{"movie/top_rated", CategoryPopular},
	{"movie/*/recommendations", CategoryPopular},
	{"movie/*/similar", CategoryPopular},
	{"movie/*", CategoryDetails},
	{"movie/*/**", CategoryDetails},
}

// CategoryForPath maps an upstream path such as "movie/550/videos" to its
// cache category.
func CategoryForPath(path string) Category {
	segments := splitPath(path)
	for _, rule := range categoryRules {
		if matchesPattern(segments, splitPath(rule.pattern)) {
			return rule.category
		}
	}
	return CategoryPopular
}

// LifetimeForPath returns the cache lifetime for an upstream path
func LifetimeForPath(path string) time.Duration {
	if lifetime, ok := Lifetimes[CategoryForPath(path)]; ok {
		return lifetime
	}
	return DefaultLifetime
}

// matchesPattern checks if path segments match a pattern with wildcards
func matchesPattern(segments, pattern []string) bool {
	for i, p := range pattern {
		if p == "**" {
			return i == len(pattern)-1 && len(segments) > i
		}
		if i >= len(segments) {
			return false
		}
		if p != "*" && p != segments[i] {
			return false
		}
	}
	return len(segments) == len(pattern)
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
