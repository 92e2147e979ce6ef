package models

// AggregatedPage is one UI-sized page assembled from several upstream pages
type AggregatedPage struct {
	Page               int     `json:"page"`
	Results            []Movie `json:"results"`
	TotalPages         int     `json:"total_pages"`
	TotalResults       int     `json:"total_results"`
	UpstreamTotalPages int     `json:"upstream_total_pages"`
}
