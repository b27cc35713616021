package models

// SearchResult represents a single ranked product hit.
type SearchResult struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Brand       string  `json:"brand"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	// Image is the bare filename of the cached product image; the HTTP layer
	// resolves it into a fetchable URL.
	Image string `json:"image_url"`
}

// SearchResponse is the response for a search request, ordered by descending score.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query,omitempty"`
	// Expanded is the vibe-expanded query text actually embedded, when expansion ran.
	Expanded string `json:"expanded_query,omitempty"`
}
