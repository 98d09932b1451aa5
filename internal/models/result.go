package models

// SearchResult pairs a resolved document with a similarity score
// (higher is more relevant).
type SearchResult struct {
	Document *Document `json:"document"`
	Score    float64   `json:"score"`
}

// SearchResponse is the response for a search request. Results are ordered
// by score descending.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}
