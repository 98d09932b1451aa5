package models

import (
	"fmt"
	"strings"
)

// Search modes. Semantic runs vector nearest-neighbor search; keyword runs
// a lexical match (exact case numbers, article references).
const (
	ModeSemantic = "semantic"
	ModeKeyword  = "keyword"
)

// SearchQuery represents a search request.
type SearchQuery struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// Validate checks the query and normalizes K and Mode in place.
// Returns an error for an empty query or an unknown mode.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K <= 0 {
		q.K = 10
	}
	if q.K > 100 {
		q.K = 100
	}
	switch q.Mode {
	case "":
		q.Mode = ModeSemantic
	case ModeSemantic, ModeKeyword:
	default:
		return fmt.Errorf("unknown search mode: %s", q.Mode)
	}
	return nil
}
