package feed

import (
	"github.com/hpungsan/echofeed/internal/narrative"
)

// Pagination limits
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query  string // empty matches every post
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items      []narrative.Summary `json:"items"`
	Pagination Pagination          `json:"pagination"`
	Sort       string              `json:"sort"` // "load-order"
}

// Search filters the library with the boolean matcher and pages through
// the results. There is no ranking; results keep load order.
func Search(lib *Library, input SearchInput) *SearchOutput {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	offset := max(input.Offset, 0)

	filtered := Filter(lib.Posts(), input.Query)

	items := []narrative.Summary{}
	for i := offset; i < len(filtered) && len(items) < limit; i++ {
		items = append(items, filtered[i].ToSummary())
	}

	return &SearchOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < len(filtered),
			Total:   len(filtered),
		},
		Sort: "load-order",
	}
}
