// Package catalog talks to the retailer's signed product-search API. A
// search never returns a Go error: every attempt yields a Result whose
// Status drives the retry decision, and the final Result is what callers
// see.
package catalog

import "context"

// Status classifies a search attempt or a finished search.
type Status int

const (
	StatusOK Status = iota
	StatusNoResults
	StatusTransient
	StatusPermanent
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoResults:
		return "no_results"
	case StatusTransient:
		return "transient"
	case StatusPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Item is a decoded catalog product. Items that do not fit this shape are
// dropped while parsing.
type Item struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	SalePrice float64 `json:"sale_price"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Available bool    `json:"available"`
}

// Result is the outcome of a search. Items is set only for StatusOK.
// HTTPStatus is zero when no response was received.
type Result struct {
	Status     Status
	Items      []Item
	HTTPStatus int
	Err        error
}

// Searcher is the seam the resolver depends on. The HTTP Client, the
// Redis-backed cache and test doubles all implement it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) Result
}
