// Package events publishes grocery-pipeline events to Kafka and aggregates
// them on the consuming side.
package events

import "time"

// EventType travels in the Kafka event_type header.
type EventType string

const (
	EventResolve EventType = "resolve"
	EventCart    EventType = "cart"
)

// ResolveEvent describes one resolver run.
type ResolveEvent struct {
	RecipeID          string    `json:"recipe_id"`
	UserID            string    `json:"user_id"`
	CartOptionsID     string    `json:"cart_options_id,omitempty"`
	Fallback          bool      `json:"fallback"`
	Ingredients       int       `json:"ingredients"`
	Resolved          int       `json:"resolved"`
	UnresolvedTerms   []string  `json:"unresolved_terms,omitempty"`
	PermanentFailures int       `json:"permanent_failures"`
	LatencyMs         int64     `json:"latency_ms"`
	RequestID         string    `json:"request_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// CartEvent describes one assembled cart.
type CartEvent struct {
	CartID    string    `json:"cart_id"`
	RecipeID  string    `json:"recipe_id"`
	UserID    string    `json:"user_id"`
	Lines     int       `json:"lines"`
	Units     int       `json:"units"`
	Total     float64   `json:"total"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker is what the pipeline reports to. Implementations must not block.
type Tracker interface {
	TrackResolve(ResolveEvent)
	TrackCart(CartEvent)
}

// Discard drops every event.
var Discard Tracker = discard{}

type discard struct{}

func (discard) TrackResolve(ResolveEvent) {}
func (discard) TrackCart(CartEvent)       {}
