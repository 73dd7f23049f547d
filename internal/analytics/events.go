// Package analytics records what users ask the suggestion service for and
// aggregates it: popular queries, queries that found nothing, cache
// effectiveness and latency percentiles.
package analytics

import "time"

type EventType string

const (
	EventSuggest EventType = "suggest"
	EventRegexp  EventType = "regexp"
	EventResolve EventType = "resolve"
)

// SuggestEvent describes one answered request. Normalized is empty for
// regexp and resolve events.
type SuggestEvent struct {
	Type       EventType `json:"type"`
	Kind       string    `json:"kind,omitempty"`
	Query      string    `json:"query"`
	Normalized string    `json:"normalized,omitempty"`
	Candidates int       `json:"candidates"`
	TopScore   float64   `json:"top_score"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Empty      bool      `json:"empty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Tracker accepts events without blocking the request path.
type Tracker interface {
	Track(event SuggestEvent)
}

// Fanout forwards every event to each tracker in order.
type Fanout []Tracker

func (f Fanout) Track(event SuggestEvent) {
	for _, t := range f {
		if t != nil {
			t.Track(event)
		}
	}
}

// Discard drops events.
type Discard struct{}

func (Discard) Track(SuggestEvent) {}
