package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
	EventError      EventType = "error"
)

// Sources a search can come from.
const (
	SourceHTTP = "http"
	SourceMCP  = "mcp"
	SourceCLI  = "cli"
)

// SearchEvent describes one answered (or failed) query.
type SearchEvent struct {
	Type         EventType `json:"type"`
	Query        string    `json:"query"`
	Tokens       []string  `json:"tokens"`
	TotalHits    int       `json:"total_hits"`
	Returned     int       `json:"returned"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	IndexVersion string    `json:"index_version,omitempty"`
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

// Classify returns the event type for a finished search.
func Classify(totalHits int, cacheHit bool, err error) EventType {
	switch {
	case err != nil:
		return EventError
	case totalHits == 0:
		return EventZeroResult
	case cacheHit:
		return EventCacheHit
	default:
		return EventCacheMiss
	}
}
