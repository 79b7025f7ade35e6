package authevent

import (
	"context"
	"time"
)

// Store persists auth events.
// The event service batches writes; implementations need not be async.
type Store interface {
	// Append stores events.
	Append(ctx context.Context, events ...Event) error

	// Flush forces pending events to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Filter specifies query parameters for event queries.
type Filter struct {
	// Since drops events older than this time (optional).
	Since time.Time
	// Type filters by event type (optional).
	Type string
	// UserID filters by account (optional).
	UserID string
	// Limit is the maximum number of events returned (default 100, max 1000).
	Limit int
}

// QueryStore provides read access to recent events, newest first.
type QueryStore interface {
	Query(ctx context.Context, filter Filter) ([]Event, error)
}
