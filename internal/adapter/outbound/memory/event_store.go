package memory

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/yazcar/yazcarfax/internal/domain/authevent"
)

const defaultRecentCap = 1000

// EventStore implements authevent.Store writing JSON lines to a writer.
// It also keeps a bounded ring buffer of recent events for queries.
type EventStore struct {
	encoder *json.Encoder
	writer  io.Writer
	mu      sync.Mutex
	recent  []authevent.Event
	cap     int
}

// NewEventStore creates an event store writing to w (discarded when nil).
// A non-positive capacity uses the default of 1000.
func NewEventStore(w io.Writer, capacity int) *EventStore {
	if w == nil {
		w = io.Discard
	}
	if capacity <= 0 {
		capacity = defaultRecentCap
	}
	return &EventStore{
		encoder: json.NewEncoder(w),
		writer:  w,
		recent:  make([]authevent.Event, 0, capacity),
		cap:     capacity,
	}
}

// Append writes events and keeps them in the ring buffer.
func (s *EventStore) Append(ctx context.Context, events ...authevent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if err := s.encoder.Encode(e); err != nil {
			return err
		}
		if len(s.recent) >= s.cap {
			copy(s.recent, s.recent[1:])
			s.recent[len(s.recent)-1] = e
		} else {
			s.recent = append(s.recent, e)
		}
	}
	return nil
}

// Flush is a no-op; Append writes through.
func (s *EventStore) Flush(ctx context.Context) error {
	return nil
}

// Close closes the writer when it is a file other than stdout/stderr.
func (s *EventStore) Close() error {
	if f, ok := s.writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}

// Query returns matching events from the ring buffer, newest first.
func (s *EventStore) Query(ctx context.Context, filter authevent.Filter) ([]authevent.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	var result []authevent.Event
	for i := len(s.recent) - 1; i >= 0 && len(result) < limit; i-- {
		e := s.recent[i]
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

var (
	_ authevent.Store      = (*EventStore)(nil)
	_ authevent.QueryStore = (*EventStore)(nil)
)
