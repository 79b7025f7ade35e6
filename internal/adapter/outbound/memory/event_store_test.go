package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/authevent"
)

func TestEventStore_AppendWritesJSONLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewEventStore(&buf, 0)
	err := s.Append(context.Background(),
		authevent.Event{Type: authevent.TypeSignIn, UserID: "u1"},
		authevent.Event{Type: authevent.TypeSignOut, UserID: "u1"},
	)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2", len(lines))
	}
	var e authevent.Event
	if err := json.Unmarshal([]byte(lines[1]), &e); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if e.Type != authevent.TypeSignOut {
		t.Errorf("Type = %q, want %q", e.Type, authevent.TypeSignOut)
	}
}

func TestEventStore_QueryFiltersNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewEventStore(nil, 3)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, typ := range []string{authevent.TypeSignIn, authevent.TypeSignInFailed, authevent.TypeSignIn, authevent.TypeSignOut} {
		_ = s.Append(ctx, authevent.Event{Timestamp: base.Add(time.Duration(i) * time.Minute), Type: typ, UserID: "u1"})
	}

	all, _ := s.Query(ctx, authevent.Filter{})
	if len(all) != 3 {
		t.Fatalf("Query() returned %d events, want ring capacity 3", len(all))
	}
	if all[0].Type != authevent.TypeSignOut {
		t.Errorf("first event = %q, want newest (sign out)", all[0].Type)
	}

	signIns, _ := s.Query(ctx, authevent.Filter{Type: authevent.TypeSignIn})
	if len(signIns) != 1 {
		t.Errorf("Query(type=sign_in) = %d events, want 1 (oldest evicted)", len(signIns))
	}

	recent, _ := s.Query(ctx, authevent.Filter{Since: base.Add(3 * time.Minute)})
	if len(recent) != 1 {
		t.Errorf("Query(since) = %d events, want 1", len(recent))
	}
}

func TestEventStore_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	s := NewEventStore(nil, 0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(context.Background(), authevent.Event{Type: authevent.TypeSignIn})
		}()
	}
	wg.Wait()

	got, _ := s.Query(context.Background(), authevent.Filter{Limit: 1000})
	if len(got) != 20 {
		t.Errorf("Query() = %d events, want 20", len(got))
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
