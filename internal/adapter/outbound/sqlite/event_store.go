package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yazcar/yazcarfax/internal/domain/authevent"
)

// EventStore persists auth events in the auth_events table.
type EventStore struct {
	db *DB
}

// NewEventStore creates an EventStore on db.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Append inserts events in one transaction.
func (s *EventStore) Append(ctx context.Context, events ...authevent.Event) error {
	if len(events) == 0 {
		return nil
	}
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO auth_events (timestamp, type, request_id, user_id, email, session_id, source_ip, user_agent, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare event insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, e := range events {
			_, err := stmt.ExecContext(ctx, formatTime(e.Timestamp), e.Type, e.RequestID, e.UserID,
				e.Email, e.SessionID, e.SourceIP, e.UserAgent, e.Reason)
			if err != nil {
				return fmt.Errorf("insert event: %w", err)
			}
		}
		return nil
	})
}

// Flush is a no-op; Append commits.
func (s *EventStore) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op; the DB is owned by the caller.
func (s *EventStore) Close() error {
	return nil
}

// Query returns matching events, newest first.
func (s *EventStore) Query(ctx context.Context, filter authevent.Filter) ([]authevent.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	var (
		where []string
		args  []any
	)
	if !filter.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(filter.Since))
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}

	q := `SELECT timestamp, type, request_id, user_id, email, session_id, source_ip, user_agent, reason FROM auth_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []authevent.Event
	for rows.Next() {
		var (
			e  authevent.Event
			ts string
		)
		if err := rows.Scan(&ts, &e.Type, &e.RequestID, &e.UserID, &e.Email, &e.SessionID, &e.SourceIP, &e.UserAgent, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = parseTime(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

var (
	_ authevent.Store      = (*EventStore)(nil)
	_ authevent.QueryStore = (*EventStore)(nil)
)
