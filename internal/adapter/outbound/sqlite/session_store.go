package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/authsession"
)

// SessionStore implements authsession.Store on the sessions table.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a SessionStore on db.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create stores a new session.
func (s *SessionStore) Create(ctx context.Context, sess *authsession.Session) error {
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, email, refresh_token, created_at, expires_at, last_access)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Email, sess.RefreshToken,
		formatTime(sess.CreatedAt), formatTime(sess.ExpiresAt), formatTime(sess.LastAccess))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get retrieves a live session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*authsession.Session, error) {
	sess, err := s.scan(s.db.db.QueryRowContext(ctx, selectSession+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if sess.IsExpired() {
		return nil, authsession.ErrSessionNotFound
	}
	return sess, nil
}

// GetByRefreshToken retrieves the session holding refreshToken.
func (s *SessionStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*authsession.Session, error) {
	return s.scan(s.db.db.QueryRowContext(ctx, selectSession+` WHERE refresh_token = ?`, refreshToken))
}

// Update saves changes to an existing session.
func (s *SessionStore) Update(ctx context.Context, sess *authsession.Session) error {
	res, err := s.db.db.ExecContext(ctx, `
		UPDATE sessions SET refresh_token = ?, expires_at = ?, last_access = ? WHERE id = ?`,
		sess.RefreshToken, formatTime(sess.ExpiresAt), formatTime(sess.LastAccess), sess.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authsession.ErrSessionNotFound
	}
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired sessions and returns how many were removed.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, formatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Debug("purged expired sessions", "count", n)
	}
	return n, nil
}

const selectSession = `SELECT id, user_id, email, refresh_token, created_at, expires_at, last_access FROM sessions`

func (s *SessionStore) scan(row *sql.Row) (*authsession.Session, error) {
	var (
		sess                             authsession.Session
		createdAt, expiresAt, lastAccess string
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Email, &sess.RefreshToken, &createdAt, &expiresAt, &lastAccess)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authsession.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.ExpiresAt = parseTime(expiresAt)
	sess.LastAccess = parseTime(lastAccess)
	return &sess, nil
}

var _ authsession.Store = (*SessionStore)(nil)
