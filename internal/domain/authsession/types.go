// Package authsession manages the sessions issued by the development backend.
// A session binds an account to a refresh token; access tokens are derived
// from it and die with it on sign-out.
package authsession

import (
	"time"
)

// Session is a server-side login session.
type Session struct {
	// ID is the session identifier embedded in access tokens (UUID).
	ID string
	// UserID references the account this session belongs to.
	UserID string
	// Email is cached from the account for token issuance.
	Email string
	// RefreshToken is a random single-use token, 32 bytes hex-encoded.
	RefreshToken string
	// CreatedAt is when the session was created (UTC).
	CreatedAt time.Time
	// ExpiresAt is when the session will expire (UTC).
	ExpiresAt time.Time
	// LastAccess is the last time the session was used (UTC).
	LastAccess time.Time
}

// IsExpired checks if the session has exceeded its timeout.
func (s *Session) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// Refresh updates LastAccess and extends ExpiresAt by the given duration.
func (s *Session) Refresh(timeout time.Duration) {
	now := time.Now().UTC()
	s.LastAccess = now
	s.ExpiresAt = now.Add(timeout)
}
