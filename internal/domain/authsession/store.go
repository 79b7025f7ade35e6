package authsession

import (
	"context"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

// ErrSessionNotFound is returned when a session doesn't exist or is expired.
var ErrSessionNotFound = auth.ErrSessionNotFound

// Store provides session persistence.
// Implementations: sqlite (dev backend), in-memory (tests).
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if session doesn't exist or is expired.
	Get(ctx context.Context, id string) (*Session, error)

	// GetByRefreshToken retrieves a session by its current refresh token.
	// Returns ErrSessionNotFound if no live session holds the token.
	GetByRefreshToken(ctx context.Context, refreshToken string) (*Session, error)

	// Update saves changes to an existing session.
	Update(ctx context.Context, session *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error
}
