package authsession

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

// DefaultTimeout is the default session lifetime.
const DefaultTimeout = 7 * 24 * time.Hour

// Config holds session service configuration.
type Config struct {
	// Timeout is the session expiration duration. Default: 7 days.
	Timeout time.Duration
}

// Service manages the lifecycle of issued sessions.
type Service struct {
	store   Store
	timeout time.Duration
}

// NewService creates a new Service with the given store and config.
func NewService(store Store, cfg Config) *Service {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		store:   store,
		timeout: timeout,
	}
}

// Create opens a new session for an account.
func (s *Service) Create(ctx context.Context, user auth.BackendUser) (*Session, error) {
	refresh, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &Session{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		Email:        user.Email,
		RefreshToken: refresh,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.timeout),
		LastAccess:   now,
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Get retrieves a live session by ID.
// Returns ErrSessionNotFound if the session doesn't exist or has expired.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Double-check expiration (store might not enforce it)
	if session.IsExpired() {
		_ = s.store.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Rotate exchanges a refresh token for a new one and extends the session.
// The old refresh token stops working immediately.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (*Session, error) {
	session, err := s.store.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		_ = s.store.Delete(ctx, session.ID)
		return nil, ErrSessionNotFound
	}

	next, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	session.RefreshToken = next
	session.Refresh(s.timeout)

	if err := s.store.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}
	return session, nil
}

// Delete terminates a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// GenerateRefreshToken creates a cryptographically random refresh token.
// Returns 64 hex characters (32 bytes).
func GenerateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
