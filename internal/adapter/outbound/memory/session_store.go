// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/authsession"
)

// Default cleanup interval for session expiration.
const DefaultCleanupInterval = 1 * time.Minute

// SessionStore implements authsession.Store with an in-memory map.
// Thread-safe for concurrent access. Used by tests and by the dev backend
// when no database is configured.
// Background cleanup goroutine removes expired sessions periodically.
type SessionStore struct {
	sessions        map[string]*authsession.Session
	byRefresh       map[string]string // refresh token -> session id
	mu              sync.RWMutex
	stopChan        chan struct{}
	wg              sync.WaitGroup
	cleanupInterval time.Duration
	once            sync.Once
}

// NewSessionStore creates a new in-memory session store with default cleanup interval.
func NewSessionStore() *SessionStore {
	return NewSessionStoreWithConfig(DefaultCleanupInterval)
}

// NewSessionStoreWithConfig creates a new in-memory session store with custom cleanup interval.
func NewSessionStoreWithConfig(cleanupInterval time.Duration) *SessionStore {
	return &SessionStore{
		sessions:        make(map[string]*authsession.Session),
		byRefresh:       make(map[string]string),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
}

// StartCleanup starts the background cleanup goroutine.
// Call Stop() to stop the cleanup goroutine gracefully.
func (s *SessionStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

// cleanup removes all expired sessions from the store.
func (s *SessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for id, sess := range s.sessions {
		if sess.IsExpired() {
			delete(s.byRefresh, sess.RefreshToken)
			delete(s.sessions, id)
			cleaned++
		}
	}

	if cleaned > 0 {
		slog.Debug("cleaned expired sessions", "count", cleaned)
	}
}

// Stop stops the background cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *SessionStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Create stores a new session.
func (s *SessionStore) Create(ctx context.Context, sess *authsession.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *sess
	s.sessions[sess.ID] = &c
	s.byRefresh[sess.RefreshToken] = sess.ID
	return nil
}

// Get retrieves a session by ID.
// Expired sessions are reported missing; background cleanup deletes them.
func (s *SessionStore) Get(ctx context.Context, id string) (*authsession.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || sess.IsExpired() {
		return nil, authsession.ErrSessionNotFound
	}
	c := *sess
	return &c, nil
}

// GetByRefreshToken retrieves the session currently holding refreshToken.
func (s *SessionStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*authsession.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRefresh[refreshToken]
	if !ok {
		return nil, authsession.ErrSessionNotFound
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, authsession.ErrSessionNotFound
	}
	c := *sess
	return &c, nil
}

// Update saves changes to an existing session, re-indexing its refresh token.
func (s *SessionStore) Update(ctx context.Context, sess *authsession.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.sessions[sess.ID]
	if !ok {
		return authsession.ErrSessionNotFound
	}
	delete(s.byRefresh, old.RefreshToken)

	c := *sess
	s.sessions[sess.ID] = &c
	s.byRefresh[sess.RefreshToken] = sess.ID
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		delete(s.byRefresh, sess.RefreshToken)
		delete(s.sessions, id)
	}
	return nil
}

// Size returns the number of sessions currently stored.
func (s *SessionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Compile-time interface verification.
var _ authsession.Store = (*SessionStore)(nil)
