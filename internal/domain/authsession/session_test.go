package authsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

// mockStore is a simple in-memory mock for testing.
type mockStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newMockStore() *mockStore {
	return &mockStore{
		sessions: make(map[string]*Session),
	}
}

func (m *mockStore) Create(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *session
	m.sessions[session.ID] = &copy
	return nil
}

func (m *mockStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copy := *session
	return &copy, nil
}

func (m *mockStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, session := range m.sessions {
		if session.RefreshToken == refreshToken {
			copy := *session
			return &copy, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (m *mockStore) Update(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return ErrSessionNotFound
	}
	copy := *session
	m.sessions[session.ID] = &copy
	return nil
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

var testUser = auth.BackendUser{ID: "user-123", Email: "owner@example.com"}

func TestGenerateRefreshToken(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken() error = %v", err)
		}
		if len(token) != 64 {
			t.Fatalf("GenerateRefreshToken() len = %d, want 64", len(token))
		}
		for _, c := range token {
			if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
				t.Fatalf("GenerateRefreshToken() contains non-hex character: %c", c)
			}
		}
		if ids[token] {
			t.Fatalf("GenerateRefreshToken() generated duplicate token: %s", token)
		}
		ids[token] = true
	}
}

func TestService_Create(t *testing.T) {
	store := newMockStore()
	service := NewService(store, Config{Timeout: 30 * time.Minute})

	session, err := service.Create(context.Background(), testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if session.ID == "" {
		t.Error("Create() session.ID is empty")
	}
	if session.UserID != testUser.ID {
		t.Errorf("Create() session.UserID = %q, want %q", session.UserID, testUser.ID)
	}
	if session.Email != testUser.Email {
		t.Errorf("Create() session.Email = %q, want %q", session.Email, testUser.Email)
	}
	if session.RefreshToken == "" {
		t.Error("Create() session.RefreshToken is empty")
	}

	expectedExpiry := time.Now().Add(30 * time.Minute)
	if session.ExpiresAt.Before(expectedExpiry.Add(-time.Second)) ||
		session.ExpiresAt.After(expectedExpiry.Add(time.Second)) {
		t.Errorf("Create() session.ExpiresAt = %v, want ~%v", session.ExpiresAt, expectedExpiry)
	}
}

func TestService_Get(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*mockStore, *Service) string
		wantErr error
	}{
		{
			name: "returns session if not expired",
			setup: func(store *mockStore, svc *Service) string {
				session, _ := svc.Create(context.Background(), testUser)
				return session.ID
			},
		},
		{
			name: "returns error if session does not exist",
			setup: func(store *mockStore, svc *Service) string {
				return "nonexistent-session-id"
			},
			wantErr: ErrSessionNotFound,
		},
		{
			name: "returns error if session expired",
			setup: func(store *mockStore, svc *Service) string {
				session := &Session{
					ID:         "expired-session",
					UserID:     "user-1",
					CreatedAt:  time.Now().Add(-2 * time.Hour),
					ExpiresAt:  time.Now().Add(-1 * time.Hour),
					LastAccess: time.Now().Add(-2 * time.Hour),
				}
				_ = store.Create(context.Background(), session)
				return session.ID
			},
			wantErr: ErrSessionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			service := NewService(store, Config{Timeout: 30 * time.Minute})

			sessionID := tt.setup(store, service)
			session, err := service.Get(context.Background(), sessionID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() unexpected error = %v", err)
			}
			if session == nil {
				t.Error("Get() returned nil session, want valid session")
			}
		})
	}
}

func TestService_Rotate(t *testing.T) {
	store := newMockStore()
	service := NewService(store, Config{Timeout: 30 * time.Minute})
	ctx := context.Background()

	session, err := service.Create(ctx, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	oldToken := session.RefreshToken

	rotated, err := service.Rotate(ctx, oldToken)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if rotated.ID != session.ID {
		t.Errorf("Rotate() ID = %q, want %q", rotated.ID, session.ID)
	}
	if rotated.RefreshToken == oldToken {
		t.Error("Rotate() kept the old refresh token")
	}

	// Refresh tokens are single use.
	if _, err := service.Rotate(ctx, oldToken); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Rotate(old token) error = %v, want ErrSessionNotFound", err)
	}
}

func TestService_RotateExpired(t *testing.T) {
	store := newMockStore()
	service := NewService(store, Config{})
	ctx := context.Background()

	_ = store.Create(ctx, &Session{
		ID:           "expired",
		RefreshToken: "refresh-expired",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	if _, err := service.Rotate(ctx, "refresh-expired"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Rotate() error = %v, want ErrSessionNotFound", err)
	}
	if _, err := store.Get(ctx, "expired"); !errors.Is(err, ErrSessionNotFound) {
		t.Error("Rotate() did not delete the expired session")
	}
}

func TestService_Delete(t *testing.T) {
	store := newMockStore()
	service := NewService(store, Config{Timeout: 30 * time.Minute})
	ctx := context.Background()

	session, _ := service.Create(ctx, testUser)

	if err := service.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := service.Get(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after Delete() error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestSession_Refresh(t *testing.T) {
	session := &Session{
		ExpiresAt:  time.Now().Add(10 * time.Minute),
		LastAccess: time.Now().Add(-5 * time.Minute),
	}

	timeout := 30 * time.Minute
	beforeRefresh := time.Now()
	session.Refresh(timeout)

	if session.LastAccess.Before(beforeRefresh.UTC()) {
		t.Errorf("Refresh() LastAccess = %v, want >= %v", session.LastAccess, beforeRefresh)
	}

	expectedExpiry := time.Now().Add(timeout)
	if session.ExpiresAt.Before(expectedExpiry.Add(-time.Second)) ||
		session.ExpiresAt.After(expectedExpiry.Add(time.Second)) {
		t.Errorf("Refresh() ExpiresAt = %v, want ~%v", session.ExpiresAt, expectedExpiry)
	}
}

func TestNewService_DefaultTimeout(t *testing.T) {
	service := NewService(newMockStore(), Config{Timeout: 0})

	session, _ := service.Create(context.Background(), testUser)

	expectedExpiry := time.Now().Add(DefaultTimeout)
	if session.ExpiresAt.Before(expectedExpiry.Add(-time.Second)) ||
		session.ExpiresAt.After(expectedExpiry.Add(time.Second)) {
		t.Errorf("Default timeout: ExpiresAt = %v, want ~%v", session.ExpiresAt, expectedExpiry)
	}
}
