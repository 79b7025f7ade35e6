package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

// AuthBackend is an in-process auth.Backend holding a table of accounts and
// the current client session. Failures can be injected with SetOffline.
type AuthBackend struct {
	mu       sync.Mutex
	accounts map[string]memoryAccount // keyed by lower-cased email
	current  *auth.BackendSession
	offline  bool
	ttl      time.Duration
	calls    map[string]int
}

type memoryAccount struct {
	user         auth.BackendUser
	passwordHash string
}

// NewAuthBackend creates a backend with no accounts. Sessions last ttl
// (one hour when ttl is zero).
func NewAuthBackend(ttl time.Duration) *AuthBackend {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthBackend{
		accounts: make(map[string]memoryAccount),
		ttl:      ttl,
		calls:    make(map[string]int),
	}
}

// AddAccount registers an account and returns its identity.
// An empty id is replaced with a new UUID.
func (b *AuthBackend) AddAccount(id, email, password string) (auth.BackendUser, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return auth.BackendUser{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToLower(email)
	if _, exists := b.accounts[key]; exists {
		return auth.BackendUser{}, auth.ErrUserExists
	}
	user := auth.BackendUser{ID: id, Email: email}
	b.accounts[key] = memoryAccount{user: user, passwordHash: hash}
	return user, nil
}

// SetOffline makes every call fail with auth.ErrNetwork while true.
func (b *AuthBackend) SetOffline(offline bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offline = offline
}

// SetSession replaces the current session, as a restored client would.
func (b *AuthBackend) SetSession(sess *auth.BackendSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = sess
}

// Calls returns how many times the named method was called.
func (b *AuthBackend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// SignInWithPassword checks the credentials and opens a session.
func (b *AuthBackend) SignInWithPassword(ctx context.Context, email, password string) (*auth.BackendSession, error) {
	b.mu.Lock()
	b.calls["SignInWithPassword"]++
	if b.offline {
		b.mu.Unlock()
		return nil, fmt.Errorf("sign in: %w", auth.ErrNetwork)
	}
	acct, ok := b.accounts[strings.ToLower(email)]
	b.mu.Unlock()

	if !ok {
		return nil, auth.ErrInvalidCredentials
	}
	match, err := auth.VerifyPassword(password, acct.passwordHash)
	if err != nil || !match {
		return nil, auth.ErrInvalidCredentials
	}

	sess := &auth.BackendSession{
		AccessToken:  "mem-" + uuid.NewString(),
		RefreshToken: "mem-refresh-" + uuid.NewString(),
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(b.ttl).UTC(),
		User:         acct.user,
	}

	b.mu.Lock()
	b.current = sess
	b.mu.Unlock()

	c := *sess
	return &c, nil
}

// SignOut drops the current session. The session is dropped locally even
// when the backend is offline, matching the hosted client.
func (b *AuthBackend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["SignOut"]++
	b.current = nil
	if b.offline {
		return fmt.Errorf("sign out: %w", auth.ErrNetwork)
	}
	return nil
}

// GetSession returns the current unexpired session, or nil.
func (b *AuthBackend) GetSession(ctx context.Context) (*auth.BackendSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["GetSession"]++
	if b.offline {
		return nil, fmt.Errorf("get session: %w", auth.ErrNetwork)
	}
	if b.current == nil || b.current.IsExpired(time.Now()) {
		return nil, nil
	}
	c := *b.current
	return &c, nil
}

var _ auth.Backend = (*AuthBackend)(nil)
