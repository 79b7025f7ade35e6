package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

// AccountStore implements auth.AccountStore with in-memory maps.
// Thread-safe for concurrent access. Used by dev backend tests.
type AccountStore struct {
	byID    map[string]*auth.Account
	byEmail map[string]string // lowercased email -> id
	mu      sync.RWMutex
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:    make(map[string]*auth.Account),
		byEmail: make(map[string]string),
	}
}

// CreateAccount stores a new account.
// Returns auth.ErrUserExists if the email or id is taken.
func (s *AccountStore) CreateAccount(ctx context.Context, acct auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(acct.User.Email)
	if _, ok := s.byEmail[email]; ok {
		return auth.ErrUserExists
	}
	if _, ok := s.byID[acct.User.ID]; ok {
		return auth.ErrUserExists
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}

	c := acct
	s.byID[acct.User.ID] = &c
	s.byEmail[email] = acct.User.ID
	return nil
}

// GetAccountByEmail looks an account up by email, ignoring case.
func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, auth.ErrInvalidCredentials
	}
	c := *s.byID[id]
	return &c, nil
}

// GetAccount looks an account up by id.
func (s *AccountStore) GetAccount(ctx context.Context, id string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	c := *acct
	return &c, nil
}

// Len returns the number of accounts.
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

var _ auth.AccountStore = (*AccountStore)(nil)
