package auth

import (
	"context"
	"time"
)

// Account is a credential record held by the development backend.
type Account struct {
	User         BackendUser
	PasswordHash string
	CreatedAt    time.Time
}

// AccountStore persists accounts for the development backend.
// Implementations: sqlite.AccountStore.
type AccountStore interface {
	// CreateAccount stores a new account.
	// Returns ErrUserExists if the email is taken (case-insensitive).
	CreateAccount(ctx context.Context, acct Account) error

	// GetAccountByEmail looks an account up by email (case-insensitive).
	// Returns ErrInvalidCredentials if there is none, so callers cannot
	// distinguish unknown emails from wrong passwords.
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)

	// GetAccount looks an account up by id.
	// Returns ErrAccountNotFound if there is none.
	GetAccount(ctx context.Context, id string) (*Account, error)
}
