package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

// AccountStore serves the accounts table.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates an AccountStore on db.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// CreateAccount inserts an account, failing on a duplicate email.
func (s *AccountStore) CreateAccount(ctx context.Context, acct auth.Account) error {
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now()
	}
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM accounts WHERE lower(email) = lower(?)`, acct.User.Email).Scan(&n)
		if err != nil {
			return fmt.Errorf("check account: %w", err)
		}
		if n > 0 {
			return auth.ErrUserExists
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO accounts (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
			acct.User.ID, strings.TrimSpace(acct.User.Email), acct.PasswordHash, formatTime(acct.CreatedAt))
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		return nil
	})
}

// GetAccountByEmail looks an account up by email, case-insensitively.
func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	acct, err := s.scan(s.db.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE lower(email) = lower(?)`,
		strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrInvalidCredentials
	}
	return acct, err
}

// GetAccount looks an account up by id.
func (s *AccountStore) GetAccount(ctx context.Context, id string) (*auth.Account, error) {
	acct, err := s.scan(s.db.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrAccountNotFound
	}
	return acct, err
}

func (s *AccountStore) scan(row *sql.Row) (*auth.Account, error) {
	var (
		acct      auth.Account
		createdAt string
	)
	if err := row.Scan(&acct.User.ID, &acct.User.Email, &acct.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	acct.CreatedAt = parseTime(createdAt)
	return &acct, nil
}

var _ auth.AccountStore = (*AccountStore)(nil)
