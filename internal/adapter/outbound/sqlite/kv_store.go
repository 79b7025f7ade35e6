package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yazcar/yazcarfax/internal/port/outbound"
)

// KVStore is the durable cache kept in the kv table.
type KVStore struct {
	db *DB
}

// NewKVStore creates a KVStore on db.
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// Remove deletes key.
func (s *KVStore) Remove(ctx context.Context, key string) error {
	return s.RemoveMany(ctx, key)
}

// SetMany upserts every pair in one transaction.
func (s *KVStore) SetMany(ctx context.Context, pairs map[string]string) error {
	now := formatTime(time.Now())
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		for k, v := range pairs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, v, now)
			if err != nil {
				return fmt.Errorf("set %q: %w", k, err)
			}
		}
		return nil
	})
}

// RemoveMany deletes every key in one transaction.
func (s *KVStore) RemoveMany(ctx context.Context, keys ...string) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, k); err != nil {
				return fmt.Errorf("remove %q: %w", k, err)
			}
		}
		return nil
	})
}

var _ outbound.BatchKeyValueStore = (*KVStore)(nil)
