package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/port/outbound"
)

// Durable cache keys. They are written and removed as a pair.
const (
	KeyAuthToken = "auth_token"
	KeyUserData  = "user_data"
)

// CredentialCache mirrors the signed-in identity to durable storage so a
// cold start can skip the profile round trip. Both keys are always present
// together or absent together; a reader that finds only one treats the
// cache as empty.
type CredentialCache struct {
	kv     outbound.KeyValueStore
	logger *slog.Logger
}

// NewCredentialCache creates a cache on kv.
func NewCredentialCache(kv outbound.KeyValueStore, logger *slog.Logger) *CredentialCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialCache{kv: kv, logger: logger}
}

// Save writes the token and profile. Stores with batch support write both
// keys atomically; other stores write the profile first and remove it again
// if the token write fails.
func (c *CredentialCache) Save(ctx context.Context, token string, user *auth.User) error {
	if token == "" || !user.Valid() {
		return errors.New("credential cache: token and user are required")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	if batch, ok := c.kv.(outbound.BatchKeyValueStore); ok {
		if err := batch.SetMany(ctx, map[string]string{KeyAuthToken: token, KeyUserData: string(data)}); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
		return nil
	}

	if err := c.kv.Set(ctx, KeyUserData, string(data)); err != nil {
		c.rollback(ctx)
		return fmt.Errorf("save user data: %w", err)
	}
	if err := c.kv.Set(ctx, KeyAuthToken, token); err != nil {
		c.rollback(ctx)
		return fmt.Errorf("save auth token: %w", err)
	}
	return nil
}

func (c *CredentialCache) rollback(ctx context.Context) {
	if err := c.Clear(ctx); err != nil {
		c.logger.Warn("failed to roll back partial credential write", "error", err)
	}
}

// Clear removes both keys. Every removal is attempted even if one fails.
func (c *CredentialCache) Clear(ctx context.Context) error {
	if batch, ok := c.kv.(outbound.BatchKeyValueStore); ok {
		if err := batch.RemoveMany(ctx, KeyAuthToken, KeyUserData); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
		return nil
	}
	// Token first: a reader that sees user_data without auth_token treats
	// the pair as absent.
	return errors.Join(
		c.kv.Remove(ctx, KeyAuthToken),
		c.kv.Remove(ctx, KeyUserData),
	)
}

// Load returns the cached pair. A missing or torn pair returns ("", nil, nil).
// An undecodable profile returns auth.ErrCacheCorrupt.
func (c *CredentialCache) Load(ctx context.Context) (string, *auth.User, error) {
	raw, ok, err := c.kv.Get(ctx, KeyUserData)
	if err != nil {
		return "", nil, fmt.Errorf("read user data: %w", err)
	}
	if !ok {
		return "", nil, nil
	}
	token, ok, err := c.kv.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", nil, fmt.Errorf("read auth token: %w", err)
	}
	if !ok {
		c.logger.Debug("ignoring torn credential cache", "missing", KeyAuthToken)
		return "", nil, nil
	}

	var user auth.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return "", nil, fmt.Errorf("%w: %v", auth.ErrCacheCorrupt, err)
	}
	if !user.Valid() {
		return "", nil, fmt.Errorf("%w: profile without id", auth.ErrCacheCorrupt)
	}
	return token, &user, nil
}
