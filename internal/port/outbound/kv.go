// Package outbound defines the ports the services use to reach storage and
// remote systems.
package outbound

import "context"

// KeyValueStore is durable string storage that survives process restarts.
// Implementations: state.FileKVStore, sqlite.KVStore, redis.KVStore, memory.KVStore.
type KeyValueStore interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// BatchKeyValueStore is a KeyValueStore that can write or remove several
// keys in one atomic step. Readers never observe a partially applied batch.
type BatchKeyValueStore interface {
	KeyValueStore

	// SetMany stores every pair or none of them.
	SetMany(ctx context.Context, pairs map[string]string) error

	// RemoveMany deletes every key or none of them.
	RemoveMany(ctx context.Context, keys ...string) error
}
