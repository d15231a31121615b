package storage

import "context"

// KVStore is a durable key-value store holding opaque serialized values.
// Callers store whole collections under one key and read-modify-write them.
type KVStore interface {
	// Get returns the value stored under key. Returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value stored under key. Returns ErrInvalidInput for an empty key.
	Put(ctx context.Context, key string, value []byte) error
}
