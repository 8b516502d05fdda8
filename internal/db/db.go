package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
type Store interface {
	Pinger
	KVStore
	SetStore
	LockStore
	CounterStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// GetMulti returns one entry per key, nil where the key does not exist.
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SetStore provides unordered set operations used as secondary indexes.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// LockStore provides token-guarded keys for mutual exclusion.
type LockStore interface {
	// SetNX stores token at key with a TTL only if key is absent. Returns false if the key is held.
	SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// CompareAndDelete deletes key only if it still holds token. Returns false otherwise.
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)
}

// CounterStore provides atomic integer counters.
type CounterStore interface {
	// IncrBy adds delta to the integer at key and returns the new value. A ttl > 0
	// is applied only when the key has no expiry yet.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}
