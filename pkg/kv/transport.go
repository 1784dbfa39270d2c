// Package kv provides primitive access to the remote key-value store used
// by the storefront cache layer. Two implementations speak to the same
// backend: RedisTransport via the go-redis wire client, and RESTTransport
// via the backend's HTTP command API. Both move raw strings only; JSON
// belongs to higher layers.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested key does not exist in the store.
var ErrNotFound = errors.New("key not found")

// Transport executes primitive commands against the remote key-value store.
// Implementations must be substitutable without callers noticing; the
// contract is raw strings in, raw strings out, no JSON parsing.
type Transport interface {
	// Name identifies the implementation in logs and metrics.
	Name() string

	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error

	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key without expiry.
	Set(ctx context.Context, key, value string) error

	// SetEx stores value at key with the given TTL.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes the given keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Keys returns all keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Incr atomically increments the integer at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a TTL on an existing key. Returns false if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
