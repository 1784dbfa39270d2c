package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedisTransport speaks to the key-value backend through the go-redis
// wire client. It is the primary implementation.
type RedisTransport struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisTransport creates the primary transport.
func NewRedisTransport(client *redis.Client) *RedisTransport {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisTransport{
		client: client,
		logger: log.With().Str("component", "kv-redis").Logger(),
	}
}

// Name identifies this transport in logs and metrics.
func (t *RedisTransport) Name() string { return "redis" }

// Ping checks connectivity to the backend.
func (t *RedisTransport) Ping(ctx context.Context) error {
	start := time.Now()
	err := t.wrap("ping", t.client.Ping(ctx).Err())
	observe(t.Name(), "ping", start, err)
	return err
}

// Get returns the value stored at key, or ErrNotFound.
func (t *RedisTransport) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := t.client.Get(ctx, key).Result()
	err = t.wrap("get", err)
	observe(t.Name(), "get", start, err)
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores value at key without expiry.
func (t *RedisTransport) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := t.wrap("set", t.client.Set(ctx, key, value, 0).Err())
	observe(t.Name(), "set", start, err)
	return err
}

// SetEx stores value at key with the given TTL.
func (t *RedisTransport) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	start := time.Now()
	err := t.wrap("setex", t.client.Set(ctx, key, value, ttl).Err())
	observe(t.Name(), "setex", start, err)
	return err
}

// Del removes the given keys and returns how many existed.
func (t *RedisTransport) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	start := time.Now()
	n, err := t.client.Del(ctx, keys...).Result()
	err = t.wrap("del", err)
	observe(t.Name(), "del", start, err)
	return n, err
}

// Keys returns all keys matching a glob pattern.
func (t *RedisTransport) Keys(ctx context.Context, pattern string) ([]string, error) {
	start := time.Now()
	keys, err := t.client.Keys(ctx, pattern).Result()
	err = t.wrap("keys", err)
	observe(t.Name(), "keys", start, err)
	return keys, err
}

// Incr atomically increments the integer at key and returns the new value.
func (t *RedisTransport) Incr(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	n, err := t.client.Incr(ctx, key).Result()
	err = t.wrap("incr", err)
	observe(t.Name(), "incr", start, err)
	return n, err
}

// Expire sets a TTL on an existing key.
func (t *RedisTransport) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := t.client.Expire(ctx, key, ttl).Result()
	err = t.wrap("expire", err)
	observe(t.Name(), "expire", start, err)
	return ok, err
}

// wrap maps go-redis errors onto the transport error taxonomy.
func (t *RedisTransport) wrap(command string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return &TransportError{
		Transport: t.Name(),
		Command:   command,
		Class:     ErrorClassNetwork,
		Message:   "redis command failed",
		Err:       err,
	}
}
