package kv

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fallback is an ordered pair of transports: every command is tried on the
// primary first, then on the direct client when the primary fails with
// something the direct client might survive (network errors, backend 5xx,
// HTML error pages). The second leg is sequential, never raced.
type Fallback struct {
	primary Transport
	direct  Transport
	logger  zerolog.Logger
}

// NewFallback creates the ordered-fallback wrapper.
func NewFallback(primary, direct Transport) *Fallback {
	if primary == nil || direct == nil {
		panic("fallback requires both transports")
	}
	return &Fallback{
		primary: primary,
		direct:  direct,
		logger:  log.With().Str("component", "kv-fallback").Logger(),
	}
}

// Name identifies this transport in logs and metrics.
func (f *Fallback) Name() string { return "fallback" }

// failover runs op against the primary and retries on the direct client
// when the primary's error warrants it.
func failover[T any](f *Fallback, command string, op func(Transport) (T, error)) (T, error) {
	v, err := op(f.primary)
	if !shouldFailOver(err) {
		return v, err
	}

	kvFallbacksTotal.WithLabelValues(command).Inc()
	f.logger.Warn().
		Err(err).
		Str("command", command).
		Str("from", f.primary.Name()).
		Str("to", f.direct.Name()).
		Msg("Primary transport failed, retrying on direct client")

	return op(f.direct)
}

// Ping checks connectivity, answering success if either leg responds.
func (f *Fallback) Ping(ctx context.Context) error {
	_, err := failover(f, "ping", func(t Transport) (struct{}, error) {
		return struct{}{}, t.Ping(ctx)
	})
	return err
}

// Get returns the value stored at key, or ErrNotFound.
func (f *Fallback) Get(ctx context.Context, key string) (string, error) {
	return failover(f, "get", func(t Transport) (string, error) {
		return t.Get(ctx, key)
	})
}

// Set stores value at key without expiry.
func (f *Fallback) Set(ctx context.Context, key, value string) error {
	_, err := failover(f, "set", func(t Transport) (struct{}, error) {
		return struct{}{}, t.Set(ctx, key, value)
	})
	return err
}

// SetEx stores value at key with the given TTL.
func (f *Fallback) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := failover(f, "setex", func(t Transport) (struct{}, error) {
		return struct{}{}, t.SetEx(ctx, key, value, ttl)
	})
	return err
}

// Del removes the given keys and returns how many existed.
func (f *Fallback) Del(ctx context.Context, keys ...string) (int64, error) {
	return failover(f, "del", func(t Transport) (int64, error) {
		return t.Del(ctx, keys...)
	})
}

// Keys returns all keys matching a glob pattern.
func (f *Fallback) Keys(ctx context.Context, pattern string) ([]string, error) {
	return failover(f, "keys", func(t Transport) ([]string, error) {
		return t.Keys(ctx, pattern)
	})
}

// Incr atomically increments the integer at key and returns the new value.
func (f *Fallback) Incr(ctx context.Context, key string) (int64, error) {
	return failover(f, "incr", func(t Transport) (int64, error) {
		return t.Incr(ctx, key)
	})
}

// Expire sets a TTL on an existing key.
func (f *Fallback) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return failover(f, "expire", func(t Transport) (bool, error) {
		return t.Expire(ctx, key, ttl)
	})
}
