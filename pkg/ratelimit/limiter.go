// Package ratelimit implements a fixed-window request limiter backed by the
// key-value store. Each identifier gets a monotonic counter bound to a time
// window; the counter is created on the first request in a window, expires
// with the window, and is never decremented except by expiry.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/commercekit/storecore/pkg/kv"
)

// Prometheus metrics for rate limit decisions.
var (
	rateLimitAllowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_rate_limit_allowed_total",
		Help: "Total requests allowed by the rate limiter",
	})

	rateLimitBlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_rate_limit_blocked_total",
		Help: "Total requests blocked by the rate limiter",
	})

	rateLimitErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_rate_limit_errors_total",
		Help: "Total rate limit checks that failed against the backend",
	})
)

// Defaults applied when a caller passes non-positive limit or window.
const (
	DefaultLimit  = 100
	DefaultWindow = time.Hour
)

// keyPrefix namespaces limiter counters in the shared store.
const keyPrefix = "rate_limit:"

// Decision is the outcome of a rate limit check.
type Decision struct {
	// Allowed reports whether the request fits in the current window.
	Allowed bool

	// Remaining is how many requests are left in the window.
	Remaining int64

	// ResetAt is when the current window closes. Advisory: computed from
	// the local clock at check time, not read back from the backend.
	ResetAt time.Time
}

// Limiter checks per-identifier request counters against a fixed window.
type Limiter struct {
	kv     kv.Transport
	logger zerolog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewLimiter creates a limiter on top of a key-value transport.
func NewLimiter(transport kv.Transport) *Limiter {
	if transport == nil {
		panic("transport cannot be nil")
	}
	return &Limiter{
		kv:     transport,
		logger: log.With().Str("component", "ratelimit").Logger(),
		now:    time.Now,
	}
}

// Check counts a request for identifier against the window. The increment
// that opens a window (counter reaching 1) also sets the counter's expiry.
// Backend failure returns an error; callers pick fail-open or fail-closed.
func (l *Limiter) Check(ctx context.Context, identifier string, limit int64, window time.Duration) (Decision, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	key := keyPrefix + identifier

	count, err := l.kv.Incr(ctx, key)
	if err != nil {
		rateLimitErrorsTotal.Inc()
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}

	if count == 1 {
		// Window just opened. A failed expire leaves a counter without
		// expiry, which blocks the identifier forever once over the limit;
		// surface it instead of returning a decision built on it.
		if _, err := l.kv.Expire(ctx, key, window); err != nil {
			rateLimitErrorsTotal.Inc()
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
		l.logger.Debug().
			Str("identifier", identifier).
			Dur("window", window).
			Msg("Rate limit window opened")
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	decision := Decision{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetAt:   l.now().Add(window),
	}

	if decision.Allowed {
		rateLimitAllowedTotal.Inc()
	} else {
		rateLimitBlockedTotal.Inc()
		l.logger.Warn().
			Str("identifier", identifier).
			Int64("count", count).
			Int64("limit", limit).
			Msg("Rate limit exceeded")
	}
	return decision, nil
}
