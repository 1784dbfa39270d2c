package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/commercekit/storecore/pkg/kv"
	"github.com/commercekit/storecore/pkg/logging"
)

// Default TTL policy per namespace.
const (
	DefaultSessionTTL  = time.Hour
	DefaultProductTTL  = 30 * time.Minute
	DefaultCartTTL     = 2 * time.Hour
	DefaultWishlistTTL = 2 * time.Hour
	DefaultGenericTTL  = time.Hour
)

// Config holds the cache service configuration.
type Config struct {
	// Transport is the key-value client. Use kv.NewFallback to get the
	// primary-then-direct behavior on cache-critical paths.
	Transport kv.Transport

	// TTLs per namespace. Zero values take the defaults above.
	SessionTTL  time.Duration
	ProductTTL  time.Duration
	CartTTL     time.Duration
	WishlistTTL time.Duration
	GenericTTL  time.Duration

	// Throttle suppresses repeated warnings. Injected so tests can reset
	// it deterministically; nil gets a fresh default throttle.
	Throttle *logging.Throttle
}

// DefaultConfig returns the default cache service configuration.
func DefaultConfig(transport kv.Transport) Config {
	return Config{
		Transport:   transport,
		SessionTTL:  DefaultSessionTTL,
		ProductTTL:  DefaultProductTTL,
		CartTTL:     DefaultCartTTL,
		WishlistTTL: DefaultWishlistTTL,
		GenericTTL:  DefaultGenericTTL,
	}
}

// Service provides typed, namespaced caching with validated payload
// handling. All operations degrade: cache failures are reported as typed
// errors, never panics, and corrupt entries read as misses.
type Service struct {
	kv       kv.Transport
	cfg      Config
	throttle *logging.Throttle
	logger   zerolog.Logger
}

// NewService creates a cache service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ProductTTL <= 0 {
		cfg.ProductTTL = DefaultProductTTL
	}
	if cfg.CartTTL <= 0 {
		cfg.CartTTL = DefaultCartTTL
	}
	if cfg.WishlistTTL <= 0 {
		cfg.WishlistTTL = DefaultWishlistTTL
	}
	if cfg.GenericTTL <= 0 {
		cfg.GenericTTL = DefaultGenericTTL
	}

	throttle := cfg.Throttle
	if throttle == nil {
		throttle = logging.NewThrottle(logging.DefaultThrottleInterval, logging.DefaultThrottleCapacity)
	}

	return &Service{
		kv:       cfg.Transport,
		cfg:      cfg,
		throttle: throttle,
		logger:   log.With().Str("component", "cache").Logger(),
	}, nil
}

// Set serializes value and stores it at key with the given TTL.
// A non-positive TTL takes the generic default. The TTL is reset on every
// write.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := s.checkValue(key, value); err != nil {
		return err
	}
	payload, err := s.marshal(key, value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = s.cfg.GenericTTL
	}

	if err := s.kv.SetEx(ctx, key, payload, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().
			Err(err).
			Str("key", key).
			Dur("ttl", ttl).
			Msg("Cache write failed")
		return &CacheError{Kind: KindTransport, Key: key, Err: err}
	}

	s.logger.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Msg("Cache write")
	return nil
}

// Get reads the value at key into dest. Absent keys return KindMiss,
// corrupt payloads return KindCorrupt; both answer true to IsMiss.
func (s *Service) Get(ctx context.Context, key string, dest any) error {
	payload, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		CacheMisses.Inc()
		if s.throttle.Allow("miss:" + key) {
			s.logger.Warn().Str("key", key).Msg("Cache empty")
		}
		return &CacheError{Kind: KindMiss, Key: key}
	}
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		s.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Cache read failed")
		return &CacheError{Kind: KindTransport, Key: key, Err: err}
	}

	if err := decode(key, payload, dest); err != nil {
		CorruptPayloads.Inc()
		if s.throttle.Allow("corrupt:" + key) {
			s.logger.Warn().Str("key", key).Msg("Corrupt cache payload treated as miss")
		}
		return err
	}

	CacheHits.Inc()
	return nil
}

// Delete removes the value at key.
func (s *Service) Delete(ctx context.Context, key string) error {
	if _, err := s.kv.Del(ctx, key); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		s.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Cache delete failed")
		return &CacheError{Kind: KindTransport, Key: key, Err: err}
	}
	return nil
}

// CacheUserSession stores a user's session blob.
func (s *Service) CacheUserSession(ctx context.Context, userID string, session any) error {
	return s.Set(ctx, SessionKey(userID), session, s.cfg.SessionTTL)
}

// CachedUserSession reads a user's session blob into dest.
func (s *Service) CachedUserSession(ctx context.Context, userID string, dest any) error {
	return s.Get(ctx, SessionKey(userID), dest)
}

// CacheProduct stores a product snapshot.
func (s *Service) CacheProduct(ctx context.Context, productID string, product any) error {
	return s.Set(ctx, ProductKey(productID), product, s.cfg.ProductTTL)
}

// CachedProduct reads a product snapshot into dest.
func (s *Service) CachedProduct(ctx context.Context, productID string, dest any) error {
	return s.Get(ctx, ProductKey(productID), dest)
}

// CacheUserCart stores a user's shopping cart. The cart path is
// cache-critical, so the backend is probed first: when the probe fails on
// every transport leg the write is skipped outright as KindUnavailable.
// That keeps a known-down backend from masquerading as serialization
// failures.
func (s *Service) CacheUserCart(ctx context.Context, userID string, cart any) error {
	key := CartKey(userID)
	if err := s.checkValue(key, cart); err != nil {
		return err
	}

	if err := s.kv.Ping(ctx); err != nil {
		SkippedWrites.Inc()
		s.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Cart cache write skipped, backend unreachable")
		return &CacheError{Kind: KindUnavailable, Key: key, Err: err}
	}

	return s.Set(ctx, key, cart, s.cfg.CartTTL)
}

// CachedUserCart reads a user's shopping cart into dest.
func (s *Service) CachedUserCart(ctx context.Context, userID string, dest any) error {
	return s.Get(ctx, CartKey(userID), dest)
}

// CacheUserWishlist stores a user's wishlist.
func (s *Service) CacheUserWishlist(ctx context.Context, userID string, wishlist any) error {
	return s.Set(ctx, WishlistKey(userID), wishlist, s.cfg.WishlistTTL)
}

// CachedUserWishlist reads a user's wishlist into dest.
func (s *Service) CachedUserWishlist(ctx context.Context, userID string, dest any) error {
	return s.Get(ctx, WishlistKey(userID), dest)
}

// ClearUserCache removes every per-user key across namespaces. Best-effort
// and not transactional; returns how many keys were removed.
func (s *Service) ClearUserCache(ctx context.Context, userID string) (int64, error) {
	keys, err := s.kv.Keys(ctx, userPattern(userID))
	if err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return 0, &CacheError{Kind: KindTransport, Key: userPattern(userID), Err: err}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := s.kv.Del(ctx, keys...)
	if err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return removed, &CacheError{Kind: KindTransport, Key: userPattern(userID), Err: err}
	}

	s.logger.Info().
		Str("user_id", userID).
		Int64("removed", removed).
		Msg("User cache cleared")
	return removed, nil
}

// checkValue rejects values that must never reach the backend. Caching
// "nothing" is a caller bug, not a cache miss, and is caught before
// serialization.
func (s *Service) checkValue(key string, value any) error {
	if value == nil || isNilValue(value) {
		RejectedWrites.Inc()
		s.logger.Warn().
			Str("key", key).
			Msg("Rejected attempt to cache a nil value")
		return &CacheError{Kind: KindBadInput, Key: key}
	}
	return nil
}

// marshal serializes value, reporting failure as a failed write.
func (s *Service) marshal(key string, value any) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		RejectedWrites.Inc()
		s.logger.Error().
			Err(err).
			Str("key", key).
			Str("value", fmt.Sprintf("%+v", value)).
			Msg("Cache value failed to serialize")
		return "", &CacheError{Kind: KindBadInput, Key: key, Err: err}
	}
	return string(payload), nil
}

// isNilValue catches typed nils hiding inside a non-nil interface.
func isNilValue(value any) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
