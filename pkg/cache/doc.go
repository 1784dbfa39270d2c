// Package cache provides domain-level caching for the storefront: session
// blobs, product snapshots, shopping carts and wishlists, layered on the
// primitive kv.Transport.
//
// The service owns serialization. Values go in as JSON and come out through
// corruption checks: payloads that look like HTML error pages or
// stringified-object artifacts are treated as misses, never as errors. A
// corrupt cache entry must not crash a reader; at worst it behaves like a
// cold cache.
//
// # Basic Usage
//
//	transport := kv.NewRedisTransport(redisClient)
//	service, err := cache.NewService(cache.DefaultConfig(transport))
//	if err != nil {
//		return err
//	}
//
//	// Cache a cart for two hours
//	if err := service.CacheUserCart(ctx, userID, cart); err != nil {
//		// cache failures are advisory, never user-facing
//	}
//
//	var cart Cart
//	err = service.CachedUserCart(ctx, userID, &cart)
//	if cache.IsMiss(err) {
//		// fall back to the system of record
//	}
//
// # Error Model
//
// Every operation returns a *CacheError carrying a Kind, so call sites can
// tell a legitimate miss apart from a failed operation where they need to:
//
//   - KindMiss: key absent
//   - KindCorrupt: payload could not be decoded (reads as a miss)
//   - KindTransport: the backend operation failed
//   - KindBadInput: a nil value was offered for caching (rejected before I/O)
//   - KindUnavailable: a write was skipped because the backend is down
//
// # Key Namespaces
//
// Other readers and writers must respect these namespaces:
//
//   - user:session:<id>
//   - product:<id>
//   - cart:<id>
//   - wishlist:<id>
//
// ClearUserCache assumes all per-user keys end in ":<userID>".
package cache
