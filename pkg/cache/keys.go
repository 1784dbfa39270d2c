package cache

// Key namespaces shared with other writers and readers of the store.
// Per-user keys always end in ":<userID>" so ClearUserCache can find them.

// SessionKey returns the cache key for a user's session blob.
func SessionKey(userID string) string {
	return "user:session:" + userID
}

// ProductKey returns the cache key for a product snapshot.
func ProductKey(productID string) string {
	return "product:" + productID
}

// CartKey returns the cache key for a user's shopping cart.
func CartKey(userID string) string {
	return "cart:" + userID
}

// WishlistKey returns the cache key for a user's wishlist.
func WishlistKey(userID string) string {
	return "wishlist:" + userID
}

// userPattern matches every per-user key across namespaces.
func userPattern(userID string) string {
	return "*:" + userID
}
