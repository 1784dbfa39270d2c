package integration

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/commercekit/storecore/internal/testutil"
	"github.com/commercekit/storecore/pkg/cache"
	"github.com/commercekit/storecore/pkg/kv"
	"github.com/commercekit/storecore/pkg/ratelimit"
	"github.com/commercekit/storecore/pkg/token"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func setupServices(t *testing.T, transport kv.Transport) (*cache.Service, *token.Service) {
	t.Helper()

	cacheService, err := cache.NewService(cache.DefaultConfig(transport))
	if err != nil {
		t.Fatalf("Failed to create cache service: %v", err)
	}

	tokens, err := token.NewService(token.DefaultConfig([]byte("integration-test-secret")), nil)
	if err != nil {
		t.Fatalf("Failed to create token service: %v", err)
	}

	return cacheService, tokens
}

type session struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type cart struct {
	UserID string   `json:"userId"`
	Items  []string `json:"items"`
}

// TestSessionLifecycle drives the full login flow: token issuance, session
// caching, request authentication, and logout cleanup.
func TestSessionLifecycle(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	transport := kv.NewRedisTransport(redisClient)
	cacheService, tokens := setupServices(t, transport)
	ctx := context.Background()

	// Login: issue a token and cache the session
	signed, err := tokens.IssueAuthenticated(ctx, "u1", "a@shop.example")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	if err := cacheService.CacheUserSession(ctx, "u1", session{UserID: "u1", Token: signed}); err != nil {
		t.Fatalf("Failed to cache session: %v", err)
	}

	// An authenticated request resolves to the same user
	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	auth, err := tokens.AuthenticateRequest(req)
	if err != nil {
		t.Fatalf("Failed to authenticate request: %v", err)
	}
	if auth.Identity.Subject() != "u1" || !auth.Access.IsAuthenticated {
		t.Fatalf("auth = %+v, want authenticated u1", auth)
	}

	// The session is readable while logged in
	var got session
	if err := cacheService.CachedUserSession(ctx, "u1", &got); err != nil {
		t.Fatalf("Failed to read session: %v", err)
	}
	if got.Token != signed {
		t.Error("Session token did not round-trip")
	}

	// Populate the rest of the user's cache
	if err := cacheService.CacheUserCart(ctx, "u1", cart{UserID: "u1", Items: []string{"sku-1"}}); err != nil {
		t.Fatalf("Failed to cache cart: %v", err)
	}
	if err := cacheService.CacheUserWishlist(ctx, "u1", []string{"sku-2"}); err != nil {
		t.Fatalf("Failed to cache wishlist: %v", err)
	}

	// Logout: one call clears every per-user entry
	removed, err := cacheService.ClearUserCache(ctx, "u1")
	if err != nil {
		t.Fatalf("ClearUserCache failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	if err := cacheService.CachedUserSession(ctx, "u1", &got); !cache.IsMiss(err) {
		t.Errorf("Session after logout = %v, want miss", err)
	}
}

// TestFailoverFlow verifies that cache traffic survives the primary backend
// dying by draining to the REST transport.
func TestFailoverFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mockKV := testutil.NewMockKV("integration-test-token")
	defer mockKV.Close()

	direct, err := kv.NewRESTTransport(kv.RESTConfig{
		URL:   mockKV.URL(),
		Token: mockKV.Token(),
	})
	if err != nil {
		t.Fatalf("Failed to create REST transport: %v", err)
	}

	transport := kv.NewFallback(kv.NewRedisTransport(redisClient), direct)
	cacheService, _ := setupServices(t, transport)
	ctx := context.Background()

	// Healthy primary: the REST leg stays idle
	if err := cacheService.CacheProduct(ctx, "sku-1", map[string]string{"name": "Desk Lamp"}); err != nil {
		t.Fatalf("Failed to cache product: %v", err)
	}
	if mockKV.RequestCount != 0 {
		t.Errorf("REST requests with healthy primary = %d, want 0", mockKV.RequestCount)
	}

	// Kill the primary; writes and reads must keep working
	redisClient.Close()

	c := cart{UserID: "u1", Items: []string{"sku-1", "sku-2"}}
	if err := cacheService.CacheUserCart(ctx, "u1", c); err != nil {
		t.Fatalf("Cart write during outage failed: %v", err)
	}

	var got cart
	if err := cacheService.CachedUserCart(ctx, "u1", &got); err != nil {
		t.Fatalf("Cart read during outage failed: %v", err)
	}
	if len(got.Items) != 2 {
		t.Errorf("Cart items = %d, want 2", len(got.Items))
	}
	if mockKV.RequestCount == 0 {
		t.Error("Expected the REST transport to carry traffic during the outage")
	}
}

// TestRateLimitWindow verifies fixed window counting against a real backend.
func TestRateLimitWindow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	limiter := ratelimit.NewLimiter(kv.NewRedisTransport(redisClient))
	ctx := context.Background()

	const limit = 3
	window := 1 * time.Second

	for i := 0; i < limit; i++ {
		decision, err := limiter.Check(ctx, "203.0.113.9", limit, window)
		if err != nil {
			t.Fatalf("Check %d failed: %v", i+1, err)
		}
		if !decision.Allowed {
			t.Fatalf("Check %d blocked, want allowed", i+1)
		}
	}

	decision, err := limiter.Check(ctx, "203.0.113.9", limit, window)
	if err != nil {
		t.Fatalf("Over-limit check failed: %v", err)
	}
	if decision.Allowed {
		t.Error("Over-limit check allowed, want blocked")
	}

	// A new window admits requests again
	time.Sleep(window + 200*time.Millisecond)

	decision, err = limiter.Check(ctx, "203.0.113.9", limit, window)
	if err != nil {
		t.Fatalf("Post-window check failed: %v", err)
	}
	if !decision.Allowed {
		t.Error("Post-window check blocked, want allowed")
	}
}

// TestCorruptPayloadRecovery verifies that garbage in the backend reads as a
// miss and can be overwritten with a good value.
func TestCorruptPayloadRecovery(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	cacheService, _ := setupServices(t, kv.NewRedisTransport(redisClient))
	ctx := context.Background()

	// Simulate an upstream error page landing in the cache
	if err := redisClient.Set(ctx, "product:sku-9", "<html><body>502 Bad Gateway</body></html>", time.Hour).Err(); err != nil {
		t.Fatalf("Failed to seed corrupt payload: %v", err)
	}

	var got map[string]string
	err := cacheService.CachedProduct(ctx, "sku-9", &got)
	if !cache.IsMiss(err) {
		t.Fatalf("Corrupt payload read = %v, want miss", err)
	}

	// The caller treats the miss as usual and repopulates
	if err := cacheService.CacheProduct(ctx, "sku-9", map[string]string{"name": "Desk Lamp"}); err != nil {
		t.Fatalf("Failed to repopulate: %v", err)
	}
	if err := cacheService.CachedProduct(ctx, "sku-9", &got); err != nil {
		t.Fatalf("Read after repopulate failed: %v", err)
	}
	if got["name"] != "Desk Lamp" {
		t.Errorf("Repopulated value = %v", got)
	}
}

// TestAnonymousVisitorFlow exercises the guest path: minted identity, cart
// caching under the visitor id, and rate limiting by subject.
func TestAnonymousVisitorFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	transport := kv.NewRedisTransport(redisClient)
	cacheService, tokens := setupServices(t, transport)
	limiter := ratelimit.NewLimiter(transport)
	ctx := context.Background()

	// A bare request gets a guest identity
	req := httptest.NewRequest("GET", "/products", nil)
	auth, err := tokens.AuthenticateRequest(req)
	if err != nil {
		t.Fatalf("Failed to authenticate request: %v", err)
	}
	visitor := auth.Identity.Subject()
	if auth.Access.IsAuthenticated || visitor == "" {
		t.Fatalf("auth = %+v, want a guest identity", auth)
	}

	// The minted token keeps resolving to the same visitor
	req2 := httptest.NewRequest("GET", "/products", nil)
	req2.Header.Set("Authorization", "Bearer "+auth.Token)
	auth2, err := tokens.AuthenticateRequest(req2)
	if err != nil {
		t.Fatalf("Failed to authenticate follow-up request: %v", err)
	}
	if auth2.Identity.Subject() != visitor {
		t.Errorf("Follow-up subject = %s, want %s", auth2.Identity.Subject(), visitor)
	}

	// Guest carts live under the visitor id
	if err := cacheService.CacheUserCart(ctx, visitor, cart{UserID: visitor, Items: []string{"sku-1"}}); err != nil {
		t.Fatalf("Failed to cache guest cart: %v", err)
	}
	var got cart
	if err := cacheService.CachedUserCart(ctx, visitor, &got); err != nil {
		t.Fatalf("Failed to read guest cart: %v", err)
	}

	// Guests are rate limited by subject like everyone else
	decision, err := limiter.Check(ctx, visitor, ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	if err != nil {
		t.Fatalf("Rate limit check failed: %v", err)
	}
	if !decision.Allowed {
		t.Error("First guest request should be allowed")
	}
}
