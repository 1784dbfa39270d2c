package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/commercekit/storecore/internal/testutil"
)

func setupRESTTransport(t *testing.T) (*RESTTransport, *testutil.MockKV) {
	t.Helper()

	mock := testutil.NewMockKV("test-token")
	t.Cleanup(mock.Close)

	transport, err := NewRESTTransport(RESTConfig{
		URL:   mock.URL(),
		Token: mock.Token(),
	})
	if err != nil {
		t.Fatalf("NewRESTTransport failed: %v", err)
	}
	return transport, mock
}

func TestNewRESTTransport_Validation(t *testing.T) {
	if _, err := NewRESTTransport(RESTConfig{Token: "x"}); err == nil {
		t.Error("expected error for missing URL")
	}
	if _, err := NewRESTTransport(RESTConfig{URL: "http://localhost"}); err == nil {
		t.Error("expected error for missing token")
	}
}

func TestRESTTransport_SetGet(t *testing.T) {
	transport, _ := setupRESTTransport(t)
	ctx := context.Background()

	value := `{"items":[{"sku":"A-1","qty":2}],"note":"with spaces / and slashes"}`
	if err := transport.Set(ctx, "cart:user1", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := transport.Get(ctx, "cart:user1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != value {
		t.Errorf("Get = %q, want %q", got, value)
	}
}

func TestRESTTransport_GetMissing(t *testing.T) {
	transport, _ := setupRESTTransport(t)

	_, err := transport.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestRESTTransport_SetEx(t *testing.T) {
	transport, mock := setupRESTTransport(t)
	ctx := context.Background()

	if err := transport.SetEx(ctx, "user:session:u1", `{"cartId":"c1"}`, time.Hour); err != nil {
		t.Fatalf("SetEx failed: %v", err)
	}
	if _, ok := mock.Value("user:session:u1"); !ok {
		t.Error("SetEx did not store the value")
	}

	// Sub-second TTLs must still expire, never persist forever.
	if err := transport.SetEx(ctx, "short", "v", 100*time.Millisecond); err != nil {
		t.Fatalf("SetEx with sub-second TTL failed: %v", err)
	}
}

func TestRESTTransport_Incr(t *testing.T) {
	transport, _ := setupRESTTransport(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := transport.Incr(ctx, "rate_limit:ip1")
		if err != nil {
			t.Fatalf("Incr failed: %v", err)
		}
		if got != want {
			t.Errorf("Incr = %d, want %d", got, want)
		}
	}
}

func TestRESTTransport_Expire(t *testing.T) {
	transport, _ := setupRESTTransport(t)
	ctx := context.Background()

	ok, err := transport.Expire(ctx, "missing", time.Minute)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if ok {
		t.Error("Expire on missing key should return false")
	}

	if err := transport.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	ok, err = transport.Expire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if !ok {
		t.Error("Expire on existing key should return true")
	}
}

func TestRESTTransport_DelAndKeys(t *testing.T) {
	transport, _ := setupRESTTransport(t)
	ctx := context.Background()

	for _, key := range []string{"cart:u1", "wishlist:u1", "cart:u2"} {
		if err := transport.Set(ctx, key, "{}"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	keys, err := transport.Keys(ctx, "*:u1")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Keys matched %d keys, want 2: %v", len(keys), keys)
	}

	removed, err := transport.Del(ctx, keys...)
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Del removed %d keys, want 2", removed)
	}

	if _, err := transport.Get(ctx, "cart:u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Del = %v, want ErrNotFound", err)
	}
}

func TestRESTTransport_HTMLErrorPage(t *testing.T) {
	transport, mock := setupRESTTransport(t)
	mock.FailWithHTML(1)

	_, err := transport.Get(context.Background(), "k")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Get = %v, want TransportError", err)
	}
	if te.Class != ErrorClassHTMLBody {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassHTMLBody)
	}
	if te.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", te.StatusCode)
	}
}

func TestRESTTransport_JSONError(t *testing.T) {
	transport, mock := setupRESTTransport(t)
	mock.FailNext(1, 500, `{"error":"backend exploded"}`)

	err := transport.Set(context.Background(), "k", "v")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Set = %v, want TransportError", err)
	}
	if te.Class != ErrorClassServer {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassServer)
	}
	if te.Message != "backend exploded" {
		t.Errorf("Message = %q, want backend error message", te.Message)
	}
}

func TestRESTTransport_BadCredential(t *testing.T) {
	mock := testutil.NewMockKV("right-token")
	t.Cleanup(mock.Close)

	transport, err := NewRESTTransport(RESTConfig{URL: mock.URL(), Token: "wrong-token"})
	if err != nil {
		t.Fatalf("NewRESTTransport failed: %v", err)
	}

	_, err = transport.Get(context.Background(), "k")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Get = %v, want TransportError", err)
	}
	if te.Class != ErrorClassClient {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassClient)
	}
}

func TestRESTTransport_NetworkError(t *testing.T) {
	mock := testutil.NewMockKV("token")
	transport, err := NewRESTTransport(RESTConfig{URL: mock.URL(), Token: "token"})
	if err != nil {
		t.Fatalf("NewRESTTransport failed: %v", err)
	}
	mock.Close()

	_, err = transport.Get(context.Background(), "k")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Get = %v, want TransportError", err)
	}
	if te.Class != ErrorClassNetwork {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassNetwork)
	}
}
