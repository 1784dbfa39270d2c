package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/commercekit/storecore/pkg/cache"
	"github.com/commercekit/storecore/pkg/kv"
	"github.com/commercekit/storecore/pkg/logging"
	"github.com/commercekit/storecore/pkg/ratelimit"
	"github.com/commercekit/storecore/pkg/token"
)

func main() {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
	})

	// Configuration from environment
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	restURL := os.Getenv("KV_REST_URL")
	restToken := os.Getenv("KV_REST_TOKEN")
	jwtSecret := os.Getenv("JWT_SECRET")
	port := getEnv("PORT", "8080")

	if jwtSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	transport, err := buildTransport(redisURL, restURL, restToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build cache transport")
	}
	logger.Info().Str("transport", transport.Name()).Str("redis", redisURL).Msg("Cache transport ready")

	cacheService, err := cache.NewService(cache.DefaultConfig(transport))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache service")
	}

	tokens, err := token.NewService(token.DefaultConfig([]byte(jwtSecret)), nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create token service")
	}

	limiter := ratelimit.NewLimiter(transport)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(transport))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/me", meHandler(tokens, limiter))
	mux.HandleFunc("/products/", productHandler(tokens, cacheService))

	addr := ":" + port
	logger.Info().Str("addr", addr).Msg("Starting store gateway")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// buildTransport wires the Redis transport, adding the REST transport as a
// fallback leg when its credentials are configured.
func buildTransport(redisURL, restURL, restToken string) (kv.Transport, error) {
	redisTransport := kv.NewRedisTransport(redis.NewClient(&redis.Options{
		Addr: redisURL,
	}))

	if restURL == "" {
		return redisTransport, nil
	}

	restTransport, err := kv.NewRESTTransport(kv.RESTConfig{
		URL:   restURL,
		Token: restToken,
	})
	if err != nil {
		return nil, err
	}

	return kv.NewFallback(redisTransport, restTransport), nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func readyHandler(transport kv.Transport) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := transport.Ping(ctx); err != nil {
			http.Error(w, "cache backend unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

// meHandler resolves the caller's identity and reports it, together with the
// request budget left in the current rate limit window. Callers without a
// usable token receive a freshly minted anonymous token in X-Auth-Token.
func meHandler(tokens *token.Service, limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, err := tokens.AuthenticateRequest(r)
		if err != nil {
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}

		decision, err := limiter.Check(r.Context(), auth.Identity.Subject(), ratelimit.DefaultLimit, ratelimit.DefaultWindow)
		if err == nil {
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			if !decision.Allowed {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}

		if freshlyMinted(r, auth) {
			w.Header().Set("X-Auth-Token", auth.Token)
		}

		writeJSON(w, map[string]any{
			"subject":         auth.Identity.Subject(),
			"isAuthenticated": auth.Access.IsAuthenticated,
			"isAdmin":         auth.Access.IsAdmin,
			"isSuperAdmin":    auth.Access.IsSuperAdmin,
		})
	}
}

// productHandler serves cached product snapshots.
// Example: GET /products/sku-123
func productHandler(tokens *token.Service, cacheService *cache.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := tokens.AuthenticateRequest(r); err != nil {
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}

		productID := r.URL.Path[len("/products/"):]
		if productID == "" {
			http.Error(w, "product id is required", http.StatusBadRequest)
			return
		}

		var product json.RawMessage
		if err := cacheService.CachedProduct(r.Context(), productID, &product); err != nil {
			if cache.IsMiss(err) {
				http.Error(w, "product not cached", http.StatusNotFound)
				return
			}
			http.Error(w, "cache backend unreachable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(product)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// freshlyMinted reports whether the token on the response differs from the
// one the request arrived with, meaning the caller was issued a new identity.
func freshlyMinted(r *http.Request, auth token.Auth) bool {
	return !strings.Contains(r.Header.Get("Authorization"), auth.Token)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
