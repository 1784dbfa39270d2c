package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RESTConfig holds the direct client configuration.
type RESTConfig struct {
	// URL is the base URL of the key-value REST endpoint.
	URL string

	// Token is the bearer credential sent with every command.
	Token string

	// Timeout bounds each HTTP request (default 30s).
	Timeout time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// RESTTransport speaks the backend's REST command protocol with plain HTTP
// calls: POST {url}/{command}/{args...} with a bearer credential. It exists
// as the fallback leg when the wire client cannot reach the backend.
type RESTTransport struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// restResponse is the JSON envelope returned by the backend.
type restResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// NewRESTTransport creates the direct client.
func NewRESTTransport(cfg RESTConfig) (*RESTTransport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rest transport URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("rest transport token is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &RESTTransport{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     log.With().Str("component", "kv-rest").Logger(),
	}, nil
}

// Name identifies this transport in logs and metrics.
func (t *RESTTransport) Name() string { return "rest" }

// Ping checks connectivity to the backend.
func (t *RESTTransport) Ping(ctx context.Context) error {
	_, err := t.do(ctx, "ping")
	return err
}

// Get returns the value stored at key, or ErrNotFound.
func (t *RESTTransport) Get(ctx context.Context, key string) (string, error) {
	raw, err := t.do(ctx, "get", key)
	if err != nil {
		return "", err
	}
	return t.resultString("get", raw)
}

// Set stores value at key without expiry.
func (t *RESTTransport) Set(ctx context.Context, key, value string) error {
	_, err := t.do(ctx, "set", key, value)
	return err
}

// SetEx stores value at key with the given TTL.
func (t *RESTTransport) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := t.do(ctx, "setex", key, strconv.FormatInt(ttlSeconds(ttl), 10), value)
	return err
}

// Del removes the given keys and returns how many existed.
func (t *RESTTransport) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	raw, err := t.do(ctx, "del", keys...)
	if err != nil {
		return 0, err
	}
	return t.resultInt("del", raw)
}

// Keys returns all keys matching a glob pattern.
func (t *RESTTransport) Keys(ctx context.Context, pattern string) ([]string, error) {
	raw, err := t.do(ctx, "keys", pattern)
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, t.malformed("keys", err)
	}
	return keys, nil
}

// Incr atomically increments the integer at key and returns the new value.
func (t *RESTTransport) Incr(ctx context.Context, key string) (int64, error) {
	raw, err := t.do(ctx, "incr", key)
	if err != nil {
		return 0, err
	}
	return t.resultInt("incr", raw)
}

// Expire sets a TTL on an existing key.
func (t *RESTTransport) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	raw, err := t.do(ctx, "expire", key, strconv.FormatInt(ttlSeconds(ttl), 10))
	if err != nil {
		return false, err
	}
	n, err := t.resultInt("expire", raw)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// do executes a single command as POST {base}/{command}/{args...} and
// returns the raw result field of the response envelope.
func (t *RESTTransport) do(ctx context.Context, command string, args ...string) (json.RawMessage, error) {
	start := time.Now()
	raw, err := t.exec(ctx, command, args)
	observe(t.Name(), command, start, err)
	return raw, err
}

func (t *RESTTransport) exec(ctx context.Context, command string, args []string) (json.RawMessage, error) {
	segments := make([]string, 0, len(args)+1)
	segments = append(segments, command)
	for _, arg := range args {
		segments = append(segments, url.PathEscape(arg))
	}
	endpoint := t.baseURL + "/" + strings.Join(segments, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, &TransportError{
			Transport: t.Name(),
			Command:   command,
			Class:     ErrorClassClient,
			Message:   "build request",
			Err:       err,
		}
	}
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{
			Transport: t.Name(),
			Command:   command,
			Class:     ErrorClassNetwork,
			Message:   "request failed",
			Err:       err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			Transport: t.Name(),
			Command:   command,
			Class:     ErrorClassNetwork,
			Message:   "read response body",
			Err:       err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if isHTMLBody(body) {
			// HTML instead of the JSON envelope means the backend (or something
			// in front of it) is broken or the credential is wrong. Distinct
			// class so it alerts differently from application-level failures.
			t.logger.Error().
				Int("status_code", resp.StatusCode).
				Str("command", command).
				Msg("Backend answered with an HTML error page")
			return nil, &TransportError{
				Transport:  t.Name(),
				Command:    command,
				StatusCode: resp.StatusCode,
				Class:      ErrorClassHTMLBody,
				Message:    "html error page instead of json envelope",
			}
		}

		message := strings.TrimSpace(string(body))
		var parsed restResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			message = parsed.Error
		}
		class := ErrorClassServer
		if resp.StatusCode < 500 {
			class = ErrorClassClient
		}
		return nil, &TransportError{
			Transport:  t.Name(),
			Command:    command,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    message,
		}
	}

	var parsed restResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, t.malformed(command, err)
	}
	return parsed.Result, nil
}

// resultString decodes a string result. A null result means the key is absent.
func (t *RESTTransport) resultString(command string, raw json.RawMessage) (string, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", t.malformed(command, err)
	}
	if s == nil {
		return "", ErrNotFound
	}
	return *s, nil
}

// resultInt decodes an integer result.
func (t *RESTTransport) resultInt(command string, raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, t.malformed(command, err)
	}
	return n, nil
}

func (t *RESTTransport) malformed(command string, err error) error {
	return &TransportError{
		Transport: t.Name(),
		Command:   command,
		Class:     ErrorClassServer,
		Message:   "malformed response body",
		Err:       err,
	}
}

// ttlSeconds converts a duration to whole seconds for the wire protocol.
// Sub-second TTLs round up so a positive TTL never becomes "no expiry".
func ttlSeconds(ttl time.Duration) int64 {
	seconds := int64(ttl / time.Second)
	if seconds <= 0 && ttl > 0 {
		seconds = 1
	}
	return seconds
}
