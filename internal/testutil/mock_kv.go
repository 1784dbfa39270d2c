// Package testutil provides testing utilities for the storefront core.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockKV is a configurable in-memory key-value backend speaking the REST
// command protocol: POST /{command}/{args...} with a bearer credential and
// a {"result": ...} JSON envelope. Used to test the REST transport and the
// layers above it without a real backend.
type MockKV struct {
	server *httptest.Server
	mu     sync.Mutex

	token  string
	values map[string]mockEntry

	// Failure injection: while failuresLeft > 0 (or failuresLeft < 0 for
	// "fail forever"), every request answers failStatus/failBody.
	failuresLeft int
	failStatus   int
	failBody     string

	// Tracking
	RequestCount int
	LastCommand  string
}

type mockEntry struct {
	value     string
	expiresAt time.Time
}

// NewMockKV starts a mock backend accepting the given bearer token.
func NewMockKV(token string) *MockKV {
	mock := &MockKV{
		token:  token,
		values: make(map[string]mockEntry),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockKV) URL() string {
	return m.server.URL
}

// Token returns the accepted bearer credential.
func (m *MockKV) Token() string {
	return m.token
}

// Close shuts down the mock server.
func (m *MockKV) Close() {
	m.server.Close()
}

// FailNext makes the next n requests answer with the given status and body.
// Pass n < 0 to fail every request until Recover is called.
func (m *MockKV) FailNext(n int, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failuresLeft = n
	m.failStatus = status
	m.failBody = body
}

// FailWithHTML makes requests answer with an HTML error page, mimicking the
// backend outage signature.
func (m *MockKV) FailWithHTML(n int) {
	m.FailNext(n, http.StatusServiceUnavailable,
		"<!DOCTYPE html>\n<html><body><h1>503 Service Unavailable</h1></body></html>")
}

// Recover clears any pending failure injection.
func (m *MockKV) Recover() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failuresLeft = 0
}

// Put seeds a raw value directly into the store, bypassing the protocol.
func (m *MockKV) Put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = mockEntry{value: value}
}

// Value returns the raw stored value and whether it exists.
func (m *MockKV) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.liveEntry(key)
	return entry.value, ok
}

// Reset clears the store and all tracking counters.
func (m *MockKV) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]mockEntry)
	m.RequestCount = 0
	m.LastCommand = ""
	m.failuresLeft = 0
}

func (m *MockKV) handle(w http.ResponseWriter, r *http.Request) {
	segments, err := splitCommand(r.URL.EscapedPath())
	if err != nil || len(segments) == 0 {
		writeError(w, http.StatusBadRequest, "malformed command path")
		return
	}
	command := strings.ToLower(segments[0])
	args := segments[1:]

	m.mu.Lock()
	defer m.mu.Unlock()

	m.RequestCount++
	m.LastCommand = command

	if m.failuresLeft != 0 {
		if m.failuresLeft > 0 {
			m.failuresLeft--
		}
		w.WriteHeader(m.failStatus)
		fmt.Fprint(w, m.failBody)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+m.token {
		writeError(w, http.StatusUnauthorized, "invalid credential")
		return
	}

	switch command {
	case "ping":
		writeResult(w, "PONG")

	case "get":
		if len(args) != 1 {
			writeError(w, http.StatusBadRequest, "wrong number of arguments for 'get'")
			return
		}
		entry, ok := m.liveEntry(args[0])
		if !ok {
			writeResult(w, nil)
			return
		}
		writeResult(w, entry.value)

	case "set":
		if len(args) != 2 {
			writeError(w, http.StatusBadRequest, "wrong number of arguments for 'set'")
			return
		}
		m.values[args[0]] = mockEntry{value: args[1]}
		writeResult(w, "OK")

	case "setex":
		if len(args) != 3 {
			writeError(w, http.StatusBadRequest, "wrong number of arguments for 'setex'")
			return
		}
		seconds, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || seconds <= 0 {
			writeError(w, http.StatusBadRequest, "invalid expire time in 'setex'")
			return
		}
		m.values[args[0]] = mockEntry{
			value:     args[2],
			expiresAt: time.Now().Add(time.Duration(seconds) * time.Second),
		}
		writeResult(w, "OK")

	case "del":
		var removed int64
		for _, key := range args {
			if _, ok := m.liveEntry(key); ok {
				removed++
			}
			delete(m.values, key)
		}
		writeResult(w, removed)

	case "keys":
		if len(args) != 1 {
			writeError(w, http.StatusBadRequest, "wrong number of arguments for 'keys'")
			return
		}
		matched := []string{}
		for key := range m.values {
			if _, ok := m.liveEntry(key); !ok {
				continue
			}
			if ok, _ := path.Match(args[0], key); ok {
				matched = append(matched, key)
			}
		}
		writeResult(w, matched)

	case "incr":
		if len(args) != 1 {
			writeError(w, http.StatusBadRequest, "wrong number of arguments for 'incr'")
			return
		}
		entry, _ := m.liveEntry(args[0])
		current := int64(0)
		if entry.value != "" {
			parsed, err := strconv.ParseInt(entry.value, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "value is not an integer")
				return
			}
			current = parsed
		}
		current++
		entry.value = strconv.FormatInt(current, 10)
		m.values[args[0]] = entry
		writeResult(w, current)

	case "expire":
		if len(args) != 2 {
			writeError(w, http.StatusBadRequest, "wrong number of arguments for 'expire'")
			return
		}
		seconds, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid expire time in 'expire'")
			return
		}
		entry, ok := m.liveEntry(args[0])
		if !ok {
			writeResult(w, int64(0))
			return
		}
		entry.expiresAt = time.Now().Add(time.Duration(seconds) * time.Second)
		m.values[args[0]] = entry
		writeResult(w, int64(1))

	default:
		writeError(w, http.StatusBadRequest, "unknown command '"+command+"'")
	}
}

// liveEntry returns the entry for key, treating expired entries as absent.
// Callers must hold m.mu.
func (m *MockKV) liveEntry(key string) (mockEntry, bool) {
	entry, ok := m.values[key]
	if !ok {
		return mockEntry{}, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(m.values, key)
		return mockEntry{}, false
	}
	return entry, true
}

// splitCommand splits an escaped URL path into decoded segments.
func splitCommand(escapedPath string) ([]string, error) {
	trimmed := strings.Trim(escapedPath, "/")
	if trimmed == "" {
		return nil, nil
	}
	raw := strings.Split(trimmed, "/")
	segments := make([]string, 0, len(raw))
	for _, segment := range raw {
		decoded, err := url.PathUnescape(segment)
		if err != nil {
			return nil, err
		}
		segments = append(segments, decoded)
	}
	return segments, nil
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": message})
}
