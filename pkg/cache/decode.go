package cache

import (
	"encoding/json"
	"strings"
)

// corruptionMarkers are payload prefixes that can never be a value this
// service wrote: HTML error pages stored by a confused backend, and the
// stringified-object artifact left behind by a non-serializing writer.
var corruptionMarkers = []string{
	"<!doctype",
	"<html",
	"[object object]",
}

// looksCorrupt reports whether a raw payload matches a known corruption
// signature and must be treated as absent rather than parsed.
func looksCorrupt(payload string) bool {
	s := strings.ToLower(strings.TrimSpace(payload))
	for _, marker := range corruptionMarkers {
		if strings.HasPrefix(s, marker) {
			return true
		}
	}
	return false
}

// decode deserializes a raw payload into dest, running the corruption checks
// first. Corrupt or unparseable payloads return KindCorrupt, which readers
// treat as a miss.
func decode(key, payload string, dest any) error {
	if looksCorrupt(payload) {
		return &CacheError{Kind: KindCorrupt, Key: key}
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return &CacheError{Kind: KindCorrupt, Key: key, Err: err}
	}
	return nil
}
