package cache

import (
	"errors"
	"fmt"
)

// Kind classifies cache operation outcomes.
type Kind string

const (
	// KindMiss indicates the key is absent.
	KindMiss Kind = "miss"

	// KindCorrupt indicates the payload could not be decoded.
	// Readers treat it exactly like a miss.
	KindCorrupt Kind = "corrupt"

	// KindTransport indicates the backend operation failed.
	KindTransport Kind = "transport"

	// KindBadInput indicates the caller offered a value that cannot be
	// cached (nil, or unserializable). Rejected before any I/O.
	KindBadInput Kind = "bad_input"

	// KindUnavailable indicates a write was skipped because the backend
	// failed its connectivity probe.
	KindUnavailable Kind = "unavailable"
)

// CacheError is returned by every failing Service operation.
type CacheError struct {
	Kind Kind
	Key  string
	Err  error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache %s (key %s): %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s (key %s)", e.Kind, e.Key)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CacheError) Unwrap() error {
	return e.Err
}

// IsMiss reports whether err means "no usable value": a plain miss or a
// corrupt entry. Transport failures are not misses.
func IsMiss(err error) bool {
	var ce *CacheError
	if errors.As(err, &ce) {
		return ce.Kind == KindMiss || ce.Kind == KindCorrupt
	}
	return false
}
