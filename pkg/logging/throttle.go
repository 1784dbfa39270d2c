package logging

import (
	"sync"
	"time"
)

// Throttle suppresses repeated log events for the same topic, allowing at
// most one event per topic per interval. It exists so a cold cache under
// high read traffic does not flood the log with identical warnings.
//
// The topic map is bounded: when it reaches capacity, entries older than
// the interval are evicted; if none are stale, the new topic is admitted
// unthrottled without being tracked. The throttle is advisory only.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	capacity int
	last     map[string]time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// DefaultThrottleInterval is the minimum spacing between identical topics.
const DefaultThrottleInterval = time.Second

// DefaultThrottleCapacity bounds the number of tracked topics.
const DefaultThrottleCapacity = 4096

// NewThrottle creates a throttle allowing one event per topic per interval.
func NewThrottle(interval time.Duration, capacity int) *Throttle {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	if capacity <= 0 {
		capacity = DefaultThrottleCapacity
	}
	return &Throttle{
		interval: interval,
		capacity: capacity,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether an event for topic should be emitted now.
func (t *Throttle) Allow(topic string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.last[topic]; ok {
		if now.Sub(last) < t.interval {
			return false
		}
		t.last[topic] = now
		return true
	}

	if len(t.last) >= t.capacity {
		t.evictStale(now)
		if len(t.last) >= t.capacity {
			return true
		}
	}

	t.last[topic] = now
	return true
}

// Len returns the number of tracked topics.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

// Reset drops all tracked topics.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]time.Time)
}

// evictStale removes topics not seen within the interval. Callers hold t.mu.
func (t *Throttle) evictStale(now time.Time) {
	for topic, last := range t.last {
		if now.Sub(last) >= t.interval {
			delete(t.last, topic)
		}
	}
}
