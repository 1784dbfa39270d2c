package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks successful reads.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses tracks reads of absent keys.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CorruptPayloads tracks payloads rejected as unparseable.
	CorruptPayloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_cache_corrupt_payloads_total",
			Help: "Total number of cache payloads rejected as corrupt and served as misses",
		},
	)

	// CacheErrors tracks failed backend operations.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "clear"
	)

	// RejectedWrites tracks writes refused before any I/O (nil values,
	// unserializable values).
	RejectedWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_cache_rejected_writes_total",
			Help: "Total number of cache writes rejected for bad input",
		},
	)

	// SkippedWrites tracks writes skipped because the backend failed its
	// connectivity probe.
	SkippedWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_cache_skipped_writes_total",
			Help: "Total number of cache writes skipped while the backend was unreachable",
		},
	)
)
