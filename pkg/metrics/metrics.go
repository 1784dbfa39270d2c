// Package metrics provides the centralized Prometheus metrics registry for
// storecore. All metrics are defined in their respective packages (kv, cache,
// ratelimit, token) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by storecore.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Transport Metrics (pkg/kv):
//   - store_kv_requests_total{transport, command, outcome} (Counter): Backend commands by outcome
//   - store_kv_request_duration_seconds{transport, command} (Histogram): Command duration
//   - store_kv_errors_total{transport, class} (Counter): Errors by class (client, server, network, html_body)
//   - store_kv_fallbacks_total{command} (Counter): Commands answered by the direct transport
//
// Cache Metrics (pkg/cache):
//   - store_cache_hits_total (Counter): Reads answered from cache
//   - store_cache_misses_total (Counter): Reads with no cached value
//   - store_cache_corrupt_payloads_total (Counter): Payloads discarded as unparseable
//   - store_cache_errors_total{operation} (Counter): Cache operation errors
//   - store_cache_rejected_writes_total (Counter): Writes rejected before reaching the backend
//   - store_cache_skipped_writes_total (Counter): Writes skipped because no backend was reachable
//
// Rate Limit Metrics (pkg/ratelimit):
//   - store_rate_limit_allowed_total (Counter): Requests admitted within the window
//   - store_rate_limit_blocked_total (Counter): Requests rejected over the window limit
//   - store_rate_limit_errors_total (Counter): Limit checks that failed at the backend
//
// Token Metrics (pkg/token):
//   - store_tokens_issued_total{kind} (Counter): Tokens signed, by kind (authenticated, anonymous)
//   - store_token_verify_failures_total{reason} (Counter): Verification failures by reason
//   - store_auth_requests_total{outcome} (Counter): Request authentication outcomes
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(store_cache_hits_total[5m])) /
//   (sum(rate(store_cache_hits_total[5m])) + sum(rate(store_cache_misses_total[5m])))
//
//   # Fallback Rate
//   sum(rate(store_kv_fallbacks_total[5m])) / sum(rate(store_kv_requests_total[5m]))
//
//   # Backend Error Rate by Class
//   rate(store_kv_errors_total[5m])
//
//   # P95 Backend Latency
//   histogram_quantile(0.95, rate(store_kv_request_duration_seconds_bucket[5m]))
//
//   # Rate Limit Pressure
//   rate(store_rate_limit_blocked_total[5m])
