package kv

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for key-value transport operations.
var (
	kvRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_kv_requests_total",
		Help: "Total key-value commands by transport, command and outcome",
	}, []string{"transport", "command", "outcome"})

	kvRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_kv_request_duration_seconds",
		Help:    "Key-value command duration in seconds by transport and command",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"transport", "command"})

	kvErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_kv_errors_total",
		Help: "Total key-value transport errors by transport and class",
	}, []string{"transport", "class"})

	kvFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_kv_fallbacks_total",
		Help: "Total commands retried on the direct client after primary failure",
	}, []string{"command"})
)

// observe records request metrics for a completed command.
func observe(transport, command string, start time.Time, err error) {
	kvRequestDuration.WithLabelValues(transport, command).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil && !errors.Is(err, ErrNotFound) {
		outcome = "error"
	}
	kvRequestsTotal.WithLabelValues(transport, command, outcome).Inc()

	var te *TransportError
	if errors.As(err, &te) {
		kvErrorsTotal.WithLabelValues(transport, string(te.Class)).Inc()
	}
}
