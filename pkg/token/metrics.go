package token

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for token operations.
var (
	tokensIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_tokens_issued_total",
		Help: "Total identity tokens issued by kind",
	}, []string{"kind"}) // "authenticated", "anonymous"

	tokenVerifyFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_token_verify_failures_total",
		Help: "Total token verification failures by reason",
	}, []string{"reason"}) // "expired", "invalid_signature", "invalid"

	authRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_auth_requests_total",
		Help: "Total request authentications by outcome",
	}, []string{"outcome"}) // "authenticated", "anonymous", "minted", "downgraded"
)
