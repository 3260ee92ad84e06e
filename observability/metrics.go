// Package observability holds the Prometheus metrics of the service.
// Everything is registered on the default registry and served by the
// /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SeedsGranted counts granted seeds by rule category.
var SeedsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "seed_grants_total",
	Help: "Seeds granted, labeled by reason category.",
}, []string{"reason"})

// SeedsUsed counts spent seeds.
var SeedsUsed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "seed_uses_total",
	Help: "Seeds spent by users.",
})

// BalanceConflicts counts optimistic write conflicts, including the ones
// that later succeeded on retry.
var BalanceConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "seed_balance_conflicts_total",
	Help: "Version conflicts observed while writing balances.",
})

// AccrualFailures counts rule evaluations that failed to persist.
var AccrualFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "seed_accrual_failures_total",
	Help: "Accrual rules that failed to persist a grant.",
}, []string{"rule"})

// RequestDuration tracks HTTP handler latency.
var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "seed_http_request_duration_seconds",
	Help:    "HTTP request latency by route and status class.",
	Buckets: prometheus.DefBuckets,
}, []string{"route", "status"})
