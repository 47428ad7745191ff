// Package metrics exposes the Prometheus instrumentation surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vaultscope"

var (
	// UnifyPasses counts completed normalize/dedup passes.
	UnifyPasses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "unify",
		Name:      "passes_total",
		Help:      "Completed backup unification passes.",
	})

	// UnifyDuration observes wall time per unification pass.
	UnifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "unify",
		Name:      "duration_seconds",
		Help:      "Duration of backup unification passes.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	// CanonicalRecords tracks the size of the last canonical collection.
	CanonicalRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "unify",
		Name:      "canonical_records",
		Help:      "Canonical backup records produced by the last pass.",
	})

	// RequestsTotal counts API requests per endpoint.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "API requests served, by endpoint.",
	}, []string{"endpoint"})

	// WebsocketClients tracks currently connected websocket clients.
	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Currently connected websocket clients.",
	})
)

// ObserveUnifyPass records one completed pass.
func ObserveUnifyPass(seconds float64, records int) {
	UnifyPasses.Inc()
	UnifyDuration.Observe(seconds)
	CanonicalRecords.Set(float64(records))
}
