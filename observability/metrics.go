package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks every call the ledger executes.
type LedgerMetrics struct {
	calls      *prometheus.CounterVec
	rejections *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "listingchain",
				Subsystem: "ledger",
				Name:      "calls_total",
				Help:      "Total ledger calls segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "listingchain",
				Subsystem: "ledger",
				Name:      "rejections_total",
				Help:      "Rejected ledger calls segmented by method and rejection reason.",
			}, []string{"method", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "listingchain",
				Subsystem: "ledger",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for ledger calls including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.calls,
			ledgerRegistry.rejections,
			ledgerRegistry.latency,
		)
	})
	return ledgerRegistry
}

// Observe records the outcome of a ledger call. reason is empty on success.
func (m *LedgerMetrics) Observe(method, outcome, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	method = normalizeLabel(method)
	m.calls.WithLabelValues(method, normalizeLabel(outcome)).Inc()
	if reason != "" {
		m.rejections.WithLabelValues(method, reason).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// Calls exposes the call counter for the supplied labels.
func (m *LedgerMetrics) Calls(method, outcome string) prometheus.Counter {
	return m.calls.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome))
}

// Rejections exposes the rejection counter for the supplied labels.
func (m *LedgerMetrics) Rejections(method, reason string) prometheus.Counter {
	return m.rejections.WithLabelValues(normalizeLabel(method), reason)
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
