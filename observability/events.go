package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	published *prometheus.CounterVec
	indexed   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking published marketplace events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "listingchain",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of events published by committed calls segmented by type.",
			}, []string{"type"}),
			indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "listingchain",
				Subsystem: "events",
				Name:      "indexed_total",
				Help:      "Count of events written to the event index segmented by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.indexed)
	})
	return eventRegistry
}

// RecordPublished increments the published counter for the event type.
func (m *eventMetrics) RecordPublished(eventType string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// Published exposes the published counter for eventType.
func (m *eventMetrics) Published(eventType string) prometheus.Counter {
	return m.published.WithLabelValues(normalizeLabel(eventType))
}

// RecordIndexed counts an event write attempt by the indexer.
func (m *eventMetrics) RecordIndexed(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.indexed.WithLabelValues(outcome).Inc()
}

// Indexed exposes the indexed counter for outcome.
func (m *eventMetrics) Indexed(outcome string) prometheus.Counter {
	return m.indexed.WithLabelValues(outcome)
}
