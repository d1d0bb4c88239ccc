package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	active    *prometheus.GaugeVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking contract event subscriptions.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elegent",
				Subsystem: "events",
				Name:      "delivered_total",
				Help:      "Count of decoded contract events handed to callbacks, by event.",
			}, []string{"event"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elegent",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Count of contract events not delivered, by event and reason.",
			}, []string{"event", "reason"}),
			active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "elegent",
				Subsystem: "events",
				Name:      "subscriptions",
				Help:      "Live log subscriptions by event.",
			}, []string{"event"}),
		}
		prometheus.MustRegister(eventRegistry.delivered, eventRegistry.dropped, eventRegistry.active)
	})
	return eventRegistry
}

// RecordDelivered increments the delivered counter for the event.
func (m *eventMetrics) RecordDelivered(event string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(eventLabel(event)).Inc()
}

// RecordDropped counts an event that was filtered or failed to decode.
// Reasons in use: "malformed", "other_account".
func (m *eventMetrics) RecordDropped(event, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(eventLabel(event), normalizeLabel(reason)).Inc()
}

// SubscriptionOpened and SubscriptionClosed track the live subscription gauge.
func (m *eventMetrics) SubscriptionOpened(event string) {
	if m == nil {
		return
	}
	m.active.WithLabelValues(eventLabel(event)).Inc()
}

func (m *eventMetrics) SubscriptionClosed(event string) {
	if m == nil {
		return
	}
	m.active.WithLabelValues(eventLabel(event)).Dec()
}

func eventLabel(event string) string {
	trimmed := strings.TrimSpace(event)
	if trimmed == "" {
		return "Unknown"
	}
	return trimmed
}
