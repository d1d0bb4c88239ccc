package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type contractMetrics struct {
	calls        *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	transactions *prometheus.CounterVec
	polls        *prometheus.CounterVec
}

type dashboardMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	contractMetricsOnce sync.Once
	contractRegistry    *contractMetrics

	dashboardMetricsOnce sync.Once
	dashboardRegistry    *dashboardMetrics
)

// ContractMetrics returns the lazily-initialised registry recording platform
// contract reads, transactions and snapshot polls.
func ContractMetrics() *contractMetrics {
	contractMetricsOnce.Do(func() {
		contractRegistry = &contractMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elegent",
				Subsystem: "contract",
				Name:      "calls_total",
				Help:      "Total contract calls segmented by method, kind and outcome.",
			}, []string{"method", "kind", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "elegent",
				Subsystem: "contract",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for contract calls including confirmation.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "kind"}),
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elegent",
				Subsystem: "contract",
				Name:      "transactions_total",
				Help:      "Submitted transactions segmented by method and final status.",
			}, []string{"method", "status"}),
			polls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elegent",
				Subsystem: "stats",
				Name:      "polls_total",
				Help:      "Platform snapshot polls segmented by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			contractRegistry.calls,
			contractRegistry.latency,
			contractRegistry.transactions,
			contractRegistry.polls,
		)
	})
	return contractRegistry
}

// Observe records a read ("view") or write ("tx") against the contract.
func (m *contractMetrics) Observe(method, kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	method = normalizeLabel(method)
	kind = normalizeLabel(kind)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(method, kind, outcome).Inc()
	m.latency.WithLabelValues(method, kind).Observe(duration.Seconds())
}

// RecordTransaction counts a submitted transaction once its fate is known.
// Typical statuses are "mined", "reverted" and "failed".
func (m *contractMetrics) RecordTransaction(method, status string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(normalizeLabel(method), normalizeLabel(status)).Inc()
}

// RecordPoll counts one snapshot poll.
func (m *contractMetrics) RecordPoll(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.polls.WithLabelValues(outcome).Inc()
}

// DashboardMetrics returns the registry used by the dashboard HTTP surface.
func DashboardMetrics() *dashboardMetrics {
	dashboardMetricsOnce.Do(func() {
		dashboardRegistry = &dashboardMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elegent",
				Subsystem: "dashboard",
				Name:      "requests_total",
				Help:      "Total dashboard requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elegent",
				Subsystem: "dashboard",
				Name:      "errors_total",
				Help:      "Total dashboard errors segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "elegent",
				Subsystem: "dashboard",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for dashboard handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elegent",
				Subsystem: "dashboard",
				Name:      "throttles_total",
				Help:      "Count of dashboard requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			dashboardRegistry.requests,
			dashboardRegistry.errors,
			dashboardRegistry.latency,
			dashboardRegistry.throttles,
		)
	})
	return dashboardRegistry
}

// Observe records the outcome of a dashboard request. The status code should
// be the one ultimately written to the response writer.
func (m *dashboardMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	route = normalizeLabel(route)
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(route, fmt.Sprintf("%d", status)).Inc()
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *dashboardMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if strings.TrimSpace(reason) == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
