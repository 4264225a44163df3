package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"poolchain/core/events"
)

type ledgerMetrics struct {
	operations *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	events     *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// LedgerMetrics returns the lazily-initialised registry used to record ledger
// engine activity.
func LedgerMetrics() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "poolchain",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Total ledger operations segmented by module and operation.",
			}, []string{"module", "operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "poolchain",
				Subsystem: "ledger",
				Name:      "errors_total",
				Help:      "Total ledger operation failures segmented by module and operation.",
			}, []string{"module", "operation"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "poolchain",
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for ledger operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "operation"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "poolchain",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Total engine events segmented by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.errors,
			ledgerRegistry.latency,
			ledgerRegistry.events,
		)
	})
	return ledgerRegistry
}

// Observe records one ledger operation outcome with its duration.
func (m *ledgerMetrics) Observe(module, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(module, operation).Inc()
	}
	m.operations.WithLabelValues(module, operation, outcome).Inc()
	m.latency.WithLabelValues(module, operation).Observe(time.Since(start).Seconds())
}

// EventCounter is an events.Emitter that counts every emitted event by type.
// Chain it in front of another emitter to keep downstream delivery intact.
type EventCounter struct {
	next events.Emitter
}

// NewEventCounter wraps the next emitter with per-type counting. A nil next
// discards events after counting.
func NewEventCounter(next events.Emitter) *EventCounter {
	return &EventCounter{next: next}
}

// Emit implements the events.Emitter interface.
func (c *EventCounter) Emit(evt events.Event) {
	if c == nil || evt == nil {
		return
	}
	LedgerMetrics().events.WithLabelValues(evt.EventType()).Inc()
	if c.next != nil {
		c.next.Emit(evt)
	}
}
