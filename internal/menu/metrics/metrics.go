package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the menu synchronization core.
type Metrics struct {
	// Catalog request latencies by endpoint and outcome
	CatalogLatency *prometheus.HistogramVec

	// Snapshot loads by outcome: "applied", "failed", "stale"
	SnapshotLoads *prometheus.CounterVec

	// Full resolve+load duration
	SnapshotLatency prometheus.Histogram

	// Push events seen by the merge engine by kind and outcome
	EventsApplied *prometheus.CounterVec

	// Envelopes dispatched by the push hub by kind
	EnvelopesDispatched *prometheus.CounterVec

	// Push transport reconnect attempts by transport
	PushReconnects *prometheus.CounterVec
}

// New creates a Metrics instance registered against reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CatalogLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "menuboard_catalog_request_duration_seconds",
			Help:    "Duration of catalog requests by endpoint and outcome",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"endpoint", "outcome"}),

		SnapshotLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "menuboard_snapshot_loads_total",
			Help: "Total snapshot loads by outcome",
		}, []string{"outcome"}),

		SnapshotLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "menuboard_snapshot_duration_seconds",
			Help:    "Duration of name resolution plus item list fetches",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "menuboard_push_events_total",
			Help: "Push events handled by the merge engine by kind and outcome",
		}, []string{"kind", "outcome"}), // outcome: "applied", "noop", "malformed", "ignored"

		EnvelopesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "menuboard_push_envelopes_total",
			Help: "Push envelopes dispatched to listeners by kind",
		}, []string{"kind"}),

		PushReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "menuboard_push_reconnects_total",
			Help: "Push transport reconnect attempts",
		}, []string{"transport"}),
	}
}

// ObserveCatalogLatency records the duration of a catalog request.
func (m *Metrics) ObserveCatalogLatency(endpoint, outcome string, d time.Duration) {
	if m != nil {
		m.CatalogLatency.WithLabelValues(endpoint, outcome).Observe(d.Seconds())
	}
}

// IncrementSnapshotLoad records a snapshot load outcome.
func (m *Metrics) IncrementSnapshotLoad(outcome string) {
	if m != nil {
		m.SnapshotLoads.WithLabelValues(outcome).Inc()
	}
}

// ObserveSnapshotLatency records a full snapshot duration.
func (m *Metrics) ObserveSnapshotLatency(d time.Duration) {
	if m != nil {
		m.SnapshotLatency.Observe(d.Seconds())
	}
}

// IncrementEvent records how the merge engine handled an event.
func (m *Metrics) IncrementEvent(kind, outcome string) {
	if m != nil {
		m.EventsApplied.WithLabelValues(kind, outcome).Inc()
	}
}

// IncrementEnvelope records a dispatched envelope.
func (m *Metrics) IncrementEnvelope(kind string) {
	if m != nil {
		m.EnvelopesDispatched.WithLabelValues(kind).Inc()
	}
}

// IncrementReconnect records a reconnect attempt for a push transport.
func (m *Metrics) IncrementReconnect(transport string) {
	if m != nil {
		m.PushReconnects.WithLabelValues(transport).Inc()
	}
}
