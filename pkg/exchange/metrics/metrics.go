// Package metrics wires the exchange protocol's round/retransmit/
// orphan observability into Prometheus, generalizing the original
// implementation's as_exchange_stat counters (SPEC_FULL.md §4).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the collectors exercised by the state machine and
// commit engine. A nil *Metrics is valid everywhere it is used and
// simply records nothing, so callers that do not care about
// observability are never forced to wire Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	RetransmitsTotal *prometheus.CounterVec
	RoundsCommitted  prometheus.Counter
	RoundDuration    prometheus.Histogram
	OrphanBlocked    prometheus.Gauge
}

// New creates an isolated set of collectors registered against their
// own registry, so that many Metrics instances (one per exchange
// instance under test, for example) never collide on the global
// default registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RetransmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exchange",
			Name:      "retransmits_total",
			Help:      "Number of protocol message retransmissions, by kind.",
		}, []string{"kind"}),
		RoundsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Name:      "rounds_committed_total",
			Help:      "Number of exchange rounds successfully committed.",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "exchange",
			Name:      "round_duration_seconds",
			Help:      "Time from a cluster-change event to this node committing the resulting round.",
			Buckets:   prometheus.DefBuckets,
		}),
		OrphanBlocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "exchange",
			Name:      "orphan_transactions_blocked",
			Help:      "1 while this node blocks client transactions due to an extended orphan period, 0 otherwise.",
		}),
	}
	reg.MustRegister(m.RetransmitsTotal, m.RoundsCommitted, m.RoundDuration, m.OrphanBlocked)
	return m
}

// Registry exposes the collectors' private registry, e.g. for tests
// or for a host process that wants to expose it on its own /metrics
// endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) retransmit(kind string) {
	if m == nil {
		return
	}
	m.RetransmitsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) committed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.RoundsCommitted.Inc()
	m.RoundDuration.Observe(durationSeconds)
}

func (m *Metrics) setOrphanBlocked(blocked bool) {
	if m == nil {
		return
	}
	if blocked {
		m.OrphanBlocked.Set(1)
	} else {
		m.OrphanBlocked.Set(0)
	}
}

// RecordRetransmit records one retransmission of the given message
// kind.
func (m *Metrics) RecordRetransmit(kind string) { m.retransmit(kind) }

// RecordCommit records a successfully committed round that took
// durationSeconds from its triggering cluster-change event.
func (m *Metrics) RecordCommit(durationSeconds float64) { m.committed(durationSeconds) }

// SetOrphanBlocked records whether client transactions are currently
// blocked due to an extended orphan period.
func (m *Metrics) SetOrphanBlocked(blocked bool) { m.setOrphanBlocked(blocked) }
