// Package chkmetrics exposes the checker's Prometheus metrics: per-instance
// phase, the total/repaired/ignored/failed statistics spec §4.9 requires a
// leader to track, pending-report depth, and dead-rank count. Grounded on
// the teacher's internal/metrics/prometheus.go registry pattern.
package chkmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the checker's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	phase        *prometheus.GaugeVec
	totalChecked *prometheus.CounterVec
	repaired     *prometheus.CounterVec
	ignored      *prometheus.CounterVec
	failed       *prometheus.CounterVec

	pendingDepth  *prometheus.GaugeVec
	deadRanks     prometheus.Gauge
	rpcLatency    *prometheus.HistogramVec
	rpcErrorTotal *prometheus.CounterVec

	schedulerTicks *prometheus.CounterVec
}

var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// New builds and registers the checker's collectors under namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		phase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_phase",
				Help:      "Current phase of a pool's check cycle (spec §3 Phase)",
			},
			[]string{"pool", "phase"},
		),

		totalChecked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_checked_total",
				Help:      "Total inconsistency reports evaluated",
			},
			[]string{"class"},
		),

		repaired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_repaired_total",
				Help:      "Total inconsistency reports resolved by a non-ignore action",
			},
			[]string{"class", "action"},
		),

		ignored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_ignored_total",
				Help:      "Total inconsistency reports resolved by IGNORE",
			},
			[]string{"class"},
		),

		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_failed_total",
				Help:      "Total inconsistency reports that could not be resolved",
			},
			[]string{"class"},
		),

		pendingDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_reports",
				Help:      "Number of reports awaiting an INTERACT decision",
			},
			[]string{"rank"},
		),

		deadRanks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dead_ranks",
				Help:      "Number of ranks currently marked dead by the leader",
			},
		),

		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_milliseconds",
				Help:      "Cluster RPC round-trip latency by opcode",
				Buckets:   defaultBuckets,
			},
			[]string{"opcode"},
		),

		rpcErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_errors_total",
				Help:      "Cluster RPC errors by opcode and error kind",
			},
			[]string{"opcode", "kind"},
		),

		schedulerTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_ticks_total",
				Help:      "Scheduler tick count by role (leader, engine)",
			},
			[]string{"role"},
		),
	}

	registry.MustRegister(
		m.phase, m.totalChecked, m.repaired, m.ignored, m.failed,
		m.pendingDepth, m.deadRanks, m.rpcLatency, m.rpcErrorTotal, m.schedulerTicks,
	)
	return m
}

// Handler returns an http.Handler serving the registry in Prometheus
// exposition format, for the metrics listener started alongside the gRPC
// server (spec's ambient observability stack).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetPhase records a pool's current phase.
func (m *Metrics) SetPhase(pool, phase string) {
	m.phase.WithLabelValues(pool, phase).Set(1)
}

// RecordReport increments the checked counter and, depending on action,
// the repaired/ignored/failed counters for class.
func (m *Metrics) RecordReport(class, action string, failed bool) {
	m.totalChecked.WithLabelValues(class).Inc()
	switch {
	case failed:
		m.failed.WithLabelValues(class).Inc()
	case action == "IGNORE":
		m.ignored.WithLabelValues(class).Inc()
	default:
		m.repaired.WithLabelValues(class, action).Inc()
	}
}

// SetPendingDepth records the current INTERACT backlog for rank.
func (m *Metrics) SetPendingDepth(rank string, depth int) {
	m.pendingDepth.WithLabelValues(rank).Set(float64(depth))
}

// SetDeadRanks records the leader's current dead-rank count.
func (m *Metrics) SetDeadRanks(n int) {
	m.deadRanks.Set(float64(n))
}

// ObserveRPCLatency records a cluster RPC round trip's duration.
func (m *Metrics) ObserveRPCLatency(opcode string, ms float64) {
	m.rpcLatency.WithLabelValues(opcode).Observe(ms)
}

// RecordRPCError increments the RPC error counter for opcode and kind
// (chktypes.KindOf's taxonomy).
func (m *Metrics) RecordRPCError(opcode, kind string) {
	m.rpcErrorTotal.WithLabelValues(opcode, kind).Inc()
}

// RecordTick increments the scheduler tick counter for role.
func (m *Metrics) RecordTick(role string) {
	m.schedulerTicks.WithLabelValues(role).Inc()
}
