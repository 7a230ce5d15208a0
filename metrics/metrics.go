package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks what the settlement pipeline does. All record
// helpers are nil-safe so wiring metrics stays optional in tests.
type SettlementMetrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LegsSettledTotal *prometheus.CounterVec
	LegConflicts     prometheus.Counter
	LegErrors        prometheus.Counter
	RoundsSkipped    *prometheus.CounterVec
	GatewayErrors    prometheus.Counter
	PendingLegs      prometheus.Gauge
}

func New() *SettlementMetrics {
	m := &SettlementMetrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parlay",
			Subsystem: "settlement",
			Name:      "runs_total",
			Help:      "Settlement runs by trigger and status.",
		}, []string{"trigger", "status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parlay",
			Subsystem: "settlement",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one settlement run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		LegsSettledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parlay",
			Subsystem: "settlement",
			Name:      "legs_settled_total",
			Help:      "Legs settled by outcome.",
		}, []string{"outcome"}),
		LegConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parlay",
			Subsystem: "settlement",
			Name:      "leg_conflicts_total",
			Help:      "Conditional leg writes that found the leg already settled.",
		}),
		LegErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parlay",
			Subsystem: "settlement",
			Name:      "leg_errors_total",
			Help:      "Legs that failed to settle this run.",
		}),
		RoundsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parlay",
			Subsystem: "settlement",
			Name:      "rounds_skipped_total",
			Help:      "Rounds left pending by reason.",
		}, []string{"reason"}),
		GatewayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parlay",
			Subsystem: "settlement",
			Name:      "gateway_errors_total",
			Help:      "Results feed fetches that failed.",
		}),
		PendingLegs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parlay",
			Subsystem: "settlement",
			Name:      "pending_legs",
			Help:      "Pending legs seen at the start of the latest run.",
		}),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.LegsSettledTotal,
		m.LegConflicts,
		m.LegErrors,
		m.RoundsSkipped,
		m.GatewayErrors,
		m.PendingLegs,
	)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *SettlementMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func (m *SettlementMetrics) RecordRun(trigger, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(trigger, status).Inc()
	m.RunDuration.Observe(seconds)
}

func (m *SettlementMetrics) RecordLegSettled(outcome string) {
	if m == nil {
		return
	}
	m.LegsSettledTotal.WithLabelValues(outcome).Inc()
}

func (m *SettlementMetrics) RecordLegConflict() {
	if m == nil {
		return
	}
	m.LegConflicts.Inc()
}

func (m *SettlementMetrics) RecordLegError() {
	if m == nil {
		return
	}
	m.LegErrors.Inc()
}

func (m *SettlementMetrics) RecordRoundSkipped(reason string) {
	if m == nil {
		return
	}
	m.RoundsSkipped.WithLabelValues(reason).Inc()
}

func (m *SettlementMetrics) RecordGatewayError() {
	if m == nil {
		return
	}
	m.GatewayErrors.Inc()
}

func (m *SettlementMetrics) SetPendingLegs(n float64) {
	if m == nil {
		return
	}
	m.PendingLegs.Set(n)
}

var (
	defaultOnce    sync.Once
	defaultMetrics *SettlementMetrics
)

// Default returns the process-wide metrics instance.
func Default() *SettlementMetrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}
