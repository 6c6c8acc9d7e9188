package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRegistry holds every Prometheus metric the service exports,
// registered against its own *prometheus.Registry rather than the global
// default — this lets tests construct more than one registry per process.
type MetricsRegistry struct {
	registry *prometheus.Registry

	// Orchestrator cycle metrics
	CycleDuration *prometheus.HistogramVec
	CycleErrors   *prometheus.CounterVec

	// Price fetch metrics
	PriceFetchLatency *prometheus.HistogramVec
	PriceFetchErrors  *prometheus.CounterVec
	PriceCacheHits    *prometheus.CounterVec
	PriceCacheMisses  *prometheus.CounterVec

	// Signal lifecycle metrics
	ActiveSignals    prometheus.Gauge
	SignalsCompleted *prometheus.CounterVec
	CheckpointsHit   *prometheus.CounterVec

	// Escalation metrics
	ForcedCompletions prometheus.Counter

	// Reputation/learning metrics
	ChannelReputationScore *prometheus.GaugeVec
	PredictionMAE          *prometheus.GaugeVec
}

// NewMetricsRegistry builds and registers every calltrack metric.
func NewMetricsRegistry() *MetricsRegistry {
	registry := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calltrack_cycle_duration_seconds",
				Help:    "Duration of one orchestrator cycle in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"mode"},
		),

		CycleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calltrack_cycle_errors_total",
				Help: "Total orchestrator cycle failures by mode",
			},
			[]string{"mode"},
		),

		PriceFetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calltrack_price_fetch_latency_seconds",
				Help:    "Latency of price provider calls",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"provider", "kind"},
		),

		PriceFetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calltrack_price_fetch_errors_total",
				Help: "Total price provider failures by provider and kind",
			},
			[]string{"provider", "kind"},
		),

		PriceCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calltrack_price_cache_hits_total",
				Help: "Total price cache hits by cache tier",
			},
			[]string{"tier"},
		),

		PriceCacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calltrack_price_cache_misses_total",
				Help: "Total price cache misses by cache tier",
			},
			[]string{"tier"},
		),

		ActiveSignals: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "calltrack_active_signals",
				Help: "Number of in-progress signals currently tracked",
			},
		),

		SignalsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calltrack_signals_completed_total",
				Help: "Total completed signals by outcome category",
			},
			[]string{"outcome_category"},
		),

		CheckpointsHit: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calltrack_checkpoints_hit_total",
				Help: "Total checkpoints captured by offset",
			},
			[]string{"checkpoint"},
		),

		ForcedCompletions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "calltrack_forced_completions_total",
				Help: "Total signals force-completed after repeated price-fetch failures",
			},
		),

		ChannelReputationScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "calltrack_channel_reputation_score",
				Help: "Current composite reputation score per channel",
			},
			[]string{"channel"},
		),

		PredictionMAE: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "calltrack_prediction_mae",
				Help: "Mean absolute error of the learning engine's predictions per channel",
			},
			[]string{"channel"},
		),
	}

	registry.registry.MustRegister(
		registry.CycleDuration,
		registry.CycleErrors,
		registry.PriceFetchLatency,
		registry.PriceFetchErrors,
		registry.PriceCacheHits,
		registry.PriceCacheMisses,
		registry.ActiveSignals,
		registry.SignalsCompleted,
		registry.CheckpointsHit,
		registry.ForcedCompletions,
		registry.ChannelReputationScore,
		registry.PredictionMAE,
	)

	return registry
}

// CycleTimer tracks one orchestrator cycle's duration.
type CycleTimer struct {
	metrics *MetricsRegistry
	mode    string
	start   time.Time
}

// StartCycleTimer begins timing an orchestrator cycle ("bootstrap" or "live").
func (m *MetricsRegistry) StartCycleTimer(mode string) *CycleTimer {
	return &CycleTimer{metrics: m, mode: mode, start: time.Now()}
}

// Stop records the cycle's duration, and an error count if err is non-nil.
func (ct *CycleTimer) Stop(err error) {
	ct.metrics.CycleDuration.WithLabelValues(ct.mode).Observe(time.Since(ct.start).Seconds())
	if err != nil {
		ct.metrics.CycleErrors.WithLabelValues(ct.mode).Inc()
	}
}

// RecordSignalCompleted increments the completed-signal counter for a
// terminal outcome category.
func (m *MetricsRegistry) RecordSignalCompleted(category string) {
	m.SignalsCompleted.WithLabelValues(category).Inc()
}

// RecordCheckpointHit increments the checkpoint counter for a reached offset.
func (m *MetricsRegistry) RecordCheckpointHit(checkpoint string) {
	m.CheckpointsHit.WithLabelValues(checkpoint).Inc()
}

// SetActiveSignals sets the current in-progress signal gauge.
func (m *MetricsRegistry) SetActiveSignals(n int) {
	m.ActiveSignals.Set(float64(n))
}

// SetChannelReputation updates the per-channel reputation and MAE gauges.
func (m *MetricsRegistry) SetChannelReputation(channel string, score, mae float64) {
	m.ChannelReputationScore.WithLabelValues(channel).Set(score)
	m.PredictionMAE.WithLabelValues(channel).Set(mae)
}

// Handler returns the promhttp handler serving /metrics.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
