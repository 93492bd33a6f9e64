// Package metrics provides the centralized Prometheus registry for the forecasting and staking engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "totals_edge"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PipelineRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Total number of pipeline runs by mode and status",
	}, []string{"mode", "status"})
	MatchesLoadedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_loaded_total",
		Help:      "Total number of match rows loaded from data sources",
	})
)

// Gauge metrics
var (
	LastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed pipeline run",
	})
)

// Histogram metrics
var (
	PipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Duration of pipeline runs in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"mode"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(PipelineRunsTotal)
		registry.MustRegister(MatchesLoadedTotal)
		registry.MustRegister(LastRunTimestamp)
		registry.MustRegister(PipelineDuration)

		// Model metrics
		registry.MustRegister(StageFitDuration)
		registry.MustRegister(FoldBrierScore)
		registry.MustRegister(FoldLogLoss)
		registry.MustRegister(MeanBrierScore)
		registry.MustRegister(GridCacheLookupsTotal)

		// Strategy metrics
		registry.MustRegister(CandidatesEvaluatedTotal)
		registry.MustRegister(BetsAdmittedTotal)
		registry.MustRegister(RejectionsTotal)
		registry.MustRegister(PairsFormedTotal)

		// Backtest metrics
		registry.MustRegister(SettlementsTotal)
		registry.MustRegister(StopLossTripsTotal)
		registry.MustRegister(CurrentBankroll)
		registry.MustRegister(BacktestROI)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordPipelineRun records a pipeline run with its outcome and duration.
// status should be one of: "success", "failure"
func RecordPipelineRun(mode, status string, durationSeconds float64) {
	PipelineRunsTotal.WithLabelValues(mode, status).Inc()
	PipelineDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordMatchesLoaded adds n loaded rows.
func RecordMatchesLoaded(n int) {
	MatchesLoadedTotal.Add(float64(n))
}

// UpdateLastRun sets the last-run timestamp gauge.
func UpdateLastRun(unixSeconds float64) {
	LastRunTimestamp.Set(unixSeconds)
}
