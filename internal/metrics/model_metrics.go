package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Model histogram vectors
var (
	StageFitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_fit_duration_seconds",
		Help:      "Duration of ensemble stage fits by stage",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"stage"})
)

// Model gauge vectors
var (
	FoldBrierScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fold_brier_score",
		Help:      "Out-of-sample Brier score per cross-validation fold",
	}, []string{"fold"})
	FoldLogLoss = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fold_log_loss",
		Help:      "Out-of-sample log loss per cross-validation fold",
	}, []string{"fold"})
	MeanBrierScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mean_brier_score",
		Help:      "Mean Brier score across folds of the last evaluation",
	})
)

// GridCacheLookupsTotal counts baseline grid cache lookups by result.
var GridCacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "grid_cache_lookups_total",
	Help:      "Probability grid cache lookups by result",
}, []string{"result"})

// RecordStageFit records how long an ensemble stage took to fit.
// stage should be one of: "base", "meta", "calibration"
func RecordStageFit(stage string, durationSeconds float64) {
	StageFitDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordFold records the scores of one fold.
func RecordFold(fold int, brier, logLoss float64) {
	label := strconv.Itoa(fold)
	FoldBrierScore.WithLabelValues(label).Set(brier)
	FoldLogLoss.WithLabelValues(label).Set(logLoss)
}

// UpdateMeanBrier sets the mean Brier gauge.
func UpdateMeanBrier(v float64) {
	MeanBrierScore.Set(v)
}

// RecordGridCacheLookup records a cache hit or miss.
func RecordGridCacheLookup(hit bool) {
	if hit {
		GridCacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	GridCacheLookupsTotal.WithLabelValues("miss").Inc()
}
