// Package metrics defines gating and pairing metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Strategy counter vectors
var (
	CandidatesEvaluatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_evaluated_total",
		Help:      "Total number of (match, side) candidates evaluated by side",
	}, []string{"side"})

	BetsAdmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bets_admitted_total",
		Help:      "Total number of admitted bets by side",
	}, []string{"side"})

	RejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejections_total",
		Help:      "Total number of rejected candidates by first failing check",
	}, []string{"reason"})

	PairsFormedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pairs_formed_total",
		Help:      "Total number of paired bets by grouping",
	}, []string{"grouping"})
)

// RecordCandidate records one evaluated candidate.
func RecordCandidate(side string) {
	CandidatesEvaluatedTotal.WithLabelValues(side).Inc()
}

// RecordAdmission records one admitted bet.
func RecordAdmission(side string) {
	BetsAdmittedTotal.WithLabelValues(side).Inc()
}

// RecordRejection records one rejection under its reason.
func RecordRejection(reason string) {
	RejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordPair records a formed pair. crossGroup selects the grouping label.
func RecordPair(crossGroup bool) {
	if crossGroup {
		PairsFormedTotal.WithLabelValues("cross").Inc()
		return
	}
	PairsFormedTotal.WithLabelValues("same").Inc()
}
