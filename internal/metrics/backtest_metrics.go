// Package metrics defines bankroll simulation metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	SettlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_total",
		Help:      "Total number of simulated settlements by result",
	}, []string{"result"})

	StopLossTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stop_loss_trips_total",
		Help:      "Total number of simulations halted by the consecutive-loss stop",
	})
)

// Backtest gauges
var (
	CurrentBankroll = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "current_bankroll",
		Help:      "Bankroll after the most recent simulated settlement",
	})
	BacktestROI = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_roi",
		Help:      "Return on initial bankroll of the last simulation",
	})
)

// RecordSettlement records a settled bet.
func RecordSettlement(won bool) {
	if won {
		SettlementsTotal.WithLabelValues("won").Inc()
		return
	}
	SettlementsTotal.WithLabelValues("lost").Inc()
}

// RecordStopLossTrip records a stop-loss halt.
func RecordStopLossTrip() {
	StopLossTripsTotal.Inc()
}

// UpdateBankroll updates the current bankroll gauge.
func UpdateBankroll(amount float64) {
	CurrentBankroll.Set(amount)
}

// UpdateROI updates the ROI gauge.
func UpdateROI(roi float64) {
	BacktestROI.Set(roi)
}
