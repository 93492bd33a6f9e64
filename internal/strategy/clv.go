package strategy

import (
	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/models"
)

// CLVSummary aggregates closing-line value; the positive share is a fraction in [0, 1].
func CLVSummary(recs []models.BetRecommendation) models.CLVSummary {
	if len(recs) == 0 {
		return models.CLVSummary{}
	}
	sum, positive := 0.0, 0
	for i := range recs {
		sum += recs[i].CLV
		if recs[i].CLV > 0 {
			positive++
		}
	}
	n := float64(len(recs))
	return models.CLVSummary{
		AvgCLV:         sum / n,
		PctPositiveCLV: float64(positive) / n,
		TotalBets:      len(recs),
	}
}

// LogCLVSummary computes and logs the summary
func LogCLVSummary(recs []models.BetRecommendation, log *logrus.Logger) models.CLVSummary {
	s := CLVSummary(recs)
	logger.NewStrategyLogger(log).LogCLVSummary(s.AvgCLV, s.PctPositiveCLV, s.TotalBets)
	return s
}
