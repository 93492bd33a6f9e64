package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/totals-edge/internal/models"
)

func TestCLVSummary(t *testing.T) {
	recs := []models.BetRecommendation{
		{CLV: 0.10},
		{CLV: -0.02},
		{CLV: 0.04},
		{CLV: 0},
	}

	got := CLVSummary(recs)
	assert.InDelta(t, 0.03, got.AvgCLV, 1e-12)
	assert.InDelta(t, 0.5, got.PctPositiveCLV, 1e-12)
	assert.Equal(t, 4, got.TotalBets)
}

func TestCLVSummaryEmpty(t *testing.T) {
	assert.Equal(t, models.CLVSummary{}, CLVSummary(nil))
	assert.Equal(t, models.CLVSummary{}, LogCLVSummary(nil, nil))
}
