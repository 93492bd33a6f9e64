package forecast

import (
	"math"
	"math/rand"
	"time"

	"github.com/yourusername/totals-edge/internal/models"
)

var testColumns = []string{"home_attack", "away_attack", "noise"}

func samplePoisson(rng *rand.Rand, lambda float64) int {
	l := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

// syntheticBatch builds n resolved matches whose first two features track the true scoring rates.
func syntheticBatch(n int, seed int64, withMarket bool) models.Batch {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2023, 8, 18, 0, 0, 0, 0, time.UTC)
	matches := make([]models.Match, n)
	for i := range matches {
		homeRate := 0.6 + rng.Float64()*1.8
		awayRate := 0.4 + rng.Float64()*1.5
		home := samplePoisson(rng, homeRate)
		away := samplePoisson(rng, awayRate)

		m := models.Match{
			Index:    i,
			ID:       "m" + string(rune('a'+i%26)),
			Date:     start.AddDate(0, 0, i),
			GroupKey: []string{"A", "B", "C"}[i%3],
			Features: []float64{
				homeRate + rng.NormFloat64()*0.1,
				awayRate + rng.NormFloat64()*0.1,
				rng.Float64(),
			},
			HomeCount: &home,
			AwayCount: &away,
			TotalXG:   homeRate + awayRate,
			Odds:      models.MissingOdds(),
		}
		if withMarket {
			momentum := rng.NormFloat64() * 0.04
			signal := models.SignalNeutral
			if momentum > 0.05 {
				signal = models.SignalOver
			} else if momentum < -0.05 {
				signal = models.SignalUnder
			}
			m.Market = &models.MarketContext{MomentumOver: momentum, MomentumUnder: -momentum, Signal: signal}
		}
		matches[i] = m
	}
	return models.NewBatch(testColumns, matches)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Booster.NEstimators = 30
	return cfg
}

func intPtr(v int) *int {
	return &v
}
