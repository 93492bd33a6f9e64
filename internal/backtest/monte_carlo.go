package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/totals-edge/internal/models"
)

// MonteCarloConfig configures monte carlo simulation
type MonteCarloConfig struct {
	Iterations          int
	Seed                int64
	Workers             int
	InitialBankroll     float64
	StopLossConsecutive int
	// RuinFraction is the share of the initial bankroll at or below which a path counts as ruined.
	RuinFraction float64
}

// MonteCarloConfigFrom derives monte carlo settings from the simulation config
func MonteCarloConfigFrom(cfg Config, workers int) MonteCarloConfig {
	return MonteCarloConfig{
		Iterations:          cfg.MonteCarloIterations,
		Seed:                cfg.MonteCarloSeed,
		Workers:             workers,
		InitialBankroll:     cfg.InitialBankroll,
		StopLossConsecutive: cfg.StopLossConsecutive,
		RuinFraction:        cfg.RuinFraction,
	}
}

// MonteCarloResult represents monte carlo outcomes
type MonteCarloResult struct {
	Iterations            int                `json:"iterations"`
	MeanReturn            float64            `json:"mean_return"`
	StdReturn             float64            `json:"std_return"`
	MedianFinalBankroll   float64            `json:"median_final_bankroll"`
	VaR95                 float64            `json:"var_95"`
	VaR99                 float64            `json:"var_99"`
	ProbabilityOfProfit   float64            `json:"probability_of_profit"`
	ProbabilityOfRuin     float64            `json:"probability_of_ruin"`
	ProbabilityOfStopLoss float64            `json:"probability_of_stop_loss"`
	ConfidenceIntervals   map[string]float64 `json:"confidence_intervals"`
	Distribution          []float64          `json:"-"`
}

// RunMonteCarlo replays recs with outcomes drawn from each bet's model probability.
// Every iteration uses its own seed, so results do not depend on the worker count.
func RunMonteCarlo(ctx context.Context, recs []models.BetRecommendation, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}
	if cfg.InitialBankroll <= 0 {
		return MonteCarloResult{}, fmt.Errorf("initial bankroll must be positive")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	finals := make([]float64, cfg.Iterations)
	stopped := make([]bool, cfg.Iterations)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Iterations; i++ {
		i := i
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(cfg.Seed + int64(i)))
			finals[i], stopped[i] = simulatePath(recs, rng, cfg)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return MonteCarloResult{}, err
	}

	initial := cfg.InitialBankroll
	mean, std := meanStd(finals)
	stops := 0
	for _, s := range stopped {
		if s {
			stops++
		}
	}

	return MonteCarloResult{
		Iterations:            cfg.Iterations,
		MeanReturn:            (mean - initial) / initial,
		StdReturn:             std / initial,
		MedianFinalBankroll:   percentile(finals, 0.5),
		VaR95:                 (percentile(finals, 0.05) - initial) / initial,
		VaR99:                 (percentile(finals, 0.01) - initial) / initial,
		ProbabilityOfProfit:   probabilityAbove(finals, initial),
		ProbabilityOfRuin:     probabilityAtOrBelow(finals, initial*cfg.RuinFraction),
		ProbabilityOfStopLoss: float64(stops) / float64(cfg.Iterations),
		ConfidenceIntervals:   CalculateConfidenceIntervals(finals, []float64{0.9, 0.95, 0.99}),
		Distribution:          finals,
	}, nil
}

// simulatePath applies the same stake and stop-loss rules as Simulator to random outcomes.
func simulatePath(recs []models.BetRecommendation, rng *rand.Rand, cfg MonteCarloConfig) (float64, bool) {
	bankroll := cfg.InitialBankroll
	losses := 0
	for i := range recs {
		if cfg.StopLossConsecutive > 0 && losses >= cfg.StopLossConsecutive {
			return bankroll, true
		}
		wager := bankroll * recs[i].RecommendedStake
		if rng.Float64() < recs[i].ModelProb {
			bankroll += wager * (recs[i].MarketOdds - 1.0)
			losses = 0
		} else {
			bankroll -= wager
			losses++
		}
	}
	return bankroll, cfg.StopLossConsecutive > 0 && losses >= cfg.StopLossConsecutive
}

// CalculateConfidenceIntervals returns the width of the central interval at each level.
func CalculateConfidenceIntervals(distribution []float64, levels []float64) map[string]float64 {
	results := make(map[string]float64)
	for _, level := range levels {
		p := (1.0 - level) / 2.0
		low := percentile(distribution, p)
		high := percentile(distribution, 1.0-p)
		results[formatPercent(level)] = high - low
	}
	return results
}

// ToJSON exports the monte carlo result without its raw distribution
func (m MonteCarloResult) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func probabilityAbove(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func probabilityAtOrBelow(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v <= threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func formatPercent(level float64) string {
	return fmt.Sprintf("%.0f%%", level*100)
}
