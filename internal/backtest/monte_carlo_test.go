package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/totals-edge/internal/models"
)

func mcBets(n int, prob, odds, stake float64) []models.BetRecommendation {
	recs := make([]models.BetRecommendation, n)
	for i := range recs {
		recs[i] = models.BetRecommendation{MatchIndex: i, ModelProb: prob, MarketOdds: odds, RecommendedStake: stake}
	}
	return recs
}

func TestRunMonteCarloDeterministic(t *testing.T) {
	recs := mcBets(50, 0.6, 2.0, 0.03)
	cfg := MonteCarloConfig{Iterations: 500, Seed: 42, InitialBankroll: 100, StopLossConsecutive: 5, RuinFraction: 0.5}

	seq, err := RunMonteCarlo(context.Background(), recs, cfg)
	require.NoError(t, err)
	cfg.Workers = 4
	par, err := RunMonteCarlo(context.Background(), recs, cfg)
	require.NoError(t, err)

	assert.Equal(t, 500, seq.Iterations)
	assert.Len(t, seq.Distribution, 500)
	assert.Equal(t, seq.Distribution, par.Distribution)
	assert.Equal(t, seq.MeanReturn, par.MeanReturn)
}

func TestRunMonteCarloPositiveEdge(t *testing.T) {
	result, err := RunMonteCarlo(context.Background(), mcBets(100, 0.6, 2.0, 0.02), MonteCarloConfig{
		Iterations:      400,
		Seed:            7,
		InitialBankroll: 1000,
		RuinFraction:    0.5,
	})
	require.NoError(t, err)

	assert.Greater(t, result.MeanReturn, 0.0)
	assert.Greater(t, result.ProbabilityOfProfit, 0.5)
	assert.Equal(t, 0.0, result.ProbabilityOfStopLoss)
	assert.LessOrEqual(t, result.VaR99, result.VaR95)
	assert.Contains(t, result.ConfidenceIntervals, "95%")
}

func TestRunMonteCarloCertainLosses(t *testing.T) {
	result, err := RunMonteCarlo(context.Background(), mcBets(10, 0, 2.0, 0.03), MonteCarloConfig{
		Iterations:          20,
		Seed:                1,
		InitialBankroll:     1000,
		StopLossConsecutive: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.ProbabilityOfStopLoss)
	assert.InDelta(t, 0.97*0.97*0.97*0.97*0.97-1, result.MeanReturn, 1e-9)
	assert.Equal(t, 0.0, result.ProbabilityOfProfit)
}

func TestRunMonteCarloValidation(t *testing.T) {
	_, err := RunMonteCarlo(context.Background(), nil, MonteCarloConfig{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RunMonteCarlo(ctx, mcBets(3, 0.5, 2, 0.01), MonteCarloConfig{Iterations: 10, InitialBankroll: 10})
	assert.ErrorIs(t, err, context.Canceled)
}
