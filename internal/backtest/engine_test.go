package backtest

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/totals-edge/internal/models"
)

func bet(matchIndex int, side models.Side, odds, stake float64) models.BetRecommendation {
	return models.BetRecommendation{
		MatchIndex:       matchIndex,
		Date:             "2024-01-01",
		Side:             side,
		ModelProb:        0.8,
		MarketOdds:       odds,
		RecommendedStake: stake,
		CLV:              0.02,
	}
}

func newTestSimulator(t *testing.T) *Simulator {
	t.Helper()
	sim, err := NewSimulator(DefaultConfig(), nil)
	require.NoError(t, err)
	return sim
}

func TestStopLossHaltsAfterFifthLoss(t *testing.T) {
	recs := make([]models.BetRecommendation, 8)
	outcomes := OutcomeMap{}
	for i := range recs {
		recs[i] = bet(i, models.SideOver, 1.9, 0.03)
		outcomes[i] = 0
	}

	result, err := newTestSimulator(t).Run(context.Background(), recs, outcomes)
	require.NoError(t, err)

	state := result.State
	assert.Len(t, state.Ledger, 5)
	assert.Equal(t, StateStopped, state.State)
	assert.True(t, result.Metrics.Stopped)
	assert.Less(t, state.Current, 1000.0)
	assert.InDelta(t, 1000*math.Pow(0.97, 5), state.Current, 1e-9)
	assert.Equal(t, 5, state.ConsecutiveLosses)
}

func TestStopLossTripsOnLastBet(t *testing.T) {
	recs := make([]models.BetRecommendation, 5)
	outcomes := OutcomeMap{}
	for i := range recs {
		recs[i] = bet(i, models.SideUnder, 1.9, 0.03)
		outcomes[i] = 1
	}

	result, err := newTestSimulator(t).Run(context.Background(), recs, outcomes)
	require.NoError(t, err)
	assert.Len(t, result.State.Ledger, 5)
	assert.Equal(t, StateStopped, result.State.State)
}

func TestWinResetsLossCounter(t *testing.T) {
	results := []int{0, 0, 1, 0, 0, 0, 0}
	recs := make([]models.BetRecommendation, len(results))
	outcomes := OutcomeMap{}
	for i, over := range results {
		recs[i] = bet(i, models.SideOver, 2.0, 0.03)
		outcomes[i] = over
	}

	result, err := newTestSimulator(t).Run(context.Background(), recs, outcomes)
	require.NoError(t, err)

	state := result.State
	assert.Len(t, state.Ledger, len(results))
	assert.Equal(t, StateRunning, state.State)
	assert.Equal(t, 4, state.ConsecutiveLosses)
	assert.True(t, state.Ledger[2].Won)
	assert.Equal(t, 4, result.Metrics.LongestLosingStreak)
}

func TestSettlementArithmetic(t *testing.T) {
	recs := []models.BetRecommendation{
		bet(1, models.SideOver, 2.5, 0.02),
		bet(2, models.SideUnder, 1.8, 0.03),
	}
	outcomes := OutcomeMap{1: 1, 2: 1}

	result, err := newTestSimulator(t).Run(context.Background(), recs, outcomes)
	require.NoError(t, err)
	ledger := result.State.Ledger
	require.Len(t, ledger, 2)

	// Win: 2% of 1000 at 2.5.
	assert.InDelta(t, 20.0, ledger[0].Wager, 1e-9)
	assert.InDelta(t, 30.0, ledger[0].Profit, 1e-9)
	assert.InDelta(t, 1030.0, ledger[0].Bankroll, 1e-9)

	// Loss: 3% of the updated bankroll.
	assert.False(t, ledger[1].Won)
	assert.InDelta(t, 30.9, ledger[1].Wager, 1e-9)
	assert.InDelta(t, -30.9, ledger[1].Profit, 1e-9)
	assert.InDelta(t, 999.1, ledger[1].Bankroll, 1e-9)
	assert.Equal(t, models.SideUnder, ledger[1].Side)
	assert.Equal(t, 0.03, ledger[1].StakePct)
}

func TestUnresolvedBetsSkipped(t *testing.T) {
	recs := make([]models.BetRecommendation, 8)
	outcomes := OutcomeMap{}
	for i := range recs {
		recs[i] = bet(i, models.SideOver, 1.9, 0.03)
		if i != 4 {
			outcomes[i] = 0
		}
	}

	result, err := newTestSimulator(t).Run(context.Background(), recs, outcomes)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, result.State.Ledger, 5)
	for _, e := range result.State.Ledger {
		assert.NotEqual(t, 4, e.MatchIndex)
	}
	// The skipped bet does not count towards the streak: the sixth resolved bet never settles.
	assert.Equal(t, 5, result.State.Ledger[4].MatchIndex)
}

func TestLedgerFollowsInputOrder(t *testing.T) {
	recs := []models.BetRecommendation{
		bet(9, models.SideOver, 1.9, 0.01),
		bet(3, models.SideOver, 1.9, 0.01),
		bet(6, models.SideOver, 1.9, 0.01),
	}
	outcomes := OutcomeMap{9: 1, 3: 0, 6: 1}

	result, err := newTestSimulator(t).Run(context.Background(), recs, outcomes)
	require.NoError(t, err)
	got := []int{}
	for _, e := range result.State.Ledger {
		got = append(got, e.MatchIndex)
	}
	assert.Equal(t, []int{9, 3, 6}, got)
	assert.LessOrEqual(t, len(result.State.Ledger), len(recs))
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSimulator(t).Run(ctx, []models.BetRecommendation{bet(1, models.SideOver, 2, 0.01)}, OutcomeMap{1: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRequiresOutcomes(t *testing.T) {
	_, err := newTestSimulator(t).Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestRunEmpty(t *testing.T) {
	result, err := newTestSimulator(t).Run(context.Background(), nil, OutcomeMap{})
	require.NoError(t, err)
	assert.Empty(t, result.State.Ledger)
	assert.Equal(t, 1000.0, result.Metrics.FinalBankroll)
	assert.Equal(t, 0.0, result.Metrics.ROI)
}

func TestNewSimulatorValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialBankroll = 0
	_, err := NewSimulator(cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.StopLossConsecutive = 0
	_, err = NewSimulator(cfg, nil)
	assert.Error(t, err)
}

func TestOutcomesFromBatch(t *testing.T) {
	three, zero, one := 3, 0, 1
	batch := models.NewBatch(nil, []models.Match{
		{Index: 10, HomeCount: &three, AwayCount: &zero},
		{Index: 11, HomeCount: &one, AwayCount: &one},
		{Index: 12},
	})

	outcomes := OutcomesFromBatch(batch, 2.5)
	over, ok := outcomes.Outcome(10)
	assert.True(t, ok)
	assert.Equal(t, 1, over)
	over, ok = outcomes.Outcome(11)
	assert.True(t, ok)
	assert.Equal(t, 0, over)
	_, ok = outcomes.Outcome(12)
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "UNKNOWN", State(7).String())
}
