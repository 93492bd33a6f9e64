// Package backtest replays admitted bets against realised outcomes.
package backtest

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/metrics"
	"github.com/yourusername/totals-edge/internal/models"
)

// OutcomeLookup resolves the realised over indicator (1 = over) of a match.
type OutcomeLookup interface {
	Outcome(matchIndex int) (over int, ok bool)
}

// OutcomeMap is an OutcomeLookup keyed by match index
type OutcomeMap map[int]int

// Outcome implements OutcomeLookup
func (m OutcomeMap) Outcome(matchIndex int) (int, bool) {
	v, ok := m[matchIndex]
	return v, ok
}

// OutcomesFromBatch collects the realised outcomes of every resolved match.
func OutcomesFromBatch(batch models.Batch, line float64) OutcomeMap {
	out := make(OutcomeMap, batch.Len())
	for i := range batch.Matches {
		if over, ok := batch.Matches[i].OutcomeOver(line); ok {
			out[batch.Matches[i].Index] = over
		}
	}
	return out
}

// SimulationResult is the final state of one replay
type SimulationResult struct {
	State   *BankrollState `json:"-"`
	Metrics Metrics        `json:"metrics"`
	Skipped int            `json:"skipped"`
}

// Simulator settles bets strictly in the order given. It holds no state between runs.
type Simulator struct {
	config Config
	audit  *logger.AuditLogger
}

// NewSimulator creates a bankroll simulator
func NewSimulator(cfg Config, log *logrus.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{config: cfg, audit: logger.NewAuditLogger(log)}, nil
}

// Config returns the simulation configuration
func (s *Simulator) Config() Config {
	return s.config
}

// Run replays recs in order. Before each bet the stop-loss is checked; once it trips
// the state becomes StateStopped and no further entries are appended.
func (s *Simulator) Run(ctx context.Context, recs []models.BetRecommendation, outcomes OutcomeLookup) (*SimulationResult, error) {
	if outcomes == nil {
		return nil, fmt.Errorf("outcome lookup is required")
	}
	state := NewBankrollState(s.config.InitialBankroll)
	skipped := 0

	for i := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.tripped(state, len(recs)-i) {
			break
		}

		rec := &recs[i]
		over, ok := outcomes.Outcome(rec.MatchIndex)
		if !ok {
			skipped++
			continue
		}
		entry := state.settle(rec, rec.Side.Wins(over))
		metrics.RecordSettlement(entry.Won)
		s.audit.LogSettlement(entry.MatchIndex, string(entry.Side), entry.Odds, entry.Wager, entry.Profit, entry.Bankroll, entry.Won, state.ConsecutiveLosses)
	}

	s.tripped(state, 0)

	result := &SimulationResult{
		State:   state,
		Metrics: CalculateMetrics(state, s.config),
		Skipped: skipped,
	}
	metrics.UpdateBankroll(state.Current)
	metrics.UpdateROI(result.Metrics.ROI)
	return result, nil
}

// tripped moves a running state to StateStopped once the loss streak reaches the limit.
func (s *Simulator) tripped(state *BankrollState, remaining int) bool {
	if state.State == StateStopped {
		return true
	}
	if state.ConsecutiveLosses < s.config.StopLossConsecutive {
		return false
	}
	state.State = StateStopped
	metrics.RecordStopLossTrip()
	s.audit.LogStopLoss(state.ConsecutiveLosses, len(state.Ledger), remaining, state.Current)
	return true
}
