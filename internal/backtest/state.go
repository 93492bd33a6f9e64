package backtest

import (
	"github.com/yourusername/totals-edge/internal/models"
)

// State is the simulator lifecycle
type State int

const (
	// StateRunning means bets are still being settled
	StateRunning State = iota
	// StateStopped means the stop-loss tripped and processing halted
	StateStopped
)

// String returns string representation of the state
func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// BankrollState is the running bankroll, loss streak and append-only ledger.
type BankrollState struct {
	Initial           float64
	Current           float64
	Peak              float64
	ConsecutiveLosses int
	State             State
	Ledger            []models.LedgerEntry
	EquityCurve       EquityCurve
}

// NewBankrollState initializes a running state
func NewBankrollState(initialBankroll float64) *BankrollState {
	s := &BankrollState{
		Initial: initialBankroll,
		Current: initialBankroll,
		Peak:    initialBankroll,
		State:   StateRunning,
		Ledger:  []models.LedgerEntry{},
	}
	s.recordEquityPoint(-1, "")
	return s
}

// settle applies one bet's result and appends it to the ledger.
func (s *BankrollState) settle(rec *models.BetRecommendation, won bool) models.LedgerEntry {
	wager := s.Current * rec.RecommendedStake
	profit := -wager
	if won {
		profit = wager * (rec.MarketOdds - 1.0)
		s.ConsecutiveLosses = 0
	} else {
		s.ConsecutiveLosses++
	}
	s.Current += profit
	if s.Current > s.Peak {
		s.Peak = s.Current
	}

	entry := models.LedgerEntry{
		MatchIndex: rec.MatchIndex,
		Date:       rec.Date,
		Side:       rec.Side,
		Odds:       rec.MarketOdds,
		ModelProb:  rec.ModelProb,
		CLV:        rec.CLV,
		StakePct:   rec.RecommendedStake,
		Wager:      wager,
		Won:        won,
		Profit:     profit,
		Bankroll:   s.Current,
	}
	s.Ledger = append(s.Ledger, entry)
	s.recordEquityPoint(rec.MatchIndex, rec.Date)
	return entry
}

// GetCurrentDrawdown calculates peak-to-current drawdown
func (s *BankrollState) GetCurrentDrawdown() float64 {
	if s.Peak <= 0 {
		return 0
	}
	drawdown := (s.Peak - s.Current) / s.Peak
	if drawdown < 0 {
		return 0
	}
	return drawdown
}

func (s *BankrollState) recordEquityPoint(matchIndex int, date string) {
	s.EquityCurve = append(s.EquityCurve, EquityPoint{
		Step:       len(s.EquityCurve),
		MatchIndex: matchIndex,
		Date:       date,
		Value:      s.Current,
		Drawdown:   s.GetCurrentDrawdown(),
	})
}
