package backtest

import (
	"testing"

	"github.com/yourusername/totals-edge/internal/models"
)

func TestCalculateMetrics(t *testing.T) {
	state := NewBankrollState(100)
	state.settle(&models.BetRecommendation{MatchIndex: 1, MarketOdds: 2.0, RecommendedStake: 0.1, CLV: 0.04}, true)
	state.settle(&models.BetRecommendation{MatchIndex: 2, MarketOdds: 2.0, RecommendedStake: 0.1, CLV: -0.02}, false)

	m := CalculateMetrics(state, Config{InitialBankroll: 100})
	if m.TotalBets != 2 {
		t.Fatalf("expected total bets 2, got %d", m.TotalBets)
	}
	if m.WinningBets != 1 || m.LosingBets != 1 {
		t.Fatalf("expected 1 win and 1 loss, got %d/%d", m.WinningBets, m.LosingBets)
	}
	// 100 -> 110 -> 99
	if diff := m.FinalBankroll - 99; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected final bankroll 99, got %v", m.FinalBankroll)
	}
	if diff := m.ROI + 0.01; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected ROI -0.01, got %v", m.ROI)
	}
	if diff := m.MaxDrawdown - 0.1; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected max drawdown 0.1, got %v", m.MaxDrawdown)
	}
	if diff := m.ProfitFactor - 10.0/11.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected profit factor 10/11, got %v", m.ProfitFactor)
	}
	if diff := m.AverageCLV - 0.01; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("expected average clv 0.01, got %v", m.AverageCLV)
	}
	if diff := m.TotalStaked - 21; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected 21 staked, got %v", m.TotalStaked)
	}
}

func TestProfitFactorWithoutLosses(t *testing.T) {
	ledger := []models.LedgerEntry{{Won: true, Profit: 5}}
	if pf := calculateProfitFactor(ledger); pf != profitFactorCap {
		t.Fatalf("expected capped profit factor, got %v", pf)
	}
	if pf := calculateProfitFactor(nil); pf != 0 {
		t.Fatalf("expected 0 for empty ledger, got %v", pf)
	}
}

func TestSharpeRatio(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.01, 0.03}
	if sharpe := calculateSharpeRatio(returns, 0); sharpe <= 0 {
		t.Fatalf("expected positive sharpe ratio, got %v", sharpe)
	}
	if sharpe := calculateSharpeRatio([]float64{0.01, 0.01}, 0); sharpe != 0 {
		t.Fatalf("expected zero sharpe for constant returns, got %v", sharpe)
	}
}

func TestEquityCurveStartsAtInitialBankroll(t *testing.T) {
	state := NewBankrollState(50)
	state.settle(&models.BetRecommendation{MatchIndex: 4, Date: "2024-02-01", MarketOdds: 3.0, RecommendedStake: 0.1}, true)

	curve := state.EquityCurve
	if len(curve) != 2 {
		t.Fatalf("expected 2 equity points, got %d", len(curve))
	}
	if curve[0].Value != 50 || curve[0].MatchIndex != -1 {
		t.Fatalf("unexpected opening point %+v", curve[0])
	}
	returns := curve.GetReturns()
	if len(returns) != 1 || returns[0] < 0.2-1e-12 || returns[0] > 0.2+1e-12 {
		t.Fatalf("expected a single 20%% return, got %v", returns)
	}
	want := "step,match_index,date,value,drawdown\n0,-1,,50.00,0.0000\n1,4,2024-02-01,60.00,0.0000\n"
	if got := curve.ToCSV(); got != want {
		t.Fatalf("unexpected csv:\n%s", got)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}
	if p := percentile(values, 0.5); p != 3 {
		t.Fatalf("expected median 3, got %v", p)
	}
	if p := percentile(values, 0); p != 1 {
		t.Fatalf("expected min 1, got %v", p)
	}
	if values[0] != 5 {
		t.Fatalf("percentile must not reorder its input")
	}
}
