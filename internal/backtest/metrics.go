package backtest

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/totals-edge/internal/models"
)

// profitFactorCap stands in for an infinite profit factor when there are no losses.
const profitFactorCap = 999

// Metrics summarises a simulated ledger
type Metrics struct {
	InitialBankroll     float64 `json:"initial_bankroll"`
	FinalBankroll       float64 `json:"final_bankroll"`
	NetProfit           float64 `json:"net_profit"`
	ROI                 float64 `json:"roi"`
	TotalStaked         float64 `json:"total_staked"`
	Yield               float64 `json:"yield"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	SortinoRatio        float64 `json:"sortino_ratio"`
	TotalBets           int     `json:"total_bets"`
	WinningBets         int     `json:"winning_bets"`
	LosingBets          int     `json:"losing_bets"`
	WinRate             float64 `json:"win_rate"`
	ProfitFactor        float64 `json:"profit_factor"`
	AverageWin          float64 `json:"average_win"`
	AverageLoss         float64 `json:"average_loss"`
	Expectancy          float64 `json:"expectancy"`
	LargestWin          float64 `json:"largest_win"`
	LargestLoss         float64 `json:"largest_loss"`
	LongestLosingStreak int     `json:"longest_losing_streak"`
	AverageCLV          float64 `json:"average_clv"`
	Stopped             bool    `json:"stopped"`
}

// CalculateMetrics derives performance metrics from the ledger and equity curve.
// Sharpe and Sortino are per bet, not annualised.
func CalculateMetrics(state *BankrollState, cfg Config) Metrics {
	m := Metrics{InitialBankroll: cfg.InitialBankroll, FinalBankroll: cfg.InitialBankroll}
	if state == nil {
		return m
	}

	m.FinalBankroll = state.Current
	m.NetProfit = state.Current - state.Initial
	if state.Initial > 0 {
		m.ROI = m.NetProfit / state.Initial
	}
	m.Stopped = state.State == StateStopped
	m.MaxDrawdown = calculateMaxDrawdown(state.EquityCurve)

	returns := state.EquityCurve.GetReturns()
	m.SharpeRatio = calculateSharpeRatio(returns, cfg.RiskFreeRate)
	m.SortinoRatio = calculateSortinoRatio(returns, cfg.RiskFreeRate)

	ledger := state.Ledger
	m.TotalBets = len(ledger)
	m.WinningBets, m.LosingBets, m.AverageWin, m.AverageLoss, m.LargestWin, m.LargestLoss = calculateBetStats(ledger)
	m.WinRate = calculateWinRate(m.WinningBets, m.TotalBets)
	m.ProfitFactor = calculateProfitFactor(ledger)
	m.LongestLosingStreak = longestLosingStreak(ledger)
	if m.TotalBets > 0 {
		m.Expectancy = m.NetProfit / float64(m.TotalBets)
		clv := 0.0
		for i := range ledger {
			m.TotalStaked += ledger[i].Wager
			clv += ledger[i].CLV
		}
		m.AverageCLV = clv / float64(m.TotalBets)
	}
	if m.TotalStaked > 0 {
		m.Yield = m.NetProfit / m.TotalStaked
	}
	return m
}

// ToJSON exports metrics to JSON
func (m Metrics) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func calculateSharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	return (average(returns) - riskFreeRate) / std
}

func calculateSortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	std := downsideStddev(returns)
	if std == 0 {
		return 0
	}
	return (average(returns) - riskFreeRate) / std
}

func calculateMaxDrawdown(curve EquityCurve) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak == 0 {
			continue
		}
		drawdown := (peak - p.Value) / peak
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}
	return maxDD
}

func calculateProfitFactor(ledger []models.LedgerEntry) float64 {
	grossProfit := 0.0
	grossLoss := 0.0
	for i := range ledger {
		if ledger[i].Profit > 0 {
			grossProfit += ledger[i].Profit
		} else {
			grossLoss += math.Abs(ledger[i].Profit)
		}
	}
	if grossLoss == 0 {
		if grossProfit > 0 {
			return profitFactorCap
		}
		return 0
	}
	return grossProfit / grossLoss
}

func calculateBetStats(ledger []models.LedgerEntry) (int, int, float64, float64, float64, float64) {
	wins := 0
	losses := 0
	winSum := 0.0
	lossSum := 0.0
	largestWin := 0.0
	largestLoss := 0.0
	for i := range ledger {
		pl := ledger[i].Profit
		if ledger[i].Won {
			wins++
			winSum += pl
			largestWin = math.Max(largestWin, pl)
		} else {
			losses++
			lossSum += pl
			largestLoss = math.Min(largestLoss, pl)
		}
	}

	avgWin := 0.0
	avgLoss := 0.0
	if wins > 0 {
		avgWin = winSum / float64(wins)
	}
	if losses > 0 {
		avgLoss = lossSum / float64(losses)
	}
	return wins, losses, avgWin, avgLoss, largestWin, largestLoss
}

func calculateWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func longestLosingStreak(ledger []models.LedgerEntry) int {
	longest, current := 0, 0
	for i := range ledger {
		if ledger[i].Won {
			current = 0
			continue
		}
		current++
		if current > longest {
			longest = current
		}
	}
	return longest
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

func stddev(values []float64) float64 {
	_, std := meanStd(values)
	return std
}

// meanStd returns the mean and population standard deviation
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(values, nil)
}

func downsideStddev(values []float64) float64 {
	negatives := make([]float64, 0)
	for _, v := range values {
		if v < 0 {
			negatives = append(negatives, v)
		}
	}
	return stddev(negatives)
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
