package strategy

import (
	"math"
)

// ImpliedProbability converts decimal odds to the probability the price encodes.
// Non-tradable odds (<= 1 or NaN) imply certainty.
func ImpliedProbability(odds float64) float64 {
	if !usableOdds(odds) {
		return 1.0
	}
	return 1.0 / odds
}

// ExpectedValue is the expected profit of a unit stake
func ExpectedValue(p, odds float64) float64 {
	return p*(odds-1.0) - (1.0 - p)
}

// KellyStake returns the full Kelly fraction of bankroll, floored at 0.
func KellyStake(p, odds float64) float64 {
	b := odds - 1.0
	if b <= 0 || math.IsNaN(b) {
		return 0
	}
	f := (b*p - (1.0 - p)) / b
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	return f
}

// ClosingLineValue is the model probability minus the closing implied probability
func ClosingLineValue(p, closingImplied float64) float64 {
	return p - closingImplied
}

// FractionalStake scales a full Kelly fraction and caps it at maxStake.
func FractionalStake(fullKelly, multiplier, maxStake float64) float64 {
	return math.Min(fullKelly*multiplier, maxStake)
}

func usableOdds(odds float64) bool {
	return !math.IsNaN(odds) && !math.IsInf(odds, 0) && odds > 1.0
}

// chooseOdds prefers closing odds and falls back to opening odds.
func chooseOdds(open, close float64) (float64, bool) {
	if !math.IsNaN(close) {
		return close, usableOdds(close)
	}
	if !math.IsNaN(open) {
		return open, usableOdds(open)
	}
	return math.NaN(), false
}
