package models

import (
	"github.com/google/uuid"
)

// Side is the outcome a bet backs on the over/under market
type Side string

const (
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// Sides lists the candidate outcomes in evaluation order
var Sides = []Side{SideOver, SideUnder}

// Wins reports whether the side wins given the realised over indicator (1 = over).
func (s Side) Wins(over int) bool {
	if s == SideOver {
		return over == 1
	}
	return over == 0
}

// RejectionReason names the first admission check a candidate failed
type RejectionReason string

const (
	RejectProbability   RejectionReason = "probability"
	RejectSignal        RejectionReason = "signal"
	RejectOdds          RejectionReason = "odds"
	RejectDisagreement  RejectionReason = "disagreement"
	RejectExpectedValue RejectionReason = "expected_value"
	RejectUnusableOdds  RejectionReason = "unusable_odds"
)

// BetRecommendation is an admitted (match, side) candidate. Immutable once created.
type BetRecommendation struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	MatchIndex       int          `db:"match_index" json:"match_index"`
	MatchID          string       `db:"match_id" json:"match_id"`
	Date             string       `db:"match_date" json:"date"`
	HomeTeam         string       `db:"home_team" json:"home_team"`
	AwayTeam         string       `db:"away_team" json:"away_team"`
	GroupKey         string       `db:"group_key" json:"group_key"`
	Side             Side         `db:"side" json:"side"`
	ModelProb        float64      `db:"model_prob" json:"model_prob"`
	ImpliedProbOpen  float64      `db:"implied_prob_open" json:"implied_prob_open"`
	ImpliedProbClose float64      `db:"implied_prob_close" json:"implied_prob_close"`
	Edge             float64      `db:"edge" json:"edge"`
	EV               float64      `db:"ev" json:"ev"`
	KellyFraction    float64      `db:"kelly_fraction" json:"kelly_fraction"`
	RecommendedStake float64      `db:"recommended_stake" json:"recommended_stake"`
	MarketOdds       float64      `db:"market_odds" json:"market_odds"`
	CLV              float64      `db:"clv" json:"clv"`
	Signal           MarketSignal `db:"signal" json:"signal"`
	PassesProb       bool         `db:"passes_prob" json:"passes_prob"`
	PassesSignal     bool         `db:"passes_signal" json:"passes_signal"`
}

// PairedBet combines two recommendations on distinct matches.
// Combined probability assumes the legs are independent.
type PairedBet struct {
	ID               uuid.UUID         `json:"id"`
	Leg1             BetRecommendation `json:"leg_1"`
	Leg2             BetRecommendation `json:"leg_2"`
	CombinedProb     float64           `json:"combined_prob"`
	CombinedOdds     float64           `json:"combined_odds"`
	RecommendedStake float64           `json:"recommended_stake"`
}

// CrossGroup reports whether the legs come from different groups
func (p *PairedBet) CrossGroup() bool {
	return p.Leg1.GroupKey != p.Leg2.GroupKey
}

// CLVSummary aggregates closing-line value over a set of recommendations
type CLVSummary struct {
	AvgCLV         float64 `json:"avg_clv"`
	PctPositiveCLV float64 `json:"pct_positive_clv"`
	TotalBets      int     `json:"total_bets"`
}
