package models

// LedgerEntry is one settled bet in the bankroll trajectory
type LedgerEntry struct {
	MatchIndex int     `db:"match_index" json:"match_index"`
	Date       string  `db:"match_date" json:"date"`
	Side       Side    `db:"side" json:"bet_on"`
	Odds       float64 `db:"odds" json:"odds"`
	ModelProb  float64 `db:"model_prob" json:"model_prob"`
	CLV        float64 `db:"clv" json:"clv"`
	StakePct   float64 `db:"stake_pct" json:"stake_pct"`
	Wager      float64 `db:"wager" json:"wager"`
	Won        bool    `db:"won" json:"won"`
	Profit     float64 `db:"profit" json:"profit"`
	Bankroll   float64 `db:"bankroll" json:"bankroll"`
}
