package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunSummary is the persisted outcome of one pipeline run
type RunSummary struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	RunDate         time.Time       `db:"run_date" json:"run_date"`
	DataSource      string          `db:"data_source" json:"data_source"`
	Matches         int             `db:"matches" json:"matches"`
	MeanBrier       float64         `db:"mean_brier" json:"mean_brier"`
	MeanLogLoss     float64         `db:"mean_log_loss" json:"mean_log_loss"`
	Admitted        int             `db:"admitted" json:"admitted"`
	Pairs           int             `db:"pairs" json:"pairs"`
	InitialBankroll float64         `db:"initial_bankroll" json:"initial_bankroll"`
	FinalBankroll   float64         `db:"final_bankroll" json:"final_bankroll"`
	ROI             float64         `db:"roi" json:"roi"`
	MaxDrawdown     float64         `db:"max_drawdown" json:"max_drawdown"`
	TotalBets       int             `db:"total_bets" json:"total_bets"`
	WinRate         float64         `db:"win_rate" json:"win_rate"`
	Stopped         bool            `db:"stopped" json:"stopped"`
	AvgCLV          float64         `db:"avg_clv" json:"avg_clv"`
	CompositeScore  float64         `db:"composite_score" json:"composite_score"`
	Verdict         string          `db:"verdict" json:"verdict"`
	Rejections      json.RawMessage `db:"rejections" json:"rejections"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
