package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/config"
	"github.com/yourusername/totals-edge/internal/logger"
)

// Schema creates the run tables when absent. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id               UUID PRIMARY KEY,
		run_date         TIMESTAMPTZ NOT NULL,
		data_source      TEXT NOT NULL,
		matches          INTEGER NOT NULL,
		mean_brier       DOUBLE PRECISION,
		mean_log_loss    DOUBLE PRECISION,
		admitted         INTEGER NOT NULL,
		pairs            INTEGER NOT NULL,
		initial_bankroll NUMERIC(14,2) NOT NULL,
		final_bankroll   NUMERIC(14,2) NOT NULL,
		roi              DOUBLE PRECISION,
		max_drawdown     DOUBLE PRECISION,
		total_bets       INTEGER NOT NULL,
		win_rate         DOUBLE PRECISION,
		stopped          BOOLEAN NOT NULL,
		avg_clv          DOUBLE PRECISION,
		composite_score  DOUBLE PRECISION,
		verdict          TEXT NOT NULL,
		rejections       JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS runs_run_date_idx ON runs (run_date DESC)`,
	`CREATE TABLE IF NOT EXISTS recommendations (
		id                 UUID PRIMARY KEY,
		run_id             UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		match_index        INTEGER NOT NULL,
		match_id           TEXT NOT NULL,
		match_date         TEXT,
		home_team          TEXT,
		away_team          TEXT,
		group_key          TEXT,
		side               TEXT NOT NULL,
		model_prob         NUMERIC(8,4) NOT NULL,
		implied_prob_open  NUMERIC(8,4),
		implied_prob_close NUMERIC(8,4),
		edge               NUMERIC(8,4),
		ev                 NUMERIC(10,4),
		kelly_fraction     NUMERIC(8,4),
		recommended_stake  NUMERIC(8,4),
		market_odds        NUMERIC(8,2),
		clv                NUMERIC(8,4),
		signal             SMALLINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS recommendations_run_idx ON recommendations (run_id, match_index)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		run_id      UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		match_index INTEGER NOT NULL,
		match_date  TEXT,
		side        TEXT NOT NULL,
		odds        NUMERIC(8,2) NOT NULL,
		model_prob  NUMERIC(8,4),
		clv         NUMERIC(8,4),
		stake_pct   NUMERIC(8,4),
		wager       NUMERIC(14,2) NOT NULL,
		won         BOOLEAN NOT NULL,
		profit      NUMERIC(14,2) NOT NULL,
		bankroll    NUMERIC(14,2) NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// EnsureSchema applies Schema in order
func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range Schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

// Initialize creates a database connection pool and applies the schema
func Initialize(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*DB, error) {
	log = logger.OrDiscard(log)

	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db.Querier()); err != nil {
		db.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Name,
	}).Info("Database ready")
	return db, nil
}
