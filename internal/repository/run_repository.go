package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/yourusername/totals-edge/internal/database"
	"github.com/yourusername/totals-edge/internal/models"
)

const (
	probPlaces  = 4
	moneyPlaces = 2
	oddsPlaces  = 2

	errScanRun = "failed to scan run: %w"
)

var recommendationColumns = []string{
	"id", "run_id", "match_index", "match_id", "match_date", "home_team", "away_team", "group_key",
	"side", "model_prob", "implied_prob_open", "implied_prob_close", "edge", "ev", "kelly_fraction",
	"recommended_stake", "market_odds", "clv", "signal",
}

var ledgerColumns = []string{
	"run_id", "seq", "match_index", "match_date", "side", "odds", "model_prob", "clv",
	"stake_pct", "wager", "won", "profit", "bankroll",
}

const runColumns = `id, run_date, data_source, matches, mean_brier, mean_log_loss, admitted, pairs,
	initial_bankroll, final_bankroll, roi, max_drawdown, total_bets, win_rate, stopped,
	avg_clv, composite_score, verdict, rejections, created_at`

// PostgresRunRepository implements RunRepository for PostgreSQL
type PostgresRunRepository struct {
	db *database.DB
}

// NewPostgresRunRepository creates a new run repository
func NewPostgresRunRepository(db *database.DB) RunRepository {
	return &PostgresRunRepository{db: db}
}

// SaveRun inserts the run and bulk-copies its recommendations and ledger
func (r *PostgresRunRepository) SaveRun(ctx context.Context, run *RunRecord) error {
	prepareSummary(&run.Summary, time.Now().UTC())

	return r.db.WithTransaction(ctx, func(ctx context.Context, q database.Querier) error {
		if err := insertRun(ctx, q, &run.Summary); err != nil {
			return err
		}
		if len(run.Recommendations) > 0 {
			if _, err := q.CopyFrom(ctx, pgx.Identifier{"recommendations"}, recommendationColumns,
				pgx.CopyFromRows(recommendationRows(run.Summary.ID, run.Recommendations))); err != nil {
				return fmt.Errorf("failed to copy recommendations: %w", err)
			}
		}
		if len(run.Ledger) > 0 {
			if _, err := q.CopyFrom(ctx, pgx.Identifier{"ledger_entries"}, ledgerColumns,
				pgx.CopyFromRows(ledgerRows(run.Summary.ID, run.Ledger))); err != nil {
				return fmt.Errorf("failed to copy ledger: %w", err)
			}
		}
		return nil
	})
}

// prepareSummary assigns an id, timestamps and an empty rejection object where missing
func prepareSummary(s *models.RunSummary, now time.Time) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.RunDate.IsZero() {
		s.RunDate = now
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if len(s.Rejections) == 0 {
		s.Rejections = json.RawMessage("{}")
	}
}

func insertRun(ctx context.Context, q database.Querier, s *models.RunSummary) error {
	query := `INSERT INTO runs (` + runColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`

	_, err := q.Exec(ctx, query,
		s.ID, s.RunDate, s.DataSource, s.Matches, nullable(s.MeanBrier), nullable(s.MeanLogLoss),
		s.Admitted, s.Pairs, money(s.InitialBankroll), money(s.FinalBankroll),
		nullable(s.ROI), nullable(s.MaxDrawdown), s.TotalBets, nullable(s.WinRate), s.Stopped,
		nullable(s.AvgCLV), nullable(s.CompositeScore), s.Verdict, s.Rejections, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func recommendationRows(runID uuid.UUID, recs []models.BetRecommendation) [][]any {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		id := rec.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		rows[i] = []any{
			id, runID, rec.MatchIndex, rec.MatchID, rec.Date, rec.HomeTeam, rec.AwayTeam, rec.GroupKey,
			string(rec.Side), round(rec.ModelProb, probPlaces), round(rec.ImpliedProbOpen, probPlaces),
			round(rec.ImpliedProbClose, probPlaces), round(rec.Edge, probPlaces), round(rec.EV, probPlaces),
			round(rec.KellyFraction, probPlaces), round(rec.RecommendedStake, probPlaces),
			round(rec.MarketOdds, oddsPlaces), round(rec.CLV, probPlaces), int16(rec.Signal),
		}
	}
	return rows
}

func ledgerRows(runID uuid.UUID, entries []models.LedgerEntry) [][]any {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{
			runID, i, e.MatchIndex, e.Date, string(e.Side), round(e.Odds, oddsPlaces),
			round(e.ModelProb, probPlaces), round(e.CLV, probPlaces), round(e.StakePct, probPlaces),
			money(e.Wager), e.Won, money(e.Profit), money(e.Bankroll),
		}
	}
	return rows
}

// round fixes v to places decimal digits; NaN and Inf become NULL
func round(v float64, places int32) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func money(v float64) any {
	return round(v, moneyPlaces)
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func fromNullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// GetByID retrieves a run summary
func (r *PostgresRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	s, err := scanRun(r.db.Querier().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf(errScanRun, err)
	}
	return s, nil
}

// GetLatest retrieves the most recent runs
func (r *PostgresRunRepository) GetLatest(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY run_date DESC LIMIT $1`

	rows, err := r.db.Querier().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.RunSummary
	for rows.Next() {
		s, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanRun, err)
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*models.RunSummary, error) {
	s := &models.RunSummary{}
	var brier, logLoss, roi, drawdown, winRate, clv, score *float64
	err := row.Scan(
		&s.ID, &s.RunDate, &s.DataSource, &s.Matches, &brier, &logLoss, &s.Admitted, &s.Pairs,
		&s.InitialBankroll, &s.FinalBankroll, &roi, &drawdown, &s.TotalBets, &winRate, &s.Stopped,
		&clv, &score, &s.Verdict, &s.Rejections, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.MeanBrier, s.MeanLogLoss = fromNullable(brier), fromNullable(logLoss)
	s.ROI, s.MaxDrawdown, s.WinRate = fromNullable(roi), fromNullable(drawdown), fromNullable(winRate)
	s.AvgCLV, s.CompositeScore = fromNullable(clv), fromNullable(score)
	return s, nil
}

// GetRecommendations retrieves a run's admitted bets in match order
func (r *PostgresRunRepository) GetRecommendations(ctx context.Context, runID uuid.UUID) ([]models.BetRecommendation, error) {
	query := `
		SELECT id, match_index, match_id, match_date, home_team, away_team, group_key, side,
		       model_prob, implied_prob_open, implied_prob_close, edge, ev, kelly_fraction,
		       recommended_stake, market_odds, clv, signal
		FROM recommendations WHERE run_id = $1 ORDER BY match_index, side
	`
	rows, err := r.db.Querier().Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []models.BetRecommendation
	for rows.Next() {
		var (
			rec             models.BetRecommendation
			side            string
			signal          int16
			implOpen        *float64
			implClose       *float64
			edge, ev, kelly *float64
			stake, odds     *float64
			clv             *float64
		)
		if err := rows.Scan(
			&rec.ID, &rec.MatchIndex, &rec.MatchID, &rec.Date, &rec.HomeTeam, &rec.AwayTeam, &rec.GroupKey, &side,
			&rec.ModelProb, &implOpen, &implClose, &edge, &ev, &kelly, &stake, &odds, &clv, &signal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		rec.Side = models.Side(side)
		rec.Signal = models.MarketSignal(signal)
		rec.ImpliedProbOpen, rec.ImpliedProbClose = fromNullable(implOpen), fromNullable(implClose)
		rec.Edge, rec.EV, rec.KellyFraction = fromNullable(edge), fromNullable(ev), fromNullable(kelly)
		rec.RecommendedStake, rec.MarketOdds, rec.CLV = fromNullable(stake), fromNullable(odds), fromNullable(clv)
		rec.PassesProb, rec.PassesSignal = true, true
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetLedger retrieves a run's settled bets in settlement order
func (r *PostgresRunRepository) GetLedger(ctx context.Context, runID uuid.UUID) ([]models.LedgerEntry, error) {
	query := `
		SELECT match_index, match_date, side, odds, model_prob, clv, stake_pct, wager, won, profit, bankroll
		FROM ledger_entries WHERE run_id = $1 ORDER BY seq
	`
	rows, err := r.db.Querier().Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var (
			e                   models.LedgerEntry
			side                string
			prob, clv, stakePct *float64
		)
		if err := rows.Scan(
			&e.MatchIndex, &e.Date, &side, &e.Odds, &prob, &clv, &stakePct, &e.Wager, &e.Won, &e.Profit, &e.Bankroll,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Side = models.Side(side)
		e.ModelProb, e.CLV, e.StakePct = fromNullable(prob), fromNullable(clv), fromNullable(stakePct)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes a run and, by cascade, its children
func (r *PostgresRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Querier().Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
