package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourusername/totals-edge/internal/models"
)

// Report file names
const (
	RecommendationsFile   = "recommendations.csv"
	DoublesFile           = "doubles.csv"
	LedgerFile            = "backtest.csv"
	FeatureImportanceFile = "feature_importance.csv"
	EvaluationFile        = "evaluation.csv"
	EquityCurveFile       = "equity_curve.csv"
	SummaryFile           = "summary.json"
)

// Report gathers everything one pipeline run produced
type Report struct {
	RunID             uuid.UUID                  `json:"run_id"`
	GeneratedAt       time.Time                  `json:"generated_at"`
	DataSource        string                     `json:"data_source"`
	Matches           int                        `json:"matches"`
	Evaluation        *models.Evaluation         `json:"evaluation,omitempty"`
	Recommendations   []models.BetRecommendation `json:"-"`
	Rejections        map[string]int             `json:"rejections"`
	Pairs             []models.PairedBet         `json:"-"`
	Simulation        *SimulationResult          `json:"simulation,omitempty"`
	FeatureImportance []models.FeatureImportance `json:"feature_importance,omitempty"`
	CLV               models.CLVSummary          `json:"clv"`
	Assessment        *Assessment                `json:"assessment,omitempty"`
}

// GenerateConsoleReport formats a run for terminal output
func GenerateConsoleReport(r Report) string {
	var b strings.Builder
	b.WriteString("Totals Edge Report\n")
	b.WriteString("==================\n")
	b.WriteString(fmt.Sprintf("Matches: %d\n", r.Matches))
	if r.Evaluation != nil {
		b.WriteString(fmt.Sprintf("Brier Score: %s (+/- %s)\n", prob(r.Evaluation.MeanBrier), prob(r.Evaluation.StdBrier)))
		b.WriteString(fmt.Sprintf("Log Loss: %s (+/- %s)\n", prob(r.Evaluation.MeanLogLoss), prob(r.Evaluation.StdLogLoss)))
	}
	b.WriteString(fmt.Sprintf("Qualifying Bets: %d\n", len(r.Recommendations)))
	if len(r.Rejections) > 0 {
		reasons := make([]string, 0, len(r.Rejections))
		for reason := range r.Rejections {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			b.WriteString(fmt.Sprintf("  rejected (%s): %d\n", reason, r.Rejections[reason]))
		}
	}
	if r.CLV.TotalBets > 0 {
		b.WriteString(fmt.Sprintf("Avg CLV: %s | Positive CLV: %s%%\n", prob(r.CLV.AvgCLV), money(r.CLV.PctPositiveCLV*100)))
	}
	b.WriteString(fmt.Sprintf("Doubles: %d\n", len(r.Pairs)))
	if r.Simulation != nil {
		m := r.Simulation.Metrics
		b.WriteString(fmt.Sprintf("Bets Settled: %d\n", m.TotalBets))
		b.WriteString(fmt.Sprintf("Wins: %d (%s%%)\n", m.WinningBets, money(m.WinRate*100)))
		b.WriteString(fmt.Sprintf("Final Bankroll: %s\n", money(m.FinalBankroll)))
		b.WriteString(fmt.Sprintf("ROI: %s%%\n", money(m.ROI*100)))
		b.WriteString(fmt.Sprintf("Max Drawdown: %s%%\n", money(m.MaxDrawdown*100)))
		b.WriteString(fmt.Sprintf("Profit Factor: %s\n", money(m.ProfitFactor)))
		b.WriteString(fmt.Sprintf("Simulation State: %s\n", r.Simulation.State.State))
	}
	if r.Assessment != nil {
		b.WriteString(fmt.Sprintf("Composite Score: %s\n", money(r.Assessment.CompositeScore)))
		b.WriteString(fmt.Sprintf("Verdict: %s\n", r.Assessment.Verdict))
	}
	if n := len(r.FeatureImportance); n > 0 {
		if n > 10 {
			n = 10
		}
		b.WriteString("Top Features:\n")
		for _, fi := range r.FeatureImportance[:n] {
			b.WriteString(fmt.Sprintf("  %-28s %s\n", fi.Feature, prob(fi.Importance)))
		}
	}
	return b.String()
}

type reportTable struct {
	name  string
	write func(io.Writer) error
}

// WriteReportFiles writes every CSV table and the JSON summary into dir.
func WriteReportFiles(dir string, r Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tables := []reportTable{
		{RecommendationsFile, func(w io.Writer) error { return WriteRecommendationsCSV(w, r.Recommendations) }},
		{DoublesFile, func(w io.Writer) error { return WriteDoublesCSV(w, r.Pairs) }},
		{FeatureImportanceFile, func(w io.Writer) error { return WriteFeatureImportanceCSV(w, r.FeatureImportance) }},
	}
	if r.Evaluation != nil {
		tables = append(tables, reportTable{EvaluationFile, func(w io.Writer) error { return WriteEvaluationCSV(w, r.Evaluation) }})
	}
	if r.Simulation != nil {
		state := r.Simulation.State
		tables = append(tables,
			reportTable{LedgerFile, func(w io.Writer) error { return WriteLedgerCSV(w, state.Ledger) }},
			reportTable{EquityCurveFile, func(w io.Writer) error {
				_, err := io.WriteString(w, state.EquityCurve.ToCSV())
				return err
			}},
		)
	}

	paths := make([]string, 0, len(tables)+1)
	for _, t := range tables {
		path := filepath.Join(dir, t.name)
		if err := writeFile(path, t.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	summaryPath := filepath.Join(dir, SummaryFile)
	if err := ExportToJSON(r, summaryPath); err != nil {
		return paths, err
	}
	return append(paths, summaryPath), nil
}

// WriteRecommendationsCSV writes the admitted-bet table
func WriteRecommendationsCSV(w io.Writer, recs []models.BetRecommendation) error {
	cw := csv.NewWriter(w)
	header := []string{
		"match_index", "match_id", "date", "home_team", "away_team", "league", "bet_on",
		"model_prob", "implied_prob_open", "implied_prob_close", "edge", "ev",
		"kelly_fraction", "recommended_stake", "market_odds", "clv", "steam_signal",
		"passes_probability", "passes_signal",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range recs {
		r := &recs[i]
		row := []string{
			strconv.Itoa(r.MatchIndex), r.MatchID, r.Date, r.HomeTeam, r.AwayTeam, r.GroupKey, string(r.Side),
			prob(r.ModelProb), prob(r.ImpliedProbOpen), prob(r.ImpliedProbClose), prob(r.Edge), prob(r.EV),
			prob(r.KellyFraction), prob(r.RecommendedStake), money(r.MarketOdds), prob(r.CLV),
			strconv.Itoa(int(r.Signal)), strconv.FormatBool(r.PassesProb), strconv.FormatBool(r.PassesSignal),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDoublesCSV writes the paired-bet table
func WriteDoublesCSV(w io.Writer, pairs []models.PairedBet) error {
	cw := csv.NewWriter(w)
	header := []string{
		"double_id", "leg1_match", "leg1_bet", "leg1_prob", "leg1_odds",
		"leg2_match", "leg2_bet", "leg2_prob", "leg2_odds",
		"combined_prob", "combined_odds", "stake_pct", "cross_league",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range pairs {
		p := &pairs[i]
		row := []string{
			strconv.Itoa(i + 1),
			fixture(p.Leg1), string(p.Leg1.Side), prob(p.Leg1.ModelProb), money(p.Leg1.MarketOdds),
			fixture(p.Leg2), string(p.Leg2.Side), prob(p.Leg2.ModelProb), money(p.Leg2.MarketOdds),
			prob(p.CombinedProb), money(p.CombinedOdds), prob(p.RecommendedStake),
			strconv.FormatBool(p.CrossGroup()),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLedgerCSV writes the bankroll trajectory
func WriteLedgerCSV(w io.Writer, ledger []models.LedgerEntry) error {
	cw := csv.NewWriter(w)
	header := []string{"match_index", "date", "bet_on", "odds", "model_prob", "clv", "stake_pct", "wager", "won", "profit", "bankroll"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range ledger {
		e := &ledger[i]
		row := []string{
			strconv.Itoa(e.MatchIndex), e.Date, string(e.Side), money(e.Odds), prob(e.ModelProb), prob(e.CLV),
			prob(e.StakePct), money(e.Wager), strconv.FormatBool(e.Won), money(e.Profit), money(e.Bankroll),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFeatureImportanceCSV writes features sorted as given
func WriteFeatureImportanceCSV(w io.Writer, imp []models.FeatureImportance) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"feature", "importance"}); err != nil {
		return err
	}
	for _, fi := range imp {
		if err := cw.Write([]string{fi.Feature, round(fi.Importance, 6)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEvaluationCSV writes per-fold metrics followed by a mean row
func WriteEvaluationCSV(w io.Writer, eval *models.Evaluation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"fold", "train_size", "test_size", "brier_score", "log_loss"}); err != nil {
		return err
	}
	if eval == nil {
		cw.Flush()
		return cw.Error()
	}
	for _, f := range eval.Folds {
		row := []string{strconv.Itoa(f.Fold), strconv.Itoa(f.TrainSize), strconv.Itoa(f.TestSize), prob(f.Brier), prob(f.LogLoss)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"mean", "", "", prob(eval.MeanBrier), prob(eval.MeanLogLoss)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteEvaluationFile writes the fold table to path, creating parent directories
func WriteEvaluationFile(path string, eval *models.Evaluation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return writeFile(path, func(w io.Writer) error { return WriteEvaluationCSV(w, eval) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func fixture(r models.BetRecommendation) string {
	return r.HomeTeam + " vs " + r.AwayTeam
}

// prob rounds probabilities and ratios to 4 decimal places
func prob(v float64) string {
	return round(v, 4)
}

// money rounds amounts and odds to 2 decimal places
func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func round(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).Round(places).String()
}
