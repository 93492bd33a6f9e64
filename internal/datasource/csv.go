package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/metrics"
	"github.com/yourusername/totals-edge/internal/models"
)

// Canonical column names
const (
	ColDate           = "date"
	ColHomeTeam       = "home_team"
	ColAwayTeam       = "away_team"
	ColLeague         = "league"
	ColHomeGoals      = "home_goals"
	ColAwayGoals      = "away_goals"
	ColTotalXG        = "total_xg"
	ColHomeXG         = "home_xg"
	ColAwayXG         = "away_xg"
	ColOverOpenOdds   = "over25_open_odds"
	ColOverCloseOdds  = "over25_close_odds"
	ColUnderOpenOdds  = "under25_open_odds"
	ColUnderCloseOdds = "under25_close_odds"
	ColID             = "id"
)

// reservedColumns are never auto-detected as features. Realised goals, xG and points
// describe the match itself and would leak the outcome.
var reservedColumns = map[string]bool{
	ColDate: true, ColHomeTeam: true, ColAwayTeam: true, ColLeague: true,
	ColHomeGoals: true, ColAwayGoals: true, ColTotalXG: true, ColHomeXG: true, ColAwayXG: true,
	ColOverOpenOdds: true, ColOverCloseOdds: true, ColUnderOpenOdds: true, ColUnderCloseOdds: true,
	ColID: true, "season": true, "result": true, "total_goals": true, "over25": true,
	"home_xp": true, "away_xp": true, "home_pts": true, "away_pts": true, "liquidity": true,
	"market_momentum_over": true, "market_momentum_under": true, "steam_signal": true,
}

var requiredColumns = []string{ColDate, ColHomeTeam, ColAwayTeam}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2006/01/02",
}

// DefaultSteamThreshold is the fractional odds drop that counts as steam
const DefaultSteamThreshold = 0.05

// CSVOptions controls how a match table is read
type CSVOptions struct {
	// FeatureColumns lists the model inputs; empty means auto-detect numeric columns.
	FeatureColumns []string
	SteamThreshold float64
}

// LoadStats summarises a parse
type LoadStats struct {
	Rows          int      `json:"rows"`
	Dropped       int      `json:"dropped"`
	Unresolved    int      `json:"unresolved"`
	MarketContext bool     `json:"market_context"`
	Features      []string `json:"features"`
}

// ParseCSV reads a match table, derives market momentum and steam when both opening
// and closing odds columns exist, and returns matches sorted by date.
func ParseCSV(r io.Reader, opts CSVOptions) (models.Batch, LoadStats, error) {
	var stats LoadStats

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return models.Batch{}, stats, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return models.Batch{}, stats, models.ErrEmptyDataset
	}

	header := make(map[string]int, len(records[0]))
	names := make([]string, len(records[0]))
	for i, h := range records[0] {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		names[i] = name
		header[name] = i
	}
	for _, col := range requiredColumns {
		if _, ok := header[col]; !ok {
			return models.Batch{}, stats, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	rows := records[1:]
	if len(rows) == 0 {
		return models.Batch{}, stats, models.ErrEmptyDataset
	}
	features, err := resolveFeatures(names, header, rows, opts.FeatureColumns)
	if err != nil {
		return models.Batch{}, stats, err
	}
	stats.Features = features

	threshold := opts.SteamThreshold
	if threshold <= 0 {
		threshold = DefaultSteamThreshold
	}
	stats.MarketContext = hasColumns(header, ColOverOpenOdds, ColOverCloseOdds, ColUnderOpenOdds, ColUnderCloseOdds)

	p := rowParser{header: header, features: features, market: stats.MarketContext, steam: threshold}
	matches := make([]models.Match, 0, len(rows))
	for _, rec := range rows {
		m, ok := p.parse(rec)
		if !ok {
			stats.Dropped++
			continue
		}
		if !m.Resolved() {
			stats.Unresolved++
		}
		matches = append(matches, m)
	}
	if len(matches) == 0 {
		return models.Batch{}, stats, models.ErrEmptyDataset
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Date.Before(matches[j].Date)
	})
	for i := range matches {
		matches[i].Index = i
	}
	stats.Rows = len(matches)

	return models.NewBatch(features, matches), stats, nil
}

func resolveFeatures(names []string, header map[string]int, rows [][]string, configured []string) ([]string, error) {
	if len(configured) > 0 {
		out := make([]string, len(configured))
		for i, c := range configured {
			name := strings.ToLower(strings.TrimSpace(c))
			if _, ok := header[name]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, c)
			}
			out[i] = name
		}
		return out, nil
	}

	var out []string
	for i, name := range names {
		if reservedColumns[name] || name == "" {
			continue
		}
		if numericColumn(rows, i) {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoFeatures
	}
	return out, nil
}

// numericColumn reports whether every non-empty cell parses and at least one is present
func numericColumn(rows [][]string, col int) bool {
	seen := false
	for _, rec := range rows {
		if col >= len(rec) {
			continue
		}
		cell := strings.TrimSpace(rec[col])
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func hasColumns(header map[string]int, cols ...string) bool {
	for _, c := range cols {
		if _, ok := header[c]; !ok {
			return false
		}
	}
	return true
}

type rowParser struct {
	header   map[string]int
	features []string
	market   bool
	steam    float64
}

func (p rowParser) cell(rec []string, col string) string {
	i, ok := p.header[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (p rowParser) float(rec []string, col string) float64 {
	s := p.cell(rec, col)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func (p rowParser) parse(rec []string) (models.Match, bool) {
	date, err := parseDate(p.cell(rec, ColDate))
	if err != nil {
		return models.Match{}, false
	}
	home, away := p.cell(rec, ColHomeTeam), p.cell(rec, ColAwayTeam)
	if home == "" || away == "" {
		return models.Match{}, false
	}

	m := models.Match{
		ID:       p.cell(rec, ColID),
		Date:     date,
		HomeTeam: home,
		AwayTeam: away,
		GroupKey: p.cell(rec, ColLeague),
		TotalXG:  p.totalXG(rec),
		Features: make([]float64, len(p.features)),
		Odds: models.Odds{
			OverOpen:   p.float(rec, ColOverOpenOdds),
			OverClose:  p.float(rec, ColOverCloseOdds),
			UnderOpen:  p.float(rec, ColUnderOpenOdds),
			UnderClose: p.float(rec, ColUnderCloseOdds),
		},
	}
	if m.ID == "" {
		m.ID = matchID(date, home, away)
	}

	for i, f := range p.features {
		v := p.float(rec, f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.Match{}, false
		}
		m.Features[i] = v
	}

	hg, hok, herr := goals(p.cell(rec, ColHomeGoals))
	ag, aok, aerr := goals(p.cell(rec, ColAwayGoals))
	if herr != nil || aerr != nil {
		return models.Match{}, false
	}
	if hok && aok {
		m.HomeCount, m.AwayCount = &hg, &ag
	}

	if p.market {
		m.Market = marketContext(m.Odds, p.steam)
	}
	return m, true
}

func (p rowParser) totalXG(rec []string) float64 {
	if v := p.float(rec, ColTotalXG); !math.IsNaN(v) {
		return v
	}
	return p.float(rec, ColHomeXG) + p.float(rec, ColAwayXG)
}

// goals parses a non-negative integral count. An empty cell is unresolved, not an error.
func goals(s string) (int, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if v < 0 || v != math.Trunc(v) {
		return 0, false, fmt.Errorf("invalid goal count %q", s)
	}
	return int(v), true, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

var matchNamespace = uuid.MustParse("6f1c0a7e-4b8e-4d0a-9d3c-2b1e5f7a9c11")

// matchID derives a stable identifier so reruns over the same file agree
func matchID(date time.Time, home, away string) string {
	return uuid.NewSHA1(matchNamespace, []byte(date.Format("2006-01-02")+"|"+home+"|"+away)).String()
}

// Momentum returns (open-close)/open, or 0 when either price is unusable.
func Momentum(open, close float64) float64 {
	if math.IsNaN(open) || math.IsNaN(close) || open <= 0 || close <= 0 {
		return 0
	}
	return (open - close) / open
}

// marketContext derives momentum per side and the steam signal. Under steam wins when both sides move.
func marketContext(o models.Odds, threshold float64) *models.MarketContext {
	mc := &models.MarketContext{
		MomentumOver:  Momentum(o.OverOpen, o.OverClose),
		MomentumUnder: Momentum(o.UnderOpen, o.UnderClose),
		Signal:        models.SignalNeutral,
	}
	if mc.MomentumOver > threshold {
		mc.Signal = models.SignalOver
	}
	if mc.MomentumUnder > threshold {
		mc.Signal = models.SignalUnder
	}
	return mc
}

// CSVSource reads matches from a local file
type CSVSource struct {
	path   string
	opts   CSVOptions
	logger *logrus.Logger
}

// NewCSVSource creates a file-backed source
func NewCSVSource(path string, opts CSVOptions, log *logrus.Logger) *CSVSource {
	return &CSVSource{path: path, opts: opts, logger: logger.OrDiscard(log)}
}

// Name returns the name of the data source
func (s *CSVSource) Name() string {
	return "csv"
}

// Load reads and parses the file
func (s *CSVSource) Load(ctx context.Context) (models.Batch, error) {
	if err := ctx.Err(); err != nil {
		return models.Batch{}, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Batch{}, NewDataSourceError(s.Name(), ErrCodeNotFound, s.path, err)
		}
		return models.Batch{}, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	batch, stats, err := ParseCSV(f, s.opts)
	if err != nil {
		return models.Batch{}, NewDataSourceError(s.Name(), ErrCodeInvalidData, s.path, err)
	}
	logStats(s.logger, s.Name(), s.path, stats)
	return batch, nil
}

func logStats(log *logrus.Logger, source, location string, stats LoadStats) {
	metrics.RecordMatchesLoaded(stats.Rows)
	entry := log.WithFields(logrus.Fields{
		"source":         source,
		"location":       location,
		"rows":           stats.Rows,
		"unresolved":     stats.Unresolved,
		"features":       len(stats.Features),
		"market_context": stats.MarketContext,
	})
	if stats.Dropped > 0 {
		entry.WithField("dropped", stats.Dropped).Warn("Dropped rows with missing or malformed fields")
	}
	if !stats.MarketContext {
		entry.Warn("Opening/closing odds columns missing, market momentum unavailable")
	}
	entry.Info("Matches loaded")
}
