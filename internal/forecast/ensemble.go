package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/metrics"
	"github.com/yourusername/totals-edge/internal/models"
	"github.com/yourusername/totals-edge/internal/poisson"
)

const (
	// DefaultBaselineRate is the per-side rate used when no historical totals are available.
	DefaultBaselineRate = 1.3

	ProbFloor   = 0.01
	ProbCeiling = 0.99
)

// Config holds the ensemble settings
type Config struct {
	Line        float64        `json:"line"`
	MaxCount    int            `json:"max_count"`
	Booster     BoosterParams  `json:"booster"`
	Meta        LogisticParams `json:"meta"`
	GridWorkers int            `json:"grid_workers"`
	CacheTTL    time.Duration  `json:"cache_ttl"`
}

// DefaultConfig returns the 2.5 line over a 0..10 grid
func DefaultConfig() Config {
	return Config{
		Line:        poisson.DefaultLine,
		MaxCount:    poisson.DefaultMaxCount,
		Booster:     DefaultBoosterParams(),
		Meta:        DefaultLogisticParams(),
		GridWorkers: 1,
		CacheTTL:    10 * time.Minute,
	}
}

// Option customises an Ensemble
type Option func(*Ensemble)

// WithLogger sets the logger
func WithLogger(l *logrus.Logger) Option {
	return func(e *Ensemble) {
		e.logger = logger.NewModelLogger(l)
	}
}

// WithRegressorFactory replaces the boosted-tree base regressors
func WithRegressorFactory(f RegressorFactory) Option {
	return func(e *Ensemble) {
		e.newRegressor = f
	}
}

// WithBaselineCache shares a baseline grid cache between ensembles built on the same grid
func WithBaselineCache(c *poisson.CachedGrid) Option {
	return func(e *Ensemble) {
		e.baselineGrid = c
	}
}

// snapshot is the immutable fitted state of all three stages.
type snapshot struct {
	columns      []string
	caps         models.Capabilities
	home         Regressor
	away         Regressor
	meta         *LogisticRegression
	calibrator   *Isotonic
	baselineRate float64
}

// Ensemble is the Unfit -> Fit three-stage over/under model.
// Fit builds a complete new snapshot and only then replaces the old one.
type Ensemble struct {
	cfg          Config
	grid         poisson.Grid
	baselineGrid *poisson.CachedGrid
	newRegressor RegressorFactory
	logger       *logger.ModelLogger
	state        *snapshot
}

// NewEnsemble creates an unfitted ensemble
func NewEnsemble(cfg Config, opts ...Option) *Ensemble {
	grid := poisson.NewGrid(cfg.Line, cfg.MaxCount)
	cfg.MaxCount = grid.MaxCount
	e := &Ensemble{
		cfg:          cfg,
		grid:         grid,
		newRegressor: BoostedTreesFactory(cfg.Booster),
		logger:       logger.NewModelLogger(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.baselineGrid == nil {
		e.baselineGrid = poisson.NewCachedGrid(grid, cfg.CacheTTL)
	}
	return e
}

// Config returns the ensemble settings
func (e *Ensemble) Config() Config {
	return e.cfg
}

// Ready reports whether Fit has completed
func (e *Ensemble) Ready() bool {
	return e.state != nil
}

// BaselineRate returns the per-side baseline rate: half the mean finite total xG,
// or DefaultBaselineRate when no match carries one.
func BaselineRate(matches []models.Match) float64 {
	sum, n := 0.0, 0
	for i := range matches {
		v := matches[i].TotalXG
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return DefaultBaselineRate
	}
	return sum / float64(n) / 2
}

// Fit trains base, meta and calibration stages in that order on the resolved matches of batch.
func (e *Ensemble) Fit(ctx context.Context, batch models.Batch) error {
	train := batch.Resolved()
	if train.Len() == 0 {
		return models.ErrEmptyDataset
	}

	X, err := featureMatrix(train, train.FeatureColumns)
	if err != nil {
		return err
	}
	yHome := make([]float64, train.Len())
	yAway := make([]float64, train.Len())
	yOver := make([]int, train.Len())
	for i := range train.Matches {
		m := &train.Matches[i]
		yHome[i] = float64(*m.HomeCount)
		yAway[i] = float64(*m.AwayCount)
		yOver[i], _ = m.OutcomeOver(e.cfg.Line)
	}

	next := &snapshot{
		columns:      append([]string(nil), train.FeatureColumns...),
		caps:         train.Capabilities,
		home:         e.newRegressor(),
		away:         e.newRegressor(),
		baselineRate: BaselineRate(train.Matches),
	}

	// Base stage
	start := time.Now()
	eg := new(errgroup.Group)
	eg.Go(func() error {
		if err := next.home.Fit(X, yHome); err != nil {
			return fmt.Errorf("fit home regressor: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		if err := next.away.Fit(X, yAway); err != nil {
			return fmt.Errorf("fit away regressor: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	e.recordStage("base", start, len(X), len(train.FeatureColumns))

	// Meta stage
	start = time.Now()
	_, _, metaX, err := e.metaFeatures(ctx, next, train, X)
	if err != nil {
		return err
	}
	next.meta = NewLogisticRegression(e.cfg.Meta)
	if err := next.meta.Fit(metaX, yOver); err != nil {
		return fmt.Errorf("fit meta-learner: %w", err)
	}
	raw, err := next.meta.PredictProba(metaX)
	if err != nil {
		return err
	}
	e.recordStage("meta", start, len(metaX), len(metaX[0]))

	// Calibration stage
	start = time.Now()
	next.calibrator = NewIsotonic()
	if err := next.calibrator.Fit(raw, yOver); err != nil {
		return fmt.Errorf("fit calibrator: %w", err)
	}
	e.recordStage("calibration", start, len(raw), 1)

	e.state = next
	return nil
}

// PredictProba runs the fitted forward pass. Probabilities are clipped to [ProbFloor, ProbCeiling].
func (e *Ensemble) PredictProba(ctx context.Context, batch models.Batch) ([]models.Prediction, error) {
	state := e.state
	if state == nil {
		return nil, models.ErrModelNotReady
	}
	if batch.Len() == 0 {
		return []models.Prediction{}, nil
	}
	if state.caps.MarketContext && !batch.Capabilities.MarketContext {
		return nil, models.ErrCapabilityMismatch
	}

	X, err := featureMatrix(batch, state.columns)
	if err != nil {
		return nil, err
	}
	predHome, predAway, metaX, err := e.metaFeatures(ctx, state, batch, X)
	if err != nil {
		return nil, err
	}
	raw, err := state.meta.PredictProba(metaX)
	if err != nil {
		return nil, err
	}
	calibrated, err := state.calibrator.Predict(raw)
	if err != nil {
		return nil, err
	}

	out := make([]models.Prediction, batch.Len())
	for i := range out {
		p := math.Min(math.Max(calibrated[i], ProbFloor), ProbCeiling)
		out[i] = models.Prediction{
			ProbOver:  p,
			ProbUnder: 1 - p,
			PredHome:  predHome[i],
			PredAway:  predAway[i],
			PredTotal: predHome[i] + predAway[i],
		}
	}
	return out, nil
}

// FeatureImportance averages the two base regressors' importances, sorted descending.
func (e *Ensemble) FeatureImportance() ([]models.FeatureImportance, error) {
	state := e.state
	if state == nil {
		return nil, models.ErrModelNotReady
	}
	home := state.home.FeatureImportances()
	away := state.away.FeatureImportances()

	out := make([]models.FeatureImportance, len(state.columns))
	for i, name := range state.columns {
		v := 0.0
		if i < len(home) {
			v += home[i]
		}
		if i < len(away) {
			v += away[i]
		}
		out[i] = models.FeatureImportance{Feature: name, Importance: v / 2}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}

// metaFeatures predicts base counts and assembles [probA, probC, momentum_over, signal] rows.
// Market columns are included only when the snapshot was fitted with them.
func (e *Ensemble) metaFeatures(ctx context.Context, s *snapshot, batch models.Batch, X [][]float64) ([]float64, []float64, [][]float64, error) {
	predHome, err := s.home.Predict(X)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("predict home counts: %w", err)
	}
	predAway, err := s.away.Predict(X)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("predict away counts: %w", err)
	}
	for i := range predHome {
		predHome[i] = math.Max(predHome[i], 0)
		predAway[i] = math.Max(predAway[i], 0)
	}

	probA, err := e.grid.OverProbabilities(ctx, predHome, predAway, e.cfg.GridWorkers)
	if err != nil {
		return nil, nil, nil, err
	}
	probC := e.baselineGrid.OverProbability(s.baselineRate, s.baselineRate)

	rows := make([][]float64, batch.Len())
	for i := range rows {
		row := []float64{probA[i], probC}
		if s.caps.MarketContext {
			mc := batch.Matches[i].Market
			row = append(row, mc.MomentumOver, float64(mc.Signal))
		}
		rows[i] = row
	}
	return predHome, predAway, rows, nil
}

func (e *Ensemble) recordStage(stage string, start time.Time, samples, features int) {
	elapsed := time.Since(start)
	metrics.RecordStageFit(stage, elapsed.Seconds())
	e.logger.LogStageFit(stage, samples, features, float64(elapsed.Microseconds())/1000)
}

// featureMatrix extracts the named columns, in order, from every match of batch.
func featureMatrix(batch models.Batch, columns []string) ([][]float64, error) {
	index := make(map[string]int, len(batch.FeatureColumns))
	for i, name := range batch.FeatureColumns {
		index[name] = i
	}
	positions := make([]int, len(columns))
	for i, name := range columns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("feature column %q missing from batch", name)
		}
		positions[i] = pos
	}

	X := make([][]float64, batch.Len())
	for i := range batch.Matches {
		features := batch.Matches[i].Features
		if len(features) != len(batch.FeatureColumns) {
			return nil, fmt.Errorf("match %d has %d features, want %d", batch.Matches[i].Index, len(features), len(batch.FeatureColumns))
		}
		row := make([]float64, len(columns))
		for j, pos := range positions {
			row[j] = features[pos]
		}
		X[i] = row
	}
	return X, nil
}
