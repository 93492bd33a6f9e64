// Package service orchestrates a full forecasting and staking run.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/backtest"
	"github.com/yourusername/totals-edge/internal/config"
	"github.com/yourusername/totals-edge/internal/datasource"
	"github.com/yourusername/totals-edge/internal/forecast"
	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/metrics"
	"github.com/yourusername/totals-edge/internal/models"
	"github.com/yourusername/totals-edge/internal/poisson"
	"github.com/yourusername/totals-edge/internal/repository"
	"github.com/yourusername/totals-edge/internal/strategy"
	"github.com/yourusername/totals-edge/internal/tracing"
)

// Run modes reported to metrics
const (
	ModeFull     = "full"
	ModeEvaluate = "evaluate"
)

// SourceProvider resolves a data path to a match source
type SourceProvider interface {
	NewSource(path string) (datasource.Source, error)
}

// RunNotifier is told about every completed run
type RunNotifier interface {
	NotifyRun(summary *models.RunSummary)
}

// RunOptions overrides configuration for a single run
type RunOptions struct {
	DataPath     string
	OutputDir    string
	EvaluateOnly bool
}

// RunResult is what one pipeline run produced
type RunResult struct {
	Report    backtest.Report
	Summary   *models.RunSummary
	Files     []string
	Persisted bool
}

// Pipeline runs load, evaluate, fit, predict, gate, pair, replay and report.
// Runs are serialised; the scheduler and the CLI may share one Pipeline.
type Pipeline struct {
	cfg      *config.Config
	sources  SourceProvider
	runs     repository.RunRepository
	notifier RunNotifier
	grid     *poisson.CachedGrid
	logger   *logrus.Logger
	audit    *logger.AuditLogger
	mu       sync.Mutex
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithSourceProvider replaces the configuration-driven source factory
func WithSourceProvider(s SourceProvider) Option {
	return func(p *Pipeline) {
		p.sources = s
	}
}

// WithRunRepository enables persistence of every full run
func WithRunRepository(r repository.RunRepository) Option {
	return func(p *Pipeline) {
		p.runs = r
	}
}

// WithNotifier registers a run listener
func WithNotifier(n RunNotifier) Option {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

// NewPipeline creates a pipeline bound to cfg
func NewPipeline(cfg *config.Config, log *logrus.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	log = logger.OrDiscard(log)

	p := &Pipeline{
		cfg:    cfg,
		logger: log,
		audit:  logger.NewAuditLogger(log),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sources == nil {
		p.sources = datasource.NewFactory(cfg, log)
	}

	fc := ForecastConfig(cfg)
	p.grid = poisson.NewCachedGrid(poisson.NewGrid(fc.Line, fc.MaxCount), fc.CacheTTL)
	return p, nil
}

// ForecastConfig maps the model section onto ensemble settings
func ForecastConfig(cfg *config.Config) forecast.Config {
	m := cfg.Model
	return forecast.Config{
		Line:     m.OULine,
		MaxCount: m.PoissonMaxGoals,
		Booster: forecast.BoosterParams{
			NEstimators:    m.Booster.NEstimators,
			LearningRate:   m.Booster.LearningRate,
			MaxDepth:       m.Booster.MaxDepth,
			MinSamplesLeaf: m.Booster.MinSamplesLeaf,
			Subsample:      m.Booster.Subsample,
			Seed:           m.Booster.Seed,
		},
		Meta: forecast.LogisticParams{
			C:         m.Meta.C,
			MaxIter:   m.Meta.MaxIter,
			Tolerance: m.Meta.Tolerance,
		},
		GridWorkers: m.GridWorkers,
		CacheTTL:    cfg.CacheTTL(),
	}
}

// GatingConfig maps the strategy section onto admission thresholds
func GatingConfig(cfg *config.Config) strategy.GatingConfig {
	s := cfg.Strategy
	return strategy.GatingConfig{
		FractionalKelly: s.FractionalKelly,
		MinEV:           s.MinEVThreshold,
		MinProb:         s.MinProbThreshold,
		MinOdds:         s.MinOdds,
		MaxStake:        s.MaxStakePct,
		DisagreementCap: s.DisagreementSkipThreshold,
	}
}

// BacktestConfig maps the bankroll section onto simulation settings
func BacktestConfig(cfg *config.Config) backtest.Config {
	b := cfg.Bankroll
	return backtest.Config{
		InitialBankroll:      b.Initial,
		StopLossConsecutive:  b.StopLossConsecutive,
		MonteCarloIterations: b.MonteCarloIterations,
		MonteCarloSeed:       b.MonteCarloSeed,
		RuinFraction:         b.RuinFraction,
		RiskFreeRate:         b.RiskFreeRate,
	}
}

func (p *Pipeline) newEnsemble() *forecast.Ensemble {
	return forecast.NewEnsemble(ForecastConfig(p.cfg),
		forecast.WithLogger(p.logger),
		forecast.WithBaselineCache(p.grid),
	)
}

// Run executes one pipeline pass
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mode := ModeFull
	if opts.EvaluateOnly {
		mode = ModeEvaluate
	}
	start := time.Now()

	ctx, endSegment := tracing.StartSegment(ctx, "pipeline."+mode)
	result, err := p.run(ctx, opts)
	endSegment(err)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.RecordPipelineRun(mode, status, time.Since(start).Seconds())
	if err != nil {
		p.logger.WithError(err).WithField("mode", mode).Error("Pipeline run failed")
		return nil, err
	}

	metrics.UpdateLastRun(float64(time.Now().Unix()))
	if p.notifier != nil {
		p.notifier.NotifyRun(result.Summary)
	}
	p.logger.WithFields(logrus.Fields{
		"mode":        mode,
		"run_id":      result.Report.RunID,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Pipeline run complete")
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	source, err := p.sources.NewSource(opts.DataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create data source: %w", err)
	}
	loadCtx, endLoad := tracing.StartSubsegment(ctx, "load")
	batch, err := source.Load(loadCtx)
	endLoad(err)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches: %w", err)
	}
	p.logger.WithFields(logrus.Fields{
		"source":   source.Name(),
		"matches":  batch.Len(),
		"features": len(batch.FeatureColumns),
		"market":   batch.Capabilities.MarketContext,
	}).Info("Matches loaded")

	report := backtest.Report{
		RunID:       uuid.New(),
		GeneratedAt: time.Now().UTC(),
		DataSource:  source.Name(),
		Matches:     batch.Len(),
		Rejections:  map[string]int{},
	}
	tracing.AddAnnotation(ctx, "run_id", report.RunID.String())
	tracing.AddAnnotation(ctx, "matches", batch.Len())

	evaluator, err := forecast.NewEvaluator(p.cfg.Model.TimeSeriesSplits, p.cfg.Model.FoldWorkers, p.newEnsemble, p.logger)
	if err != nil {
		return nil, err
	}
	evalCtx, endEval := tracing.StartSubsegment(ctx, "evaluate")
	eval, err := evaluator.Evaluate(evalCtx, batch)
	endEval(err)
	if err != nil {
		return nil, fmt.Errorf("cross-validation failed: %w", err)
	}
	report.Evaluation = eval

	if opts.EvaluateOnly {
		files, err := p.writeEvaluation(p.outputDir(opts), report)
		if err != nil {
			return nil, err
		}
		return &RunResult{Report: report, Summary: report.Summary(), Files: files}, nil
	}

	ensemble := p.newEnsemble()
	fitCtx, endFit := tracing.StartSubsegment(ctx, "fit")
	err = ensemble.Fit(fitCtx, batch)
	endFit(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fit ensemble: %w", err)
	}
	preds, err := ensemble.PredictProba(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to predict: %w", err)
	}
	if report.FeatureImportance, err = ensemble.FeatureImportance(); err != nil {
		return nil, err
	}
	top := make(map[string]float64)
	for _, fi := range report.FeatureImportance[:min(5, len(report.FeatureImportance))] {
		top[fi.Feature] = fi.Importance
	}
	logger.NewModelLogger(p.logger).LogFeatureImportance(top)

	gating, err := strategy.NewGatingEngine(GatingConfig(p.cfg), p.logger)
	if err != nil {
		return nil, err
	}
	recs, rejections, err := gating.Evaluate(batch, preds)
	if err != nil {
		return nil, fmt.Errorf("gating failed: %w", err)
	}
	report.Recommendations = recs
	report.Rejections = rejections.Fields()
	report.CLV = strategy.LogCLVSummary(recs, p.logger)
	tracing.AddAnnotation(ctx, "recommendations", len(recs))

	if p.cfg.Pairing.Enabled {
		pairer := strategy.NewPairer(p.cfg.Strategy.FractionalKelly, p.cfg.Strategy.MaxStakePct, p.cfg.Pairing.PreferCrossLeague, p.logger)
		report.Pairs = pairer.Pair(recs)
	}

	btCfg := BacktestConfig(p.cfg)
	sim, err := backtest.NewSimulator(btCfg, p.logger)
	if err != nil {
		return nil, err
	}
	replayCtx, endReplay := tracing.StartSubsegment(ctx, "replay")
	replay, err := sim.Run(replayCtx, recs, backtest.OutcomesFromBatch(batch, p.cfg.Model.OULine))
	endReplay(err)
	if err != nil {
		return nil, fmt.Errorf("bankroll replay failed: %w", err)
	}
	report.Simulation = replay

	var mc backtest.MonteCarloResult
	if btCfg.MonteCarloIterations > 0 && len(recs) > 0 {
		mc, err = backtest.RunMonteCarlo(ctx, recs, backtest.MonteCarloConfigFrom(btCfg, p.cfg.Bankroll.MonteCarloWorkers))
		if err != nil {
			return nil, fmt.Errorf("monte carlo failed: %w", err)
		}
	}
	assessment := backtest.Assess(eval, replay.Metrics, mc, report.CLV)
	report.Assessment = &assessment

	p.logger.Info("\n" + backtest.GenerateConsoleReport(report))

	result := &RunResult{Report: report, Summary: report.Summary()}
	if result.Files, err = p.writeReport(p.outputDir(opts), report); err != nil {
		return nil, err
	}

	if p.runs != nil {
		record := &repository.RunRecord{
			Summary:         *result.Summary,
			Recommendations: recs,
			Ledger:          replay.State.Ledger,
		}
		if err := p.runs.SaveRun(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to persist run: %w", err)
		}
		result.Persisted = true
		p.audit.LogRunPersisted(record.Summary.ID.String(), len(recs), len(replay.State.Ledger))
	}
	return result, nil
}

func (p *Pipeline) outputDir(opts RunOptions) string {
	if opts.OutputDir != "" {
		return opts.OutputDir
	}
	return p.cfg.Output.Dir
}

// writeReport writes the CSV set (which carries summary.json) or the summary alone.
func (p *Pipeline) writeReport(dir string, report backtest.Report) ([]string, error) {
	switch {
	case dir == "":
		return nil, nil
	case p.cfg.Output.WriteCSV:
		files, err := backtest.WriteReportFiles(dir, report)
		if err != nil {
			return files, fmt.Errorf("failed to write reports: %w", err)
		}
		p.logger.WithFields(logrus.Fields{"dir": dir, "files": len(files)}).Info("Reports written")
		return files, nil
	case p.cfg.Output.WriteJSON:
		return p.writeSummary(dir, report)
	}
	return nil, nil
}

func (p *Pipeline) writeEvaluation(dir string, report backtest.Report) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	var files []string
	if p.cfg.Output.WriteCSV {
		path := filepath.Join(dir, backtest.EvaluationFile)
		if err := backtest.WriteEvaluationFile(path, report.Evaluation); err != nil {
			return nil, fmt.Errorf("failed to write evaluation: %w", err)
		}
		files = append(files, path)
	}
	if p.cfg.Output.WriteJSON {
		summary, err := p.writeSummary(dir, report)
		if err != nil {
			return files, err
		}
		files = append(files, summary...)
	}
	return files, nil
}

func (p *Pipeline) writeSummary(dir string, report backtest.Report) ([]string, error) {
	path := filepath.Join(dir, backtest.SummaryFile)
	if err := backtest.ExportToJSON(report, path); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}
	return []string{path}, nil
}
