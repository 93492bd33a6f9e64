package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/totals-edge/internal/backtest"
	"github.com/yourusername/totals-edge/internal/config"
	"github.com/yourusername/totals-edge/internal/datasource"
	"github.com/yourusername/totals-edge/internal/models"
	"github.com/yourusername/totals-edge/internal/repository"
)

type fakeRunRepository struct {
	mu    sync.Mutex
	saved []*repository.RunRecord
	err   error
}

func (f *fakeRunRepository) SaveRun(_ context.Context, run *repository.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, run)
	return nil
}

func (f *fakeRunRepository) GetByID(context.Context, uuid.UUID) (*models.RunSummary, error) {
	return nil, models.ErrNotFound
}

func (f *fakeRunRepository) GetLatest(context.Context, int) ([]*models.RunSummary, error) {
	return nil, nil
}

func (f *fakeRunRepository) GetRecommendations(context.Context, uuid.UUID) ([]models.BetRecommendation, error) {
	return nil, nil
}

func (f *fakeRunRepository) GetLedger(context.Context, uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeRunRepository) Delete(context.Context, uuid.UUID) error {
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	runs []*models.RunSummary
}

func (n *recordingNotifier) NotifyRun(s *models.RunSummary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.runs = append(n.runs, s)
}

type failingProvider struct{}

func (failingProvider) NewSource(string) (datasource.Source, error) {
	return nil, errors.New("no such source")
}

// testConfig keeps the synthetic run small and relaxes the gates enough that bets can pass.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg.Data.Path = ""
	cfg.Data.SyntheticMatches = 240
	cfg.Data.SyntheticSeed = 11
	cfg.Model.TimeSeriesSplits = 3
	cfg.Model.Booster.NEstimators = 15
	cfg.Strategy.MinProbThreshold = 0.55
	cfg.Strategy.MinEVThreshold = 0.0
	cfg.Strategy.DisagreementSkipThreshold = 0.35
	cfg.Bankroll.MonteCarloIterations = 50
	cfg.Bankroll.MonteCarloWorkers = 2
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func TestPipelineFullRun(t *testing.T) {
	cfg := testConfig(t)
	repo := &fakeRunRepository{}
	notifier := &recordingNotifier{}

	p, err := NewPipeline(cfg, nil, WithRunRepository(repo), WithNotifier(notifier))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	report := result.Report
	assert.Equal(t, 240, report.Matches)
	assert.Equal(t, "synthetic", report.DataSource)
	require.NotNil(t, report.Evaluation)
	assert.Len(t, report.Evaluation.Folds, 3)
	require.NotNil(t, report.Simulation)
	require.NotNil(t, report.Assessment)
	assert.NotEmpty(t, report.FeatureImportance)
	assert.LessOrEqual(t, len(report.Pairs), len(report.Recommendations)/2)

	candidates := 2 * report.Matches
	assert.Equal(t, candidates, len(report.Recommendations)+sum(report.Rejections))

	for _, name := range []string{backtest.RecommendationsFile, backtest.DoublesFile, backtest.LedgerFile, backtest.SummaryFile} {
		_, err := os.Stat(filepath.Join(cfg.Output.Dir, name))
		assert.NoError(t, err, name)
	}

	assert.True(t, result.Persisted)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, report.RunID, repo.saved[0].Summary.ID)
	assert.Len(t, repo.saved[0].Ledger, len(report.Simulation.State.Ledger))

	require.Len(t, notifier.runs, 1)
	assert.Equal(t, report.RunID, notifier.runs[0].ID)
	assert.Equal(t, report.Assessment.Verdict, notifier.runs[0].Verdict)
}

func TestPipelineEvaluateOnly(t *testing.T) {
	cfg := testConfig(t)
	repo := &fakeRunRepository{}

	p, err := NewPipeline(cfg, nil, WithRunRepository(repo))
	require.NoError(t, err)

	out := t.TempDir()
	result, err := p.Run(context.Background(), RunOptions{EvaluateOnly: true, OutputDir: out})
	require.NoError(t, err)

	assert.NotNil(t, result.Report.Evaluation)
	assert.Nil(t, result.Report.Simulation)
	assert.Empty(t, result.Report.Recommendations)
	assert.False(t, result.Persisted)
	assert.Empty(t, repo.saved)
	assert.ElementsMatch(t, []string{
		filepath.Join(out, backtest.EvaluationFile),
		filepath.Join(out, backtest.SummaryFile),
	}, result.Files)
}

func TestPipelineDeterministic(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Dir = ""

	run := func() *RunResult {
		p, err := NewPipeline(cfg, nil)
		require.NoError(t, err)
		r, err := p.Run(context.Background(), RunOptions{})
		require.NoError(t, err)
		return r
	}

	a, b := run(), run()
	assert.Equal(t, a.Report.Evaluation.MeanBrier, b.Report.Evaluation.MeanBrier)
	assert.Equal(t, len(a.Report.Recommendations), len(b.Report.Recommendations))
	assert.Equal(t, a.Report.Simulation.Metrics.FinalBankroll, b.Report.Simulation.Metrics.FinalBankroll)
	assert.Empty(t, a.Files)
}

func TestPipelineSourceFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	p, err := NewPipeline(testConfig(t), nil, WithSourceProvider(failingProvider{}), WithNotifier(notifier))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such source")
	assert.Empty(t, notifier.runs)
}

func TestPipelinePersistFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Dir = ""
	repo := &fakeRunRepository{err: errors.New("connection refused")}

	p, err := NewPipeline(cfg, nil, WithRunRepository(repo))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist run")
}

func TestPipelineCancelled(t *testing.T) {
	p, err := NewPipeline(testConfig(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx, RunOptions{})
	assert.Error(t, err)
}

func TestNewPipelineRequiresConfig(t *testing.T) {
	_, err := NewPipeline(nil, nil)
	assert.Error(t, err)
}

func TestConfigConverters(t *testing.T) {
	cfg := testConfig(t)

	fc := ForecastConfig(cfg)
	assert.Equal(t, 2.5, fc.Line)
	assert.Equal(t, 10, fc.MaxCount)
	assert.Equal(t, 15, fc.Booster.NEstimators)
	assert.Equal(t, cfg.Model.Meta.C, fc.Meta.C)
	assert.NoError(t, fc.Booster.Validate())

	gc := GatingConfig(cfg)
	assert.Equal(t, 0.55, gc.MinProb)
	assert.Equal(t, 0.35, gc.DisagreementCap)
	assert.Equal(t, cfg.Strategy.MaxStakePct, gc.MaxStake)
	assert.NoError(t, gc.Validate())

	bc := BacktestConfig(cfg)
	assert.Equal(t, 1000.0, bc.InitialBankroll)
	assert.Equal(t, 5, bc.StopLossConsecutive)
	assert.Equal(t, 50, bc.MonteCarloIterations)
	assert.NoError(t, bc.Validate())
}

func sum(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
