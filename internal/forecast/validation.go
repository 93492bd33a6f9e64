package forecast

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/metrics"
	"github.com/yourusername/totals-edge/internal/models"
)

// Fold is one forward-chaining split over a chronologically ordered dataset.
// Intervals are half-open: train [0, TrainEnd), test [TestStart, TestEnd).
type Fold struct {
	Index     int
	TrainEnd  int
	TestStart int
	TestEnd   int
}

// TimeSeriesSplit builds k expanding-window folds over n rows.
// Each test block has n/(k+1) rows; fold i trains on everything before its test block.
func TimeSeriesSplit(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: need at least 2 folds, got %d", models.ErrInvalidFoldCount, k)
	}
	if n < k+1 {
		return nil, fmt.Errorf("%w: %d folds need at least %d rows, got %d", models.ErrInvalidFoldCount, k, k+1, n)
	}

	testSize := n / (k + 1)
	folds := make([]Fold, 0, k)
	for i := 0; i < k; i++ {
		testStart := n - (k-i)*testSize
		folds = append(folds, Fold{
			Index:     i + 1,
			TrainEnd:  testStart,
			TestStart: testStart,
			TestEnd:   testStart + testSize,
		})
	}
	if err := validateFolds(folds, n); err != nil {
		return nil, err
	}
	return folds, nil
}

// validateFolds checks that no fold trains on or past its own test block.
func validateFolds(folds []Fold, n int) error {
	for i, f := range folds {
		if f.TrainEnd <= 0 {
			return fmt.Errorf("fold %d: empty training window", f.Index)
		}
		if f.TrainEnd > f.TestStart {
			return fmt.Errorf("fold %d: training window overlaps test window", f.Index)
		}
		if f.TestEnd > n || f.TestStart >= f.TestEnd {
			return fmt.Errorf("fold %d: invalid test window [%d, %d)", f.Index, f.TestStart, f.TestEnd)
		}
		if i > 0 && f.TestStart < folds[i-1].TestEnd {
			return fmt.Errorf("fold %d: test window overlaps fold %d", f.Index, folds[i-1].Index)
		}
	}
	return nil
}

// EnsembleFactory builds a fresh ensemble for each fold
type EnsembleFactory func() *Ensemble

// Evaluator scores the full stack out of sample with forward-chaining folds.
type Evaluator struct {
	folds   int
	workers int
	factory EnsembleFactory
	logger  *logger.ModelLogger
}

// NewEvaluator creates an evaluator. workers bounds the folds fitted concurrently.
func NewEvaluator(folds, workers int, factory EnsembleFactory, log *logrus.Logger) (*Evaluator, error) {
	if factory == nil {
		return nil, fmt.Errorf("ensemble factory is required")
	}
	if folds < 2 {
		return nil, fmt.Errorf("%w: need at least 2 folds, got %d", models.ErrInvalidFoldCount, folds)
	}
	if workers <= 0 {
		workers = 1
	}
	return &Evaluator{
		folds:   folds,
		workers: workers,
		factory: factory,
		logger:  logger.NewModelLogger(log),
	}, nil
}

// Evaluate refits the ensemble on each training prefix and scores the following test block.
// Only resolved matches take part; their order is taken as chronological.
func (ev *Evaluator) Evaluate(ctx context.Context, batch models.Batch) (*models.Evaluation, error) {
	data := batch.Resolved()
	folds, err := TimeSeriesSplit(data.Len(), ev.folds)
	if err != nil {
		return nil, err
	}

	results := make([]models.FoldMetrics, len(folds))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(ev.workers)
	for i, f := range folds {
		i, f := i, f
		eg.Go(func() error {
			fm, err := ev.scoreFold(ctx, data, f)
			if err != nil {
				return fmt.Errorf("fold %d: %w", f.Index, err)
			}
			results[i] = fm
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	briers := make([]float64, len(results))
	losses := make([]float64, len(results))
	for i, fm := range results {
		briers[i] = fm.Brier
		losses[i] = fm.LogLoss
		ev.logger.LogFold(fm.Fold, len(results), fm.TrainSize, fm.TestSize, fm.Brier, fm.LogLoss)
		metrics.RecordFold(fm.Fold, fm.Brier, fm.LogLoss)
	}

	out := &models.Evaluation{Folds: results}
	out.MeanBrier, out.StdBrier = meanStd(briers)
	out.MeanLogLoss, out.StdLogLoss = meanStd(losses)
	metrics.UpdateMeanBrier(out.MeanBrier)
	ev.logger.LogEvaluationSummary(len(results), out.MeanBrier, out.StdBrier, out.MeanLogLoss, out.StdLogLoss)
	return out, nil
}

func (ev *Evaluator) scoreFold(ctx context.Context, data models.Batch, f Fold) (models.FoldMetrics, error) {
	if err := ctx.Err(); err != nil {
		return models.FoldMetrics{}, err
	}
	train := data.Slice(0, f.TrainEnd)
	test := data.Slice(f.TestStart, f.TestEnd)

	ens := ev.factory()
	if err := ens.Fit(ctx, train); err != nil {
		return models.FoldMetrics{}, err
	}
	preds, err := ens.PredictProba(ctx, test)
	if err != nil {
		return models.FoldMetrics{}, err
	}

	line := ens.Config().Line
	y := make([]int, test.Len())
	p := make([]float64, test.Len())
	for i := range test.Matches {
		y[i], _ = test.Matches[i].OutcomeOver(line)
		p[i] = preds[i].ProbOver
	}
	brier, err := BrierScore(y, p)
	if err != nil {
		return models.FoldMetrics{}, err
	}
	logLoss, err := LogLoss(y, p)
	if err != nil {
		return models.FoldMetrics{}, err
	}
	return models.FoldMetrics{
		Fold:      f.Index,
		TrainSize: train.Len(),
		TestSize:  test.Len(),
		Brier:     brier,
		LogLoss:   logLoss,
	}, nil
}
