// Package logger provides model-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// ModelLogger provides dedicated logging for ensemble fitting and evaluation.
type ModelLogger struct {
	*logrus.Entry
}

// NewModelLogger creates a new model logger.
func NewModelLogger(baseLogger *logrus.Logger) *ModelLogger {
	return &ModelLogger{
		Entry: OrDiscard(baseLogger).WithField("component", "model"),
	}
}

// LogStageFit logs a completed ensemble stage.
func (ml *ModelLogger) LogStageFit(stage string, samples, features int, durationMs float64) {
	ml.WithFields(logrus.Fields{
		"stage":       stage,
		"samples":     samples,
		"features":    features,
		"duration_ms": durationMs,
	}).Info("Ensemble stage fitted")
}

// LogFold logs the scores of one cross-validation fold.
func (ml *ModelLogger) LogFold(fold, folds, trainSize, testSize int, brier, logLoss float64) {
	ml.WithFields(logrus.Fields{
		"fold":        fold,
		"folds":       folds,
		"train_size":  trainSize,
		"test_size":   testSize,
		"brier_score": brier,
		"log_loss":    logLoss,
	}).Info("Fold evaluated")
}

// LogEvaluationSummary logs the fold averages.
func (ml *ModelLogger) LogEvaluationSummary(folds int, meanBrier, stdBrier, meanLogLoss, stdLogLoss float64) {
	ml.WithFields(logrus.Fields{
		"folds":        folds,
		"brier_score":  meanBrier,
		"brier_std":    stdBrier,
		"log_loss":     meanLogLoss,
		"log_loss_std": stdLogLoss,
	}).Info("Time-series evaluation completed")
}

// LogFeatureImportance logs the leading features.
func (ml *ModelLogger) LogFeatureImportance(top map[string]float64) {
	ml.WithField("top_features", top).Info("Feature importance")
}
