// Package forecast implements the three-stage over/under ensemble: base count
// regressors, a logistic meta-learner over Poisson-grid probabilities, and an
// isotonic calibrator, plus forward-chaining cross-validation.
package forecast

import (
	"fmt"
	"math"
)

// Regressor maps feature vectors to a real-valued target.
// Fits must be deterministic for identical data and configuration.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
	FeatureImportances() []float64
}

// RegressorFactory builds a fresh, unfitted regressor
type RegressorFactory func() Regressor

// sanitizeMatrix copies X replacing non-finite values with 0 and checks the row width.
func sanitizeMatrix(X [][]float64, width int) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if width >= 0 && len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
		clean := make([]float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				clean[j] = v
			}
		}
		out[i] = clean
	}
	return out, nil
}
