package forecast

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/totals-edge/internal/models"
)

func TestLogisticRegressionRecoversDirection(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	X := make([][]float64, 400)
	y := make([]int, 400)
	for i := range X {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		X[i] = []float64{a, b}
		if rng.Float64() < sigmoid(1.5*a-0.8*b+0.3) {
			y[i] = 1
		}
	}

	lr := NewLogisticRegression(DefaultLogisticParams())
	require.NoError(t, lr.Fit(X, y))

	intercept, w := lr.Coefficients()
	assert.Greater(t, w[0], 0.8)
	assert.Less(t, w[1], -0.3)
	assert.InDelta(t, 0.3, intercept, 0.4)
	assert.Less(t, lr.Iterations(), 100)

	p, err := lr.PredictProba([][]float64{{-2, 0}, {0, 0}, {2, 0}})
	require.NoError(t, err)
	assert.Less(t, p[0], p[1])
	assert.Less(t, p[1], p[2])
}

func TestLogisticRegressionSeparableStaysFinite(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {4}, {5}}
	y := []int{0, 0, 0, 1, 1, 1}

	lr := NewLogisticRegression(DefaultLogisticParams())
	require.NoError(t, lr.Fit(X, y))

	p, err := lr.PredictProba(X)
	require.NoError(t, err)
	for _, v := range p {
		assert.False(t, math.IsNaN(v))
	}
	assert.Less(t, p[0], 0.5)
	assert.Greater(t, p[5], 0.5)
}

func TestLogisticRegressionSingleClass(t *testing.T) {
	X := [][]float64{{0.1}, {0.4}, {0.9}}

	lr := NewLogisticRegression(DefaultLogisticParams())
	require.NoError(t, lr.Fit(X, []int{0, 0, 0}))
	p, err := lr.PredictProba(X)
	require.NoError(t, err)
	for _, v := range p {
		assert.InDelta(t, 0.01, v, 1e-12)
	}

	require.NoError(t, lr.Fit(X, []int{1, 1, 1}))
	p, err = lr.PredictProba(X)
	require.NoError(t, err)
	assert.InDelta(t, 0.99, p[0], 1e-12)
}

func TestLogisticRegressionErrors(t *testing.T) {
	lr := NewLogisticRegression(LogisticParams{})

	_, err := lr.PredictProba([][]float64{{1}})
	assert.ErrorIs(t, err, models.ErrModelNotReady)
	assert.ErrorIs(t, lr.Fit(nil, nil), models.ErrEmptyDataset)
	assert.ErrorIs(t, lr.Fit([][]float64{{1}}, []int{0, 1}), models.ErrLengthMismatch)
}

func TestSolveLinear(t *testing.T) {
	A := [][]float64{{0, 2, 1}, {1, 1, 0}, {3, 0, 1}}
	b := []float64{7, 3, 8}

	x, err := solveLinear(A, b)
	require.NoError(t, err)
	// 2y+z=7, x+y=3, 3x+z=8  ->  x=1.4, y=1.6, z=3.8
	assert.InDelta(t, 1.4, x[0], 1e-12)
	assert.InDelta(t, 1.6, x[1], 1e-12)
	assert.InDelta(t, 3.8, x[2], 1e-12)
	assert.Equal(t, []float64{7, 3, 8}, b)

	_, err = solveLinear([][]float64{{1, 2}, {2, 4}}, []float64{1, 2})
	assert.Error(t, err)
}

func TestLineSearchRejectsUphillStep(t *testing.T) {
	lr := NewLogisticRegression(DefaultLogisticParams())
	// Balanced labels on symmetric inputs: beta = 0 is the optimum.
	X := [][]float64{{-1}, {1}, {-1}, {1}}
	y := []int{0, 0, 1, 1}
	beta := []float64{0, 0}

	next, ok := lr.lineSearch(X, y, beta, []float64{0, 1e9})
	assert.False(t, ok)
	assert.Nil(t, next)
	assert.Equal(t, []float64{0, 0}, beta)

	next, ok = lr.lineSearch(X, y, []float64{0, 2}, []float64{0, 2})
	require.True(t, ok)
	assert.InDelta(t, 0, next[1], 1e-12)
}

func TestFitStopsAtOptimum(t *testing.T) {
	lr := NewLogisticRegression(DefaultLogisticParams())
	X := [][]float64{{-1}, {1}, {-1}, {1}}
	y := []int{0, 0, 1, 1}

	require.NoError(t, lr.Fit(X, y))
	intercept, w := lr.Coefficients()
	assert.InDelta(t, 0, intercept, 1e-9)
	assert.InDelta(t, 0, w[0], 1e-9)
	assert.LessOrEqual(t, lr.objective(X, y, []float64{intercept, w[0]}), lr.objective(X, y, []float64{0, 0}))
}
