package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/yourusername/totals-edge/internal/models"
)

// maxHalvings bounds the step-halving line search of each Newton iteration.
const maxHalvings = 30

// LogisticParams configures the meta-learner
type LogisticParams struct {
	// C is the inverse L2 strength; the intercept is not penalised.
	C         float64 `json:"c"`
	MaxIter   int     `json:"max_iter"`
	Tolerance float64 `json:"tolerance"`
}

// DefaultLogisticParams returns C=1 with 100 Newton iterations
func DefaultLogisticParams() LogisticParams {
	return LogisticParams{C: 1.0, MaxIter: 100, Tolerance: 1e-8}
}

// LogisticRegression is an L2-regularised binary classifier fitted by Newton-Raphson (IRLS).
type LogisticRegression struct {
	params    LogisticParams
	intercept float64
	weights   []float64
	iters     int
	fitted    bool
}

// NewLogisticRegression creates an unfitted classifier
func NewLogisticRegression(params LogisticParams) *LogisticRegression {
	if params.C <= 0 {
		params.C = 1.0
	}
	if params.MaxIter <= 0 {
		params.MaxIter = 100
	}
	if params.Tolerance <= 0 {
		params.Tolerance = 1e-8
	}
	return &LogisticRegression{params: params}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

// Fit trains on X against binary labels y (0/1).
func (lr *LogisticRegression) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return models.ErrEmptyDataset
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows vs %d labels", models.ErrLengthMismatch, len(X), len(y))
	}
	d := len(X[0])
	clean, err := sanitizeMatrix(X, d)
	if err != nil {
		return err
	}

	positives := 0
	for _, v := range y {
		if v == 1 {
			positives++
		}
	}
	// A single-class sample has no finite optimum for the free intercept.
	if positives == 0 || positives == len(y) {
		rate := math.Min(math.Max(float64(positives)/float64(len(y)), 0.01), 0.99)
		lr.intercept = logit(rate)
		lr.weights = make([]float64, d)
		lr.iters = 0
		lr.fitted = true
		return nil
	}

	// beta[0] is the intercept, beta[1:] the weights.
	k := d + 1
	beta := make([]float64, k)
	beta[0] = logit(float64(positives) / float64(len(y)))
	penalty := 1 / lr.params.C

	iters := 0
	for iters < lr.params.MaxIter {
		iters++
		grad := make([]float64, k)
		hess := make([][]float64, k)
		for i := range hess {
			hess[i] = make([]float64, k)
		}

		for i, x := range clean {
			z := beta[0]
			for j, v := range x {
				z += beta[j+1] * v
			}
			p := sigmoid(z)
			r := p - float64(y[i])
			w := p * (1 - p)

			grad[0] += r
			hess[0][0] += w
			for a := 0; a < d; a++ {
				grad[a+1] += r * x[a]
				hess[0][a+1] += w * x[a]
				for b := a; b < d; b++ {
					hess[a+1][b+1] += w * x[a] * x[b]
				}
			}
		}
		for a := 1; a < k; a++ {
			grad[a] += penalty * beta[a]
			hess[a][a] += penalty
			for b := 0; b < a; b++ {
				hess[a][b] = hess[b][a]
			}
		}

		step, err := solveLinear(hess, grad)
		if err != nil {
			break
		}

		next, ok := lr.lineSearch(clean, y, beta, step)
		if !ok {
			break
		}

		maxStep := 0.0
		for j := range beta {
			maxStep = math.Max(maxStep, math.Abs(next[j]-beta[j]))
		}
		copy(beta, next)
		if maxStep < lr.params.Tolerance {
			break
		}
	}

	for _, v := range beta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("logistic regression diverged")
		}
	}

	lr.intercept = beta[0]
	lr.weights = beta[1:]
	lr.iters = iters
	lr.fitted = true
	return nil
}

// lineSearch halves the Newton step until the penalised loss stops increasing.
// It reports false when no halving lowers the loss.
func (lr *LogisticRegression) lineSearch(X [][]float64, y []int, beta, step []float64) ([]float64, bool) {
	current := lr.objective(X, y, beta)
	next := make([]float64, len(beta))
	scale := 1.0
	for h := 0; h < maxHalvings; h++ {
		for j := range beta {
			next[j] = beta[j] - scale*step[j]
		}
		if lr.objective(X, y, next) <= current {
			return next, true
		}
		scale /= 2
	}
	return nil, false
}

// objective is the negative log-likelihood plus the L2 penalty on the weights.
func (lr *LogisticRegression) objective(X [][]float64, y []int, beta []float64) float64 {
	loss := 0.0
	for i, x := range X {
		z := beta[0]
		for j, v := range x {
			z += beta[j+1] * v
		}
		// log(1+exp(z)) - y*z, evaluated without overflow
		if z > 0 {
			loss += z + math.Log1p(math.Exp(-z))
		} else {
			loss += math.Log1p(math.Exp(z))
		}
		loss -= float64(y[i]) * z
	}
	reg := 0.0
	for _, w := range beta[1:] {
		reg += w * w
	}
	return loss + reg/(2*lr.params.C)
}

// PredictProba returns P(y=1) per row
func (lr *LogisticRegression) PredictProba(X [][]float64) ([]float64, error) {
	if !lr.fitted {
		return nil, models.ErrModelNotReady
	}
	clean, err := sanitizeMatrix(X, len(lr.weights))
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(clean))
	for i, x := range clean {
		z := lr.intercept
		for j, v := range x {
			z += lr.weights[j] * v
		}
		out[i] = sigmoid(z)
	}
	return out, nil
}

// Coefficients returns the intercept and a copy of the weights
func (lr *LogisticRegression) Coefficients() (float64, []float64) {
	w := make([]float64, len(lr.weights))
	copy(w, lr.weights)
	return lr.intercept, w
}

// Iterations returns the Newton steps taken by the last fit
func (lr *LogisticRegression) Iterations() int {
	return lr.iters
}

// solveLinear solves A x = b by LU decomposition. An ill-conditioned A still yields a
// solution; only an exactly singular one is an error.
func solveLinear(A [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	a := mat.NewDense(n, n, nil)
	for i, row := range A {
		a.SetRow(i, row)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(n, append([]float64(nil), b...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("singular system: %w", err)
		}
	}
	out := mat.Col(nil, 0, &x)
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("singular system")
		}
	}
	return out, nil
}
