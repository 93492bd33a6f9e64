package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/totals-edge/internal/models"
)

const logLossEps = 1e-15

// BrierScore is the mean squared difference between p and the 0/1 outcome.
func BrierScore(y []int, p []float64) (float64, error) {
	if err := checkScoreInputs(y, p); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range y {
		d := p[i] - float64(y[i])
		sum += d * d
	}
	return sum / float64(len(y)), nil
}

// LogLoss is the mean negative log-likelihood of y under p, with p clipped away from 0 and 1.
func LogLoss(y []int, p []float64) (float64, error) {
	if err := checkScoreInputs(y, p); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range y {
		q := math.Min(math.Max(p[i], logLossEps), 1-logLossEps)
		if y[i] == 1 {
			sum -= math.Log(q)
		} else {
			sum -= math.Log(1 - q)
		}
	}
	return sum / float64(len(y)), nil
}

func checkScoreInputs(y []int, p []float64) error {
	if len(y) == 0 {
		return models.ErrEmptyDataset
	}
	if len(y) != len(p) {
		return fmt.Errorf("%w: %d outcomes vs %d probabilities", models.ErrLengthMismatch, len(y), len(p))
	}
	return nil
}

// meanStd returns the mean and population standard deviation
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(values, nil)
}
