package forecast

import (
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/totals-edge/internal/models"
)

// Isotonic is a non-decreasing piecewise-linear calibrator fitted by pool-adjacent-violators.
// Inputs outside the fitted range are clipped to the end knots.
type Isotonic struct {
	xs     []float64
	ys     []float64
	fitted bool
}

// NewIsotonic creates an unfitted calibrator
func NewIsotonic() *Isotonic {
	return &Isotonic{}
}

// Fit learns the mapping x -> E[y | x] under a monotone non-decreasing constraint.
func (iso *Isotonic) Fit(x []float64, y []int) error {
	if len(x) == 0 {
		return models.ErrEmptyDataset
	}
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d inputs vs %d labels", models.ErrLengthMismatch, len(x), len(y))
	}

	order := make([]int, 0, len(x))
	for i, v := range x {
		if !math.IsNaN(v) {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return models.ErrEmptyDataset
	}
	sort.SliceStable(order, func(a, b int) bool { return x[order[a]] < x[order[b]] })

	// Collapse tied inputs into one weighted point.
	var ux, uy, uw []float64
	for _, idx := range order {
		v, target := x[idx], float64(y[idx])
		last := len(ux) - 1
		if last >= 0 && ux[last] == v {
			uy[last] += target
			uw[last]++
			continue
		}
		ux = append(ux, v)
		uy = append(uy, target)
		uw = append(uw, 1)
	}
	for i := range uy {
		uy[i] /= uw[i]
	}

	fittedY := poolAdjacentViolators(uy, uw)

	// Drop interior points of flat runs; interpolation is unchanged.
	xs := []float64{ux[0]}
	ys := []float64{fittedY[0]}
	for i := 1; i < len(ux); i++ {
		if i < len(ux)-1 && fittedY[i] == fittedY[i-1] && fittedY[i] == fittedY[i+1] {
			continue
		}
		xs = append(xs, ux[i])
		ys = append(ys, fittedY[i])
	}

	iso.xs = xs
	iso.ys = ys
	iso.fitted = true
	return nil
}

// poolAdjacentViolators returns the weighted least-squares non-decreasing fit of y.
func poolAdjacentViolators(y, w []float64) []float64 {
	type block struct {
		value  float64
		weight float64
		count  int
	}
	blocks := make([]block, 0, len(y))
	for i := range y {
		blocks = append(blocks, block{value: y[i], weight: w[i], count: 1})
		for len(blocks) > 1 {
			last := len(blocks) - 1
			if blocks[last-1].value <= blocks[last].value {
				break
			}
			a, b := blocks[last-1], blocks[last]
			total := a.weight + b.weight
			blocks[last-1] = block{
				value:  (a.value*a.weight + b.value*b.weight) / total,
				weight: total,
				count:  a.count + b.count,
			}
			blocks = blocks[:last]
		}
	}

	out := make([]float64, 0, len(y))
	for _, b := range blocks {
		for i := 0; i < b.count; i++ {
			out = append(out, b.value)
		}
	}
	return out
}

// Predict maps raw scores through the fitted step-linear function
func (iso *Isotonic) Predict(x []float64) ([]float64, error) {
	if !iso.fitted {
		return nil, models.ErrModelNotReady
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = iso.at(v)
	}
	return out, nil
}

func (iso *Isotonic) at(v float64) float64 {
	n := len(iso.xs)
	if math.IsNaN(v) || v <= iso.xs[0] {
		return iso.ys[0]
	}
	if v >= iso.xs[n-1] {
		return iso.ys[n-1]
	}
	hi := sort.SearchFloat64s(iso.xs, v)
	if iso.xs[hi] == v {
		return iso.ys[hi]
	}
	lo := hi - 1
	t := (v - iso.xs[lo]) / (iso.xs[hi] - iso.xs[lo])
	return iso.ys[lo] + t*(iso.ys[hi]-iso.ys[lo])
}

// Knots returns copies of the fitted breakpoints
func (iso *Isotonic) Knots() (xs, ys []float64) {
	xs = append([]float64(nil), iso.xs...)
	ys = append([]float64(nil), iso.ys...)
	return xs, ys
}
