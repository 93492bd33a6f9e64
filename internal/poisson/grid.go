// Package poisson converts pairs of expected counts into over/under probabilities
// using a bounded joint Poisson grid.
package poisson

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// MinRate floors expected counts so a zero rate never collapses the grid.
	MinRate = 0.01

	DefaultLine     = 2.5
	DefaultMaxCount = 10
)

// Grid evaluates P(A + B > Line) for independent Poisson A and B truncated at MaxCount per side.
// Mass beyond MaxCount is never summed, so it lands on the over side.
type Grid struct {
	Line     float64
	MaxCount int
}

// NewGrid creates a grid, falling back to the default bound for non-positive maxCount
func NewGrid(line float64, maxCount int) Grid {
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}
	return Grid{Line: line, MaxCount: maxCount}
}

// OverProbability is the package-level form of Grid.OverProbability.
func OverProbability(lambdaA, lambdaB, line float64, maxCount int) float64 {
	return NewGrid(line, maxCount).OverProbability(lambdaA, lambdaB)
}

// OverProbability returns 1 minus the explicit under mass.
func (g Grid) OverProbability(lambdaA, lambdaB float64) float64 {
	if g.Line < 0 {
		return 1
	}
	return clamp01(1 - g.UnderProbability(lambdaA, lambdaB))
}

// UnderProbability sums the joint mass of all grid cells with i+j <= Line.
func (g Grid) UnderProbability(lambdaA, lambdaB float64) float64 {
	if g.Line < 0 {
		return 0
	}
	pa := PMF(lambdaA, g.MaxCount)
	pb := PMF(lambdaB, g.MaxCount)

	under := 0.0
	for i := 0; i <= g.MaxCount; i++ {
		limit := int(math.Floor(g.Line)) - i
		if limit < 0 {
			break
		}
		if limit > g.MaxCount {
			limit = g.MaxCount
		}
		for j := 0; j <= limit; j++ {
			under += pa[i] * pb[j]
		}
	}
	return clamp01(under)
}

// PMF returns P(X=k) for k in 0..maxCount with X ~ Poisson(max(lambda, MinRate)).
// Evaluated in log space so large rates do not overflow.
func PMF(lambda float64, maxCount int) []float64 {
	lambda = floorRate(lambda)
	out := make([]float64, maxCount+1)
	if math.IsInf(lambda, 1) {
		return out
	}
	dist := distuv.Poisson{Lambda: lambda}
	for k := 0; k <= maxCount; k++ {
		out[k] = math.Exp(dist.LogProb(float64(k)))
	}
	return out
}

// OverProbabilities evaluates the grid for each (lambdasA[i], lambdasB[i]) pair.
// Work is spread over at most workers goroutines; output order follows input order.
func (g Grid) OverProbabilities(ctx context.Context, lambdasA, lambdasB []float64, workers int) ([]float64, error) {
	if len(lambdasA) != len(lambdasB) {
		return nil, fmt.Errorf("grid batch: %d home rates vs %d away rates", len(lambdasA), len(lambdasB))
	}
	out := make([]float64, len(lambdasA))
	if workers <= 1 || len(lambdasA) < 2*workers {
		for i := range lambdasA {
			out[i] = g.OverProbability(lambdasA[i], lambdasB[i])
		}
		return out, nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	chunk := (len(lambdasA) + workers - 1) / workers
	for start := 0; start < len(lambdasA); start += chunk {
		start, end := start, min(start+chunk, len(lambdasA))
		eg.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				out[i] = g.OverProbability(lambdasA[i], lambdasB[i])
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func floorRate(lambda float64) float64 {
	if math.IsNaN(lambda) || lambda < MinRate {
		return MinRate
	}
	return lambda
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
