package poisson

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poissonCDF(lambda float64, k int) float64 {
	sum := 0.0
	term := math.Exp(-lambda)
	for i := 0; i <= k; i++ {
		if i > 0 {
			term *= lambda / float64(i)
		}
		sum += term
	}
	return sum
}

func TestOverProbabilityReferenceScenario(t *testing.T) {
	p := OverProbability(1.5, 1.2, 2.5, 10)

	assert.InDelta(t, 0.506, p, 0.01)
	assert.InDelta(t, 1-poissonCDF(2.7, 2), p, 1e-9)
}

func TestOverUnderComplement(t *testing.T) {
	cases := []struct {
		name    string
		a, b    float64
		line    float64
		maxGoal int
	}{
		{"typical", 1.4, 1.1, 2.5, 10},
		{"low line", 0.8, 0.6, 0.5, 10},
		{"high line", 2.9, 2.2, 5.5, 10},
		{"integer line", 1.3, 1.3, 3, 8},
		{"small grid", 3.5, 3.1, 2.5, 3},
		{"zero rates", 0, 0, 2.5, 10},
		{"large rates", 250, 180, 2.5, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGrid(tc.line, tc.maxGoal)
			over := g.OverProbability(tc.a, tc.b)
			under := g.UnderProbability(tc.a, tc.b)

			assert.GreaterOrEqual(t, over, 0.0)
			assert.LessOrEqual(t, over, 1.0)
			assert.False(t, math.IsNaN(over))
			assert.InDelta(t, 1.0, over+under, 1e-9)
		})
	}
}

func TestOverProbabilityNegativeLine(t *testing.T) {
	g := NewGrid(-0.5, 10)

	assert.Equal(t, 1.0, g.OverProbability(1.2, 1.0))
	assert.Equal(t, 0.0, g.UnderProbability(1.2, 1.0))
}

func TestOverProbabilityZeroRateUsesFloor(t *testing.T) {
	zero := OverProbability(0, 0, 2.5, 10)
	floored := OverProbability(MinRate, MinRate, 2.5, 10)

	assert.Equal(t, floored, zero)
	assert.Less(t, zero, 1e-5)
}

func TestOverProbabilityMonotonicInRate(t *testing.T) {
	g := NewGrid(2.5, 10)
	prev := -1.0
	for lambda := 0.2; lambda <= 4.0; lambda += 0.2 {
		p := g.OverProbability(lambda, 1.0)
		assert.Greater(t, p, prev)
		prev = p
	}
}

func TestTruncatedMassGoesOver(t *testing.T) {
	// A one-goal grid has no (2,0) or (0,2) cell, so over absorbs their mass.
	small := NewGrid(2.5, 1)
	full := NewGrid(2.5, 10)

	assert.Greater(t, small.OverProbability(1.5, 1.2), full.OverProbability(1.5, 1.2))
}

func TestPMFMatchesClosedForm(t *testing.T) {
	pmf := PMF(2, 3)
	want := []float64{1, 2, 2, 4.0 / 3}
	for k := range want {
		assert.InDelta(t, want[k]*math.Exp(-2), pmf[k], 1e-12, "k=%d", k)
	}
}

func TestPMFLargeRateIsFinite(t *testing.T) {
	pmf := PMF(1e4, 10)
	for k, p := range pmf {
		assert.False(t, math.IsNaN(p), "k=%d", k)
		assert.False(t, math.IsInf(p, 0), "k=%d", k)
	}
	assert.Equal(t, 1.0, OverProbability(math.Inf(1), 1, 2.5, 10))
}

func TestOverProbabilitiesPreservesOrder(t *testing.T) {
	g := NewGrid(2.5, 10)
	n := 300
	as := make([]float64, n)
	bs := make([]float64, n)
	for i := range as {
		as[i] = 0.5 + float64(i)*0.01
		bs[i] = 1.0 + float64(n-i)*0.005
	}

	got, err := g.OverProbabilities(context.Background(), as, bs, 4)
	require.NoError(t, err)
	require.Len(t, got, n)
	for i := range as {
		assert.Equal(t, g.OverProbability(as[i], bs[i]), got[i])
	}
}

func TestOverProbabilitiesLengthMismatch(t *testing.T) {
	_, err := NewGrid(2.5, 10).OverProbabilities(context.Background(), []float64{1}, nil, 1)
	assert.Error(t, err)
}
