package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImpliedProbability(t *testing.T) {
	tests := []struct {
		odds float64
		want float64
	}{
		{2.0, 0.5},
		{1.25, 0.8},
		{1.0, 1.0},
		{0.5, 1.0},
		{math.NaN(), 1.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ImpliedProbability(tt.odds), 1e-12, "odds %v", tt.odds)
	}
}

func TestExpectedValueAndKellyScenario(t *testing.T) {
	assert.InDelta(t, 0.44, ExpectedValue(0.80, 1.80), 1e-9)
	assert.InDelta(t, 0.55, KellyStake(0.80, 1.80), 1e-9)
}

func TestKellyStakeZeroWithoutEdge(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		odds float64
	}{
		{"fair price", 0.5, 2.0},
		{"negative edge", 0.4, 2.0},
		{"odds at one", 0.9, 1.0},
		{"odds below one", 0.9, 0.8},
		{"nan odds", 0.9, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, KellyStake(tt.p, tt.odds))
		})
	}
}

func TestKellyStakeIncreasingInProbability(t *testing.T) {
	odds := 1.9
	prev := KellyStake(1/odds+0.001, odds)
	assert.Greater(t, prev, 0.0)
	for p := 1/odds + 0.01; p <= 1.0; p += 0.01 {
		cur := KellyStake(p, odds)
		assert.Greater(t, cur, prev, "p=%v", p)
		prev = cur
	}
}

func TestFractionalStake(t *testing.T) {
	assert.InDelta(t, 0.03, FractionalStake(0.55, 0.25, 0.03), 1e-12)
	assert.InDelta(t, 0.01, FractionalStake(0.04, 0.25, 0.03), 1e-12)
	assert.Equal(t, 0.0, FractionalStake(0, 0.25, 0.03))
}

func TestClosingLineValue(t *testing.T) {
	assert.InDelta(t, 0.25, ClosingLineValue(0.8, 0.55), 1e-12)
	assert.InDelta(t, -0.05, ClosingLineValue(0.5, 0.55), 1e-12)
}

func TestChooseOdds(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		open   float64
		close  float64
		want   float64
		usable bool
	}{
		{"closing preferred", 1.9, 2.1, 2.1, true},
		{"opening fallback", 1.9, nan, 1.9, true},
		{"both missing", nan, nan, nan, false},
		{"closing not tradable", 1.9, 1.0, 1.0, false},
		{"opening not tradable", 0.9, nan, 0.9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := chooseOdds(tt.open, tt.close)
			assert.Equal(t, tt.usable, ok)
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
