package stats_test

import (
	"math"
	"testing"

	"github.com/paveg/huntex/internal/stats"
	"github.com/stretchr/testify/assert"
)

func TestQuantile(t *testing.T) {
	values := []float64{7, 1, 3, 5}
	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{0.25, 2.5},
		{0.5, 4},
		{0.75, 5.5},
		{1, 7},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, stats.Quantile(values, tt.q), 1e-12, "q=%v", tt.q)
	}
	assert.Equal(t, []float64{7, 1, 3, 5}, values, "input must not be reordered")
	assert.True(t, math.IsNaN(stats.Quantile(nil, 0.5)))
	assert.InDelta(t, 42, stats.Quantile([]float64{42}, 0.3), 1e-12)
}

func TestMedianAndMean(t *testing.T) {
	assert.InDelta(t, 3, stats.Median([]float64{5, 1, 3}), 1e-12)
	assert.InDelta(t, 2.5, stats.Median([]float64{4, 1, 3, 2}), 1e-12)
	assert.InDelta(t, 2.5, stats.Mean([]float64{4, 1, 3, 2}), 1e-12)
	assert.True(t, math.IsNaN(stats.Mean(nil)))

	mean, std := stats.MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5, mean, 1e-12)
	assert.InDelta(t, 2, std, 1e-12)
}

func TestIQRBounds(t *testing.T) {
	lo, hi := stats.IQRBounds([]float64{1, 2, 3, 4, 5}, 1.5)
	// Q1=2, Q3=4, IQR=2
	assert.InDelta(t, -1, lo, 1e-12)
	assert.InDelta(t, 7, hi, 1e-12)

	lo, hi = stats.IQRBounds(nil, 5)
	assert.True(t, math.IsInf(lo, -1))
	assert.True(t, math.IsInf(hi, 1))
}

func TestArgMax(t *testing.T) {
	assert.Equal(t, 1, stats.ArgMax([]float64{0.2, 0.5, 0.3}))
	assert.Equal(t, 0, stats.ArgMax([]float64{0.4, 0.4, 0.2}), "ties go to the lowest index")
	assert.Equal(t, 2, stats.ArgMax([]int{1, 2, 3}))
	assert.Equal(t, -1, stats.ArgMax([]float64{}))
}

func TestCountsSumNormalize(t *testing.T) {
	assert.Equal(t, []int{2, 0, 1}, stats.Counts([]int{0, 2, 0, 5, -1}, 3))
	assert.Equal(t, 6, stats.Sum([]int{1, 2, 3}))

	xs := []float64{1, 1, 2}
	stats.Normalize(xs)
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.5}, xs, 1e-12)

	zero := []float64{0, 0}
	stats.Normalize(zero)
	assert.Equal(t, []float64{0, 0}, zero)

	assert.InDelta(t, 25, stats.SquaredDistance([]float64{0, 0}, []float64{3, 4}), 1e-9)
}
