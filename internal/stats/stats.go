// Package stats holds the numeric helpers shared by preprocessing, training
// and evaluation.
package stats

import (
	"math"
	"sort"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Number is any integer or float type.
type Number interface {
	constraints.Integer | constraints.Float
}

// Quantile returns the q-th quantile of values using linear interpolation
// between closest ranks (the h = (n-1)q definition). values need not be sorted.
// It returns NaN for an empty slice.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return quantileSorted(sorted, q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 || q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * q
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Median returns the middle value, averaging the two central values for even n.
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// Mean returns the arithmetic mean, NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// MeanStd returns the mean and population standard deviation.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	return mean, math.Sqrt(variance)
}

// IQRBounds returns [Q1 - k*IQR, Q3 + k*IQR].
func IQRBounds(values []float64, k float64) (lo, hi float64) {
	if len(values) == 0 {
		return math.Inf(-1), math.Inf(1)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := quantileSorted(sorted, 0.25)
	q3 := quantileSorted(sorted, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

// ArgMax returns the index of the largest element, preferring the lowest index on ties.
// It returns -1 for an empty slice.
func ArgMax[T constraints.Ordered](xs []T) int {
	if len(xs) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}

// Sum adds up xs.
func Sum[T Number](xs []T) T {
	var s T
	for _, x := range xs {
		s += x
	}
	return s
}

// Counts returns the number of occurrences of each code in [0, k).
// Codes outside the range are ignored.
func Counts(codes []int, k int) []int {
	out := make([]int, k)
	for _, c := range codes {
		if c >= 0 && c < k {
			out[c]++
		}
	}
	return out
}

// Normalize scales xs in place so it sums to 1. A zero vector is left unchanged.
func Normalize(xs []float64) {
	if s := floats.Sum(xs); s > 0 {
		floats.Scale(1/s, xs)
	}
}

// SquaredDistance returns the squared Euclidean distance between a and b.
func SquaredDistance(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
