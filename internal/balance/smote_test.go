package balance_test

import (
	"testing"

	"github.com/paveg/huntex/internal/balance"
	"github.com/paveg/huntex/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imbalanced() ([][]float64, []int) {
	var X [][]float64
	var y []int
	for i := 0; i < 20; i++ {
		X = append(X, []float64{float64(i), float64(i) * 2})
		y = append(y, 0)
	}
	for i := 0; i < 6; i++ {
		X = append(X, []float64{100 + float64(i), 50 - float64(i)})
		y = append(y, 1)
	}
	for i := 0; i < 3; i++ {
		X = append(X, []float64{-10 - float64(i), -10})
		y = append(y, 2)
	}
	return X, y
}

func TestResample_FullyBalanced(t *testing.T) {
	X, y := imbalanced()
	res, err := balance.NewSMOTE(balance.DefaultOptions(), nil).Resample(X, y, 3)
	require.NoError(t, err)

	assert.Equal(t, []int{20, 20, 20}, stats.Counts(res.Y, 3))
	assert.Equal(t, []int{0, 14, 17}, res.Synthetic)
	assert.Equal(t, X, res.X[:len(X)], "original rows come first and are unchanged")
	assert.Len(t, y, 29, "input labels are not modified")
}

func TestResample_SyntheticInsideClassHull(t *testing.T) {
	X, y := imbalanced()
	res, err := balance.NewSMOTE(balance.DefaultOptions(), nil).Resample(X, y, 3)
	require.NoError(t, err)

	for i := len(X); i < len(res.X); i++ {
		p := res.X[i]
		switch res.Y[i] {
		case 1:
			assert.GreaterOrEqual(t, p[0], 100.0)
			assert.LessOrEqual(t, p[0], 105.0)
			assert.GreaterOrEqual(t, p[1], 45.0)
			assert.LessOrEqual(t, p[1], 50.0)
		case 2:
			assert.GreaterOrEqual(t, p[0], -12.0)
			assert.LessOrEqual(t, p[0], -10.0)
			assert.InDelta(t, -10.0, p[1], 1e-12)
		default:
			t.Fatalf("synthetic sample for majority class at %d", i)
		}
	}
}

func TestResample_Deterministic(t *testing.T) {
	X, y := imbalanced()
	a, err := balance.NewSMOTE(balance.DefaultOptions(), nil).Resample(X, y, 3)
	require.NoError(t, err)
	b, err := balance.NewSMOTE(balance.DefaultOptions(), nil).Resample(X, y, 3)
	require.NoError(t, err)
	assert.Equal(t, a.X, b.X)
}

func TestResample_PartialRatio(t *testing.T) {
	X, y := imbalanced()
	res, err := balance.NewSMOTE(balance.Options{K: 3, Ratio: 0.5, Seed: 1}, nil).Resample(X, y, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{20, 10, 10}, stats.Counts(res.Y, 3))
}

func TestResample_SingletonClassSkipped(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {9}}
	y := []int{0, 0, 0, 1}
	res, err := balance.NewSMOTE(balance.DefaultOptions(), nil).Resample(X, y, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Skipped)
	assert.Len(t, res.X, 4)
}

func TestResample_Errors(t *testing.T) {
	s := balance.NewSMOTE(balance.DefaultOptions(), nil)

	_, err := s.Resample([][]float64{{1}}, []int{0, 1}, 2)
	assert.Error(t, err)

	_, err = s.Resample([][]float64{{1}}, []int{0}, 1)
	assert.Error(t, err)

	_, err = s.Resample([][]float64{{1}}, []int{5}, 2)
	assert.Error(t, err)
}
