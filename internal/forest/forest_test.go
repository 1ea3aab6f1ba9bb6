package forest_test

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	koierrors "github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/forest"
)

// clusters returns three classes separated along feature 0, with feature 1
// as uniform noise and feature 2 constant.
func clusters(perClass int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	var X [][]float64
	var y []int
	for i := 0; i < perClass*3; i++ {
		c := i % 3
		X = append(X, []float64{float64(c)*10 + rng.Float64(), rng.Float64(), 1})
		y = append(y, c)
	}
	return X, y
}

func smallParams() forest.Params {
	p := forest.DefaultParams()
	p.NumTrees = 25
	p.Workers = 4
	return p
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*forest.Params)
		errMsg string
	}{
		{"defaults", func(*forest.Params) {}, ""},
		{"no trees", func(p *forest.Params) { p.NumTrees = 0 }, "num_trees must be positive, got 0"},
		{"negative depth", func(p *forest.Params) { p.MaxDepth = -1 }, "max_depth must be non-negative"},
		{"split too small", func(p *forest.Params) { p.MinSamplesSplit = 1 }, "min_samples_split must be at least 2"},
		{"leaf too small", func(p *forest.Params) { p.MinSamplesLeaf = 0 }, "min_samples_leaf must be at least 1"},
		{"negative features", func(p *forest.Params) { p.MaxFeatures = -2 }, "max_features must be non-negative"},
		{"bad weight", func(p *forest.Params) { p.ClassWeight = "heavy" }, `unknown class_weight "heavy"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := forest.DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFitAndPredict(t *testing.T) {
	X, y := clusters(30, 1)
	// With two candidates every split sees both non-constant features, so
	// the separating feature always wins over the noise column.
	params := smallParams()
	params.MaxFeatures = 2
	f, err := forest.Fit(context.Background(), X, y, 3, params, nil)
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	assert.Len(t, f.Trees, 25)
	assert.Equal(t, 3, f.NumFeatures)
	assert.Equal(t, 3, f.NumClasses)

	testX, testY := clusters(10, 99)
	for i, x := range testX {
		code, proba, err := f.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, testY[i], code)
		assert.InDelta(t, 1.0, proba[0]+proba[1]+proba[2], 1e-9)
		for _, p := range proba {
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
	}
}

func TestFitDeterministic(t *testing.T) {
	X, y := clusters(20, 3)
	a, err := forest.Fit(context.Background(), X, y, 3, smallParams(), nil)
	require.NoError(t, err)

	p := smallParams()
	p.Workers = 1
	b, err := forest.Fit(context.Background(), X, y, 3, p, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Trees, b.Trees)

	sample := []float64{9.5, 0.5, 1}
	pa, err := a.PredictProba(sample)
	require.NoError(t, err)
	pb, err := b.PredictProba(sample)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestFitSeedChangesTrees(t *testing.T) {
	X, y := clusters(20, 3)
	a, err := forest.Fit(context.Background(), X, y, 3, smallParams(), nil)
	require.NoError(t, err)

	p := smallParams()
	p.Seed = 7
	b, err := forest.Fit(context.Background(), X, y, 3, p, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Trees, b.Trees)
}

func TestFitErrors(t *testing.T) {
	X, y := clusters(5, 1)
	tests := []struct {
		name       string
		X          [][]float64
		y          []int
		numClasses int
		params     forest.Params
		errMsg     string
	}{
		{"empty", nil, nil, 3, smallParams(), "feature matrix is empty"},
		{"label count", X, y[:3], 3, smallParams(), "but 3 labels"},
		{"ragged", [][]float64{{1, 2}, {1}}, []int{0, 1}, 3, smallParams(), "row 1 has 1 features, expected 2"},
		{"no columns", [][]float64{{}, {}}, []int{0, 1}, 3, smallParams(), "feature matrix has no columns"},
		{"single class", X, make([]int, len(X)), 3, smallParams(), "1 distinct class(es)"},
		{"label range", [][]float64{{1}, {2}}, []int{0, 5}, 3, smallParams(), "label code 5 outside [0, 3)"},
		{"bad params", X, y, 3, forest.Params{}, "invalid hyperparameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := forest.Fit(context.Background(), tt.X, tt.y, tt.numClasses, tt.params, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, koierrors.ErrTraining)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFitCanceled(t *testing.T) {
	X, y := clusters(20, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := forest.Fit(ctx, X, y, 3, smallParams(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, koierrors.ErrTraining)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictWrongWidth(t *testing.T) {
	X, y := clusters(10, 1)
	f, err := forest.Fit(context.Background(), X, y, 3, smallParams(), nil)
	require.NoError(t, err)

	_, _, err = f.Predict([]float64{1, 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, koierrors.ErrSchema)
	assert.Contains(t, err.Error(), "feature vector has 2 values, model expects 3")
}

func TestFeatureImportances(t *testing.T) {
	X, y := clusters(30, 5)
	f, err := forest.Fit(context.Background(), X, y, 3, smallParams(), nil)
	require.NoError(t, err)

	imp := f.FeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2], 1e-9)
	assert.Greater(t, imp[0], imp[1])
	assert.Equal(t, 0.0, imp[2])
}

func TestMaxDepth(t *testing.T) {
	X, y := clusters(30, 2)
	p := smallParams()
	p.MaxDepth = 1
	f, err := forest.Fit(context.Background(), X, y, 3, p, nil)
	require.NoError(t, err)

	for _, tree := range f.Trees {
		assert.LessOrEqual(t, tree.Depth(), 1)
		assert.LessOrEqual(t, tree.Leaves(), 2)
	}
}

func TestMinSamplesLeaf(t *testing.T) {
	X, y := clusters(10, 2)
	p := smallParams()
	p.MinSamplesLeaf = 100
	f, err := forest.Fit(context.Background(), X, y, 3, p, nil)
	require.NoError(t, err)

	for _, tree := range f.Trees {
		assert.Len(t, tree.Nodes, 1)
	}
	// A forest of root leaves predicts the weighted bootstrap class mix.
	proba, err := f.PredictProba(X[0])
	require.NoError(t, err)
	assert.InDelta(t, 1.0, proba[0]+proba[1]+proba[2], 1e-9)
}

func TestBalancedWeightsFavourMinority(t *testing.T) {
	// Class 1 is rare and overlaps class 0 completely; balanced weights
	// lift its probability above its raw share.
	var X [][]float64
	var y []int
	for i := 0; i < 90; i++ {
		X = append(X, []float64{0})
		y = append(y, 0)
	}
	for i := 0; i < 10; i++ {
		X = append(X, []float64{0})
		y = append(y, 1)
	}

	balanced := smallParams()
	fb, err := forest.Fit(context.Background(), X, y, 2, balanced, nil)
	require.NoError(t, err)

	plain := smallParams()
	plain.ClassWeight = forest.ClassWeightNone
	fp, err := forest.Fit(context.Background(), X, y, 2, plain, nil)
	require.NoError(t, err)

	pb, err := fb.PredictProba([]float64{0})
	require.NoError(t, err)
	pp, err := fp.PredictProba([]float64{0})
	require.NoError(t, err)

	assert.Greater(t, pb[1], pp[1])
	assert.InDelta(t, 0.1, pp[1], 0.1)
}

func TestPredictTieGoesToLowestCode(t *testing.T) {
	f := &forest.Forest{
		NumFeatures: 1,
		NumClasses:  3,
		Params:      forest.Params{NumTrees: 1},
		Trees: []*forest.Tree{{
			Nodes:      []forest.Node{{Feature: -1, Value: []float64{0.2, 0.4, 0.4}}},
			Importance: []float64{0},
		}},
	}
	require.NoError(t, f.Validate())

	code, proba, err := f.Predict([]float64{3})
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.False(t, math.IsNaN(proba[0]))
}

func TestValidate(t *testing.T) {
	leaf := func(values ...float64) forest.Node {
		return forest.Node{Feature: -1, Value: values}
	}
	tests := []struct {
		name   string
		forest forest.Forest
		errMsg string
	}{
		{"no features", forest.Forest{NumClasses: 2}, "forest has 0 features"},
		{"one class", forest.Forest{NumFeatures: 1, NumClasses: 1}, "forest has 1 classes"},
		{"no trees", forest.Forest{NumFeatures: 1, NumClasses: 2}, "forest has no trees"},
		{"count mismatch", forest.Forest{
			NumFeatures: 1, NumClasses: 2, Params: forest.Params{NumTrees: 2},
			Trees: []*forest.Tree{{Nodes: []forest.Node{leaf(1, 0)}, Importance: []float64{0}}},
		}, "declares 2 trees but holds 1"},
		{"short leaf", forest.Forest{
			NumFeatures: 1, NumClasses: 2, Params: forest.Params{NumTrees: 1},
			Trees: []*forest.Tree{{Nodes: []forest.Node{leaf(1)}, Importance: []float64{0}}},
		}, "leaf 0 has 1 class values, expected 2"},
		{"bad feature", forest.Forest{
			NumFeatures: 1, NumClasses: 2, Params: forest.Params{NumTrees: 1},
			Trees: []*forest.Tree{{
				Nodes:      []forest.Node{{Feature: 4, Left: 1, Right: 2}, leaf(1, 0), leaf(0, 1)},
				Importance: []float64{0},
			}},
		}, "node 0 splits on feature 4 of 1"},
		{"cycle", forest.Forest{
			NumFeatures: 1, NumClasses: 2, Params: forest.Params{NumTrees: 1},
			Trees: []*forest.Tree{{
				Nodes:      []forest.Node{{Feature: 0, Left: 0, Right: 1}, leaf(1, 0)},
				Importance: []float64{0},
			}},
		}, "node 0 has invalid children 0/1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.forest.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
