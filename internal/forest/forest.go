// Package forest implements the Random Forest classifier: bootstrap-sampled
// CART trees split on Gini impurity, combined by soft voting.
//
// Trees are fitted in parallel. Each tree draws its bootstrap sample and its
// split features from its own generator seeded with Seed+i, so a fit is
// reproducible regardless of scheduling. Any tree failure aborts the fit.
package forest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	koierrors "github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/parallel"
	"github.com/paveg/huntex/internal/stats"
)

// Forest is a fitted ensemble. It is immutable after Fit and safe for
// concurrent prediction.
type Forest struct {
	Trees       []*Tree `msgpack:"trees"`
	NumFeatures int     `msgpack:"num_features"`
	NumClasses  int     `msgpack:"num_classes"`
	Params      Params  `msgpack:"params"`
}

// Fit trains a forest on X (n rows of equal width) with class codes y in
// [0, numClasses). All input problems are reported as TrainingError.
func Fit(ctx context.Context, X [][]float64, y []int, numClasses int, params Params, logger *zap.Logger) (*Forest, error) {
	const op = "Fit"
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := params.Validate(); err != nil {
		return nil, koierrors.NewTrainingError(op, "invalid hyperparameters", err)
	}
	if err := checkTrainingSet(X, y, numClasses); err != nil {
		return nil, koierrors.NewTrainingError(op, err.Error(), nil)
	}

	n := len(X)
	classWeight := classWeights(y, numClasses, params.ClassWeight)
	f := &Forest{
		Trees:       make([]*Tree, params.NumTrees),
		NumFeatures: len(X[0]),
		NumClasses:  numClasses,
		Params:      params,
	}

	start := time.Now()
	err := parallel.Run(ctx, params.Workers, params.NumTrees, func(ctx context.Context, t int) error {
		rng := rand.New(rand.NewSource(params.Seed + int64(t)))
		multiplicity := make([]int, n)
		for range n {
			multiplicity[rng.Intn(n)]++
		}
		weight := make([]float64, n)
		idx := make([]int, 0, n)
		for i, m := range multiplicity {
			if m == 0 {
				continue
			}
			weight[i] = float64(m) * classWeight[y[i]]
			idx = append(idx, i)
		}
		tree, err := fitTree(ctx, X, y, weight, idx, numClasses, params, rng)
		if err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
		f.Trees[t] = tree
		return nil
	})
	if err != nil {
		return nil, koierrors.NewTrainingError(op, "tree fitting failed", err)
	}

	if ce := logger.Check(zap.DebugLevel, "forest fitted"); ce != nil {
		maxDepth, leaves := 0, 0
		for _, t := range f.Trees {
			maxDepth = max(maxDepth, t.Depth())
			leaves += t.Leaves()
		}
		ce.Write(
			zap.Int("trees", params.NumTrees),
			zap.Int("rows", n),
			zap.Int("features", f.NumFeatures),
			zap.Int("max_depth", maxDepth),
			zap.Float64("mean_leaves", float64(leaves)/float64(len(f.Trees))),
			zap.Duration("elapsed", time.Since(start)))
	}
	return f, nil
}

func checkTrainingSet(X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 {
		return fmt.Errorf("feature matrix is empty")
	}
	if len(X) != len(y) {
		return fmt.Errorf("feature matrix has %d rows but %d labels", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return fmt.Errorf("feature matrix has no columns")
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}
	if numClasses < 2 {
		return fmt.Errorf("at least 2 classes are required, got %d", numClasses)
	}
	for i, c := range y {
		if c < 0 || c >= numClasses {
			return fmt.Errorf("row %d has label code %d outside [0, %d)", i, c, numClasses)
		}
	}
	present := 0
	for _, c := range stats.Counts(y, numClasses) {
		if c > 0 {
			present++
		}
	}
	if present < 2 {
		return fmt.Errorf("training labels contain %d distinct class(es), at least 2 are required", present)
	}
	return nil
}

// classWeights returns the per-class sample weight. Balanced weighting uses
// n / (k * n_c) where k counts the classes present in y.
func classWeights(y []int, numClasses int, mode ClassWeight) []float64 {
	weights := make([]float64, numClasses)
	if mode != ClassWeightBalanced {
		for c := range weights {
			weights[c] = 1
		}
		return weights
	}
	counts := stats.Counts(y, numClasses)
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}
	for c, count := range counts {
		if count > 0 {
			weights[c] = float64(len(y)) / (float64(present) * float64(count))
		}
	}
	return weights
}

// PredictProba returns the mean of the trees' leaf distributions for x. The
// result has one entry per class and sums to 1.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.NumFeatures {
		return nil, koierrors.NewSchemaMismatchError("Predict",
			fmt.Sprintf("feature vector has %d values, model expects %d", len(x), f.NumFeatures))
	}
	proba := make([]float64, f.NumClasses)
	for _, t := range f.Trees {
		for c, v := range t.Predict(x) {
			proba[c] += v
		}
	}
	stats.Normalize(proba)
	return proba, nil
}

// Predict returns the most probable class code and the full distribution.
// Ties go to the lowest class code.
func (f *Forest) Predict(x []float64) (int, []float64, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, nil, err
	}
	return stats.ArgMax(proba), proba, nil
}

// FeatureImportances returns the mean of the per-tree normalised impurity
// decreases, renormalised to sum to 1. All zeros when no tree split.
func (f *Forest) FeatureImportances() []float64 {
	out := make([]float64, f.NumFeatures)
	for _, t := range f.Trees {
		for i, v := range t.Importance {
			out[i] += v
		}
	}
	if stats.Sum(out) > 0 {
		stats.Normalize(out)
	}
	return out
}

// Validate checks structural consistency, typically after decoding.
func (f *Forest) Validate() error {
	if f.NumFeatures <= 0 {
		return fmt.Errorf("forest has %d features", f.NumFeatures)
	}
	if f.NumClasses < 2 {
		return fmt.Errorf("forest has %d classes", f.NumClasses)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	if f.Params.NumTrees != len(f.Trees) {
		return fmt.Errorf("forest declares %d trees but holds %d", f.Params.NumTrees, len(f.Trees))
	}
	for i, t := range f.Trees {
		if t == nil {
			return fmt.Errorf("tree %d is missing", i)
		}
		if err := t.validate(f.NumFeatures, f.NumClasses); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
