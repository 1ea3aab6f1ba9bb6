package evaluate

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/paveg/huntex/internal/stats"
)

// DefaultFolds is the default number of cross-validation folds.
const DefaultFolds = 5

// CVResult summarises k-fold cross-validation accuracy. Std is the
// population standard deviation over folds.
type CVResult struct {
	Folds  int       `json:"folds"`
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
}

// FoldFunc trains on the train indexes and returns predicted class codes for
// the test indexes, in order.
type FoldFunc func(ctx context.Context, train, test []int) ([]int, error)

// byClass groups sample indexes by label and shuffles each group with rng.
func byClass(y []int, rng *rand.Rand) [][]int {
	k := slices.Max(y) + 1
	groups := make([][]int, k)
	for i, c := range y {
		groups[c] = append(groups[c], i)
	}
	for _, g := range groups {
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
	}
	return groups
}

// StratifiedKFold partitions sample indexes into k folds with class
// proportions preserved as far as counts allow. Each returned fold is the
// sorted list of its test indexes.
func StratifiedKFold(y []int, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("k-fold needs at least 2 folds, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", len(y), k)
	}
	if slices.Min(y) < 0 {
		return nil, fmt.Errorf("negative class code in labels")
	}
	folds := make([][]int, k)
	next := 0
	for _, g := range byClass(y, rand.New(rand.NewSource(seed))) {
		for _, i := range g {
			folds[next%k] = append(folds[next%k], i)
			next++
		}
	}
	for _, f := range folds {
		slices.Sort(f)
	}
	return folds, nil
}

// TrainTestSplit holds out round(testFraction * n_c) samples of every class
// c with at least two samples. Both index lists are sorted.
func TrainTestSplit(y []int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %g", testFraction)
	}
	if len(y) < 2 {
		return nil, nil, fmt.Errorf("cannot split %d samples", len(y))
	}
	if slices.Min(y) < 0 {
		return nil, nil, fmt.Errorf("negative class code in labels")
	}
	for _, g := range byClass(y, rand.New(rand.NewSource(seed))) {
		n := 0
		if len(g) >= 2 {
			n = int(math.Round(testFraction * float64(len(g))))
			n = max(1, min(n, len(g)-1))
		}
		test = append(test, g[:n]...)
		train = append(train, g[n:]...)
	}
	slices.Sort(train)
	slices.Sort(test)
	return train, test, nil
}

// CrossValidate runs stratified k-fold cross-validation, calling fit once
// per fold, and reports per-fold accuracy with its mean and spread.
func CrossValidate(ctx context.Context, y []int, k int, seed int64, fit FoldFunc) (*CVResult, error) {
	folds, err := StratifiedKFold(y, k, seed)
	if err != nil {
		return nil, err
	}

	res := &CVResult{Folds: k, Scores: make([]float64, k)}
	for f, test := range folds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		train := make([]int, 0, len(y)-len(test))
		inTest := make(map[int]struct{}, len(test))
		for _, i := range test {
			inTest[i] = struct{}{}
		}
		for i := range y {
			if _, ok := inTest[i]; !ok {
				train = append(train, i)
			}
		}

		pred, err := fit(ctx, train, test)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f+1, err)
		}
		if len(pred) != len(test) {
			return nil, fmt.Errorf("fold %d: got %d predictions for %d test samples", f+1, len(pred), len(test))
		}
		correct := 0
		for j, i := range test {
			if pred[j] == y[i] {
				correct++
			}
		}
		res.Scores[f] = float64(correct) / float64(len(test))
	}
	res.Mean, res.Std = stats.MeanStd(res.Scores)
	return res, nil
}
