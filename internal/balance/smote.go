// Package balance oversamples minority classes with SMOTE. It runs on the
// training matrix only and never touches inference data.
package balance

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/paveg/huntex/internal/stats"
	"go.uber.org/zap"
)

// Default SMOTE parameters.
const (
	DefaultK     = 5
	DefaultRatio = 1.0
)

// Options configures SMOTE.
type Options struct {
	K     int     // nearest same-class neighbors considered
	Ratio float64 // target size of each minority class relative to the majority
	Seed  int64
}

// DefaultOptions returns k=5, fully balanced.
func DefaultOptions() Options {
	return Options{K: DefaultK, Ratio: DefaultRatio, Seed: 42}
}

// Result is the oversampled training set. Original rows come first, in order.
type Result struct {
	X         [][]float64
	Y         []int
	Synthetic []int // synthetic samples added per class
	Skipped   []int // classes too small to interpolate
}

// SMOTE synthesizes minority samples by interpolating between same-class neighbors.
type SMOTE struct {
	opts   Options
	logger *zap.Logger
}

// NewSMOTE creates a balancer. A nil logger disables logging.
func NewSMOTE(opts Options, logger *zap.Logger) *SMOTE {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.Ratio <= 0 {
		opts.Ratio = DefaultRatio
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMOTE{opts: opts, logger: logger.Named("smote")}
}

// Resample returns X and y extended with synthetic minority samples until each
// class reaches Ratio times the majority count. The input slices are not modified.
func (s *SMOTE) Resample(X [][]float64, y []int, numClasses int) (*Result, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("X has %d rows but y has %d labels", len(X), len(y))
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}

	byClass := make([][]int, numClasses)
	for i, c := range y {
		if c < 0 || c >= numClasses {
			return nil, fmt.Errorf("label %d at row %d outside [0, %d)", c, i, numClasses)
		}
		byClass[c] = append(byClass[c], i)
	}
	counts := stats.Counts(y, numClasses)
	target := int(s.opts.Ratio * float64(counts[stats.ArgMax(counts)]))

	res := &Result{
		X:         append([][]float64(nil), X...),
		Y:         append([]int(nil), y...),
		Synthetic: make([]int, numClasses),
	}
	rng := rand.New(rand.NewSource(s.opts.Seed))

	for c := 0; c < numClasses; c++ {
		members := byClass[c]
		need := target - len(members)
		if need <= 0 || len(members) == 0 {
			continue
		}
		if len(members) < 2 {
			res.Skipped = append(res.Skipped, c)
			s.logger.Warn("class too small to oversample", zap.Int("class", c), zap.Int("count", len(members)))
			continue
		}

		k := min(s.opts.K, len(members)-1)
		neighbors := nearestNeighbors(X, members, k)
		for n := 0; n < need; n++ {
			base := rng.Intn(len(members))
			nb := neighbors[base][rng.Intn(k)]
			gap := rng.Float64()

			xi, xj := X[members[base]], X[nb]
			synth := make([]float64, len(xi))
			for f := range xi {
				synth[f] = xi[f] + gap*(xj[f]-xi[f])
			}
			res.X = append(res.X, synth)
			res.Y = append(res.Y, c)
		}
		res.Synthetic[c] = need
	}

	s.logger.Debug("oversampled training set",
		zap.Ints("class_counts", counts),
		zap.Ints("synthetic", res.Synthetic))
	return res, nil
}

// nearestNeighbors returns, for each member, the row indices of its k nearest
// other members by Euclidean distance. Ties resolve to the lower row index.
func nearestNeighbors(X [][]float64, members []int, k int) [][]int {
	type cand struct {
		row  int
		dist float64
	}
	out := make([][]int, len(members))
	cands := make([]cand, 0, len(members)-1)
	for a, i := range members {
		cands = cands[:0]
		for _, j := range members {
			if j == i {
				continue
			}
			cands = append(cands, cand{row: j, dist: stats.SquaredDistance(X[i], X[j])})
		}
		sort.Slice(cands, func(p, q int) bool {
			if cands[p].dist != cands[q].dist {
				return cands[p].dist < cands[q].dist
			}
			return cands[p].row < cands[q].row
		})
		nn := make([]int, k)
		for m := 0; m < k; m++ {
			nn[m] = cands[m].row
		}
		out[a] = nn
	}
	return out
}
