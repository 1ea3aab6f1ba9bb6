package forest

import (
	"fmt"
	"math"
)

// ClassWeight selects how training samples are weighted per class.
type ClassWeight string

const (
	// ClassWeightBalanced weights class c by n / (k * n_c).
	ClassWeightBalanced ClassWeight = "balanced"
	// ClassWeightNone gives every sample weight 1.
	ClassWeightNone ClassWeight = "none"
)

// Defaults used by DefaultParams.
const (
	DefaultNumTrees        = 200
	DefaultMaxDepth        = 15
	DefaultMinSamplesSplit = 5
	DefaultMinSamplesLeaf  = 2
	DefaultSeed            = 42
)

// Params are the forest hyperparameters. They are persisted with the model.
type Params struct {
	NumTrees        int         `msgpack:"num_trees" json:"num_trees" yaml:"num_trees"`
	MaxDepth        int         `msgpack:"max_depth" json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int         `msgpack:"min_samples_split" json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int         `msgpack:"min_samples_leaf" json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxFeatures     int         `msgpack:"max_features" json:"max_features" yaml:"max_features"`
	ClassWeight     ClassWeight `msgpack:"class_weight" json:"class_weight" yaml:"class_weight"`
	Seed            int64       `msgpack:"seed" json:"seed" yaml:"seed"`

	// Workers bounds fit parallelism. It does not affect the fitted model.
	Workers int `msgpack:"-" json:"-" yaml:"workers"`
}

// DefaultParams returns the production hyperparameters: 200 trees of depth at
// most 15, sqrt(p) features per split and balanced class weights.
func DefaultParams() Params {
	return Params{
		NumTrees:        DefaultNumTrees,
		MaxDepth:        DefaultMaxDepth,
		MinSamplesSplit: DefaultMinSamplesSplit,
		MinSamplesLeaf:  DefaultMinSamplesLeaf,
		ClassWeight:     ClassWeightBalanced,
		Seed:            DefaultSeed,
	}
}

// Validate checks the hyperparameters. MaxDepth 0 means unlimited and
// MaxFeatures 0 means max(1, floor(sqrt(p))).
func (p Params) Validate() error {
	if p.NumTrees <= 0 {
		return fmt.Errorf("num_trees must be positive, got %d", p.NumTrees)
	}
	if p.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative, got %d", p.MaxDepth)
	}
	if p.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be at least 2, got %d", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be at least 1, got %d", p.MinSamplesLeaf)
	}
	if p.MaxFeatures < 0 {
		return fmt.Errorf("max_features must be non-negative, got %d", p.MaxFeatures)
	}
	switch p.ClassWeight {
	case ClassWeightBalanced, ClassWeightNone:
	default:
		return fmt.Errorf("unknown class_weight %q", p.ClassWeight)
	}
	return nil
}

// featuresPerSplit resolves MaxFeatures against the feature count.
func (p Params) featuresPerSplit(numFeatures int) int {
	m := p.MaxFeatures
	if m == 0 {
		m = int(math.Sqrt(float64(numFeatures)))
	}
	return max(1, min(m, numFeatures))
}
