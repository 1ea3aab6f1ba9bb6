// Package preprocess turns validated KOI records into a clean feature frame.
//
// Training fits a Stats snapshot (imputation values and outlier bounds) that is
// frozen into the model bundle. Inference reuses that snapshot verbatim, never
// drops a row, and reports every imputation and transform issue as a warning.
package preprocess

import "fmt"

// ImputeStrategy selects how missing optional values are filled.
type ImputeStrategy string

// Supported strategies.
const (
	ImputeMedian ImputeStrategy = "median"
	ImputeMean   ImputeStrategy = "mean"
	ImputeDrop   ImputeStrategy = "drop"
)

// Default option values.
const (
	DefaultLogOffset         = 1e-6
	DefaultOutlierMultiplier = 5.0
)

// Options configures a Preprocessor.
type Options struct {
	Strategy          ImputeStrategy
	LogOffset         float64
	OutlierMultiplier float64 // <= 0 disables the training outlier filter
	Dedupe            bool    // drop duplicate training rows
	DetectLogScale    bool    // convert batches that look already log10-scaled back to linear
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Strategy:          ImputeMedian,
		LogOffset:         DefaultLogOffset,
		OutlierMultiplier: DefaultOutlierMultiplier,
		Dedupe:            true,
	}
}

// Validate checks option consistency.
func (o Options) Validate() error {
	switch o.Strategy {
	case ImputeMedian, ImputeMean, ImputeDrop:
	default:
		return fmt.Errorf("unknown imputation strategy %q", o.Strategy)
	}
	if o.LogOffset <= 0 {
		return fmt.Errorf("log offset must be positive, got %g", o.LogOffset)
	}
	return nil
}
