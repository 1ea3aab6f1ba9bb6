package preprocess

import (
	"fmt"
	"math"
)

// Stats is the preprocessing snapshot captured at training time. All slices
// are aligned with Features.
type Stats struct {
	Features  []string       `msgpack:"features" json:"features"`
	Strategy  ImputeStrategy `msgpack:"strategy" json:"strategy"`
	Impute    []float64      `msgpack:"impute" json:"impute"` // raw scale
	LogFields []bool         `msgpack:"log_fields" json:"log_fields"`
	LogOffset float64        `msgpack:"log_offset" json:"log_offset"`

	// Outlier bounds on the transformed scale. Bounded is false for features
	// the filter does not cover.
	Bounded      []bool    `msgpack:"bounded" json:"bounded"`
	OutlierLower []float64 `msgpack:"outlier_lower" json:"outlier_lower"`
	OutlierUpper []float64 `msgpack:"outlier_upper" json:"outlier_upper"`
}

// Validate checks that the snapshot is structurally sound for n features.
func (s *Stats) Validate(n int) error {
	if len(s.Features) != n {
		return fmt.Errorf("stats cover %d features, expected %d", len(s.Features), n)
	}
	lengths := []struct {
		name string
		n    int
	}{
		{"impute", len(s.Impute)},
		{"log_fields", len(s.LogFields)},
		{"bounded", len(s.Bounded)},
		{"outlier_lower", len(s.OutlierLower)},
		{"outlier_upper", len(s.OutlierUpper)},
	}
	for _, l := range lengths {
		if l.n != n {
			return fmt.Errorf("stats %s has length %d, expected %d", l.name, l.n, n)
		}
	}
	for i, v := range s.Impute {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("imputation value for %s is not finite", s.Features[i])
		}
	}
	if s.LogOffset <= 0 {
		return fmt.Errorf("log offset must be positive, got %g", s.LogOffset)
	}
	return nil
}

// ImputeValue returns the frozen imputation value for a feature.
func (s *Stats) ImputeValue(name string) (float64, bool) {
	for i, f := range s.Features {
		if f == name {
			return s.Impute[i], true
		}
	}
	return 0, false
}
