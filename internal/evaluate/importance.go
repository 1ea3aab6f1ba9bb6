package evaluate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/paveg/huntex/internal/stats"
)

// FeatureImportance pairs a feature with its normalised importance.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// RankImportance normalises importances to sum to 1 and sorts them in
// descending order, breaking ties by feature name. topN > 0 keeps only the
// first topN entries.
func RankImportance(names []string, importances []float64, topN int) ([]FeatureImportance, error) {
	if len(names) != len(importances) {
		return nil, fmt.Errorf("got %d feature names and %d importances", len(names), len(importances))
	}
	values := append([]float64(nil), importances...)
	stats.Normalize(values)

	ranked := make([]FeatureImportance, len(names))
	for i, name := range names {
		ranked[i] = FeatureImportance{Feature: name, Importance: values[i]}
	}
	slices.SortFunc(ranked, func(a, b FeatureImportance) int {
		switch {
		case a.Importance > b.Importance:
			return -1
		case a.Importance < b.Importance:
			return 1
		}
		return strings.Compare(a.Feature, b.Feature)
	})
	if topN > 0 && topN < len(ranked) {
		ranked = ranked[:topN]
	}
	return ranked, nil
}
