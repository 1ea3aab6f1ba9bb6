package common_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paveg/huntex/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
		wantErr  bool
	}{
		{"int", 42, 42, false},
		{"int64", int64(-7), -7, false},
		{"float32", float32(1.5), 1.5, false},
		{"float64", 2.47, 2.47, false},
		{"string", " 14284 ", 14284, false},
		{"scientific string", "1e5", 100000, false},
		{"json number", json.Number("1.72"), 1.72, false},
		{"bad string", "abc", 0, true},
		{"bool", true, 0, true},
		{"infinite", math.Inf(1), 0, true},
		{"slice", []int{1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := common.ToFloat64(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestIsMissing(t *testing.T) {
	for _, v := range []any{nil, "", "  ", "NaN", "na", "NULL", "None", math.NaN()} {
		assert.True(t, common.IsMissing(v), "%v", v)
	}
	for _, v := range []any{0, "0", 1.2, "abc"} {
		assert.False(t, common.IsMissing(v), "%v", v)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"koi_period", "koi_period"},
		{"  KOI_Period ", "koi_period"},
		{"Orbital Period", "orbital_period"},
		{"koi-model-snr", "koi_model_snr"},
		{"koi..prad", "koi_prad"},
		{"_koi_teq_", "koi_teq"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, common.NormalizeName(tt.in))
		})
	}
}

func TestLevenshteinAndSuggest(t *testing.T) {
	assert.Equal(t, 0, common.Levenshtein("koi_prad", "koi_prad"))
	assert.Equal(t, 1, common.Levenshtein("koi_perod", "koi_period"))
	assert.Equal(t, 3, common.Levenshtein("", "abc"))

	got := common.Suggest("koi_period", []string{"koi_perod", "koi_depth", "koi_periodd", "koi_period"}, 2)
	// Equal distances are ordered by name.
	assert.Equal(t, []string{"koi_periodd", "koi_perod"}, got)
	assert.Empty(t, common.Suggest("koi_period", []string{"ra", "dec"}, 2))
}
