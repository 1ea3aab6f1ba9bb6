package schema_test

import (
	"testing"

	"github.com/paveg/huntex/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchemaOrder(t *testing.T) {
	s := schema.Default()

	assert.Equal(t, []string{
		"koi_period", "koi_depth", "koi_duration", "koi_prad",
		"koi_teq", "koi_insol", "koi_steff", "koi_slogg", "koi_srad", "koi_score", "koi_model_snr", "koi_impact",
	}, s.Names())

	features := s.FeatureNames()
	assert.Len(t, features, 11)
	assert.NotContains(t, features, "koi_score")

	var required []string
	for _, f := range s.Required() {
		required = append(required, f.Name)
	}
	assert.Equal(t, []string{"koi_period", "koi_depth", "koi_duration", "koi_prad"}, required)
	assert.Equal(t, []string{"koi_period", "koi_depth", "koi_prad", "koi_insol", "koi_srad", "koi_model_snr"}, s.LogTransformed())
}

func TestResolve(t *testing.T) {
	s := schema.Default()
	tests := []struct {
		column string
		want   string
		ok     bool
	}{
		{"koi_period", "koi_period", true},
		{" KOI_PERIOD ", "koi_period", true},
		{"Orbital Period", "koi_period", true},
		{"period", "koi_period", true},
		{"koi-model-snr", "koi_model_snr", true},
		{"Stellar Radius", "koi_srad", true},
		{"ra", "", false},
		{"kepoi_name", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got, ok := s.Resolve(tt.column)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsLeakage(t *testing.T) {
	s := schema.Default()
	assert.True(t, s.IsLeakage("koi_score"))
	assert.True(t, s.IsLeakage("KOI Score"))
	assert.True(t, s.IsLeakage("koi_pdisposition"))
	assert.False(t, s.IsLeakage("koi_period"))
	assert.False(t, s.IsLeakage("unrelated"))
}

func TestFieldInRange(t *testing.T) {
	period, ok := schema.Default().Field(schema.Period)
	require.True(t, ok)

	assert.False(t, period.InRange(0.2), "lower bound is exclusive")
	assert.True(t, period.InRange(0.21))
	assert.True(t, period.InRange(730))
	assert.False(t, period.InRange(730.1))
	assert.Equal(t, "(0.2, 730]", period.RangeString())

	prad, _ := schema.Default().Field(schema.PlanetRad)
	assert.True(t, prad.InRange(0.5))
	assert.Equal(t, "[0.5, 30]", prad.RangeString())
}

func TestNewRejectsBadSchemas(t *testing.T) {
	tests := []struct {
		name   string
		fields []schema.Field
	}{
		{"empty", nil},
		{"duplicate", []schema.Field{{Name: "a", Max: 1}, {Name: "a", Max: 1}}},
		{"inverted", []schema.Field{{Name: "a", Min: 2, Max: 1}}},
		{"required leakage", []schema.Field{{Name: "a", Max: 1, Required: true, Leakage: true}}},
		{"alias collision", []schema.Field{{Name: "a", Max: 1, Aliases: []string{"x"}}, {Name: "b", Max: 1, Aliases: []string{"x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.New(tt.fields)
			assert.Error(t, err)
		})
	}
}

func TestLabels(t *testing.T) {
	tests := []struct {
		in   string
		want schema.Label
	}{
		{"CONFIRMED", schema.Confirmed},
		{"candidate", schema.Candidate},
		{"FALSE POSITIVE", schema.FalsePositive},
		{"false_positive", schema.FalsePositive},
		{"  False  Positive ", schema.FalsePositive},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := schema.ParseLabel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := schema.ParseLabel("NOT DISPOSITIONED")
	assert.Error(t, err)
	assert.Equal(t, "Label(7)", schema.Label(7).String())
}

func TestLabelMap(t *testing.T) {
	m := schema.DefaultLabelMap()
	require.NoError(t, m.Validate())
	assert.Equal(t, 3, m.Len())

	name, err := m.Name(2)
	require.NoError(t, err)
	assert.Equal(t, "FALSE POSITIVE", name)

	code, err := m.Code("candidate")
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	_, err = m.Name(3)
	assert.Error(t, err)

	assert.True(t, m.Equal(schema.DefaultLabelMap()))
	assert.False(t, m.Equal(schema.LabelMap{Names: []string{"CANDIDATE", "CONFIRMED", "FALSE POSITIVE"}}))
	assert.Error(t, schema.LabelMap{Names: []string{"A", "A"}}.Validate())
}
