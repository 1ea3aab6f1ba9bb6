package validation_test

import (
	stderrors "errors"
	"testing"

	koierrors "github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/schema"
	"github.com/paveg/huntex/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTable map[string]bool

func (m mockTable) HasColumn(name string) bool { return m[name] }

func validRaw() validation.RawRecord {
	return validation.RawRecord{
		"koi_period":   2.47,
		"koi_depth":    14284.0,
		"koi_duration": 1.72,
		"koi_prad":     14.4,
	}
}

func TestColumnValidator(t *testing.T) {
	table := mockTable{"koi_period": true, "koi_depth": true}

	require.NoError(t, validation.ValidateColumns(table, "ReadCSV", "koi_period", "koi_depth"))

	err := validation.ValidateColumns(table, "ReadCSV", "koi_period", "koi_duration", "koi_prad")
	require.Error(t, err)
	assert.ErrorIs(t, err, koierrors.ErrSchema)

	var fe koierrors.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"koi_duration", "koi_prad"}, fe.Fields())
}

func TestOrderValidator(t *testing.T) {
	tests := []struct {
		name     string
		expected []string
		actual   []string
		wantErr  bool
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}, false},
		{"length", []string{"a", "b"}, []string{"a"}, true},
		{"order", []string{"a", "b"}, []string{"b", "a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.ValidateOrder(tt.expected, tt.actual, "Build")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, koierrors.ErrSchema)
				assert.Contains(t, err.Error(), "schema mismatch")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLengthValidator(t *testing.T) {
	assert.NoError(t, validation.ValidateLength(3, 3, "Build", "vector"))
	err := validation.ValidateLength(3, 2, "Build", "vector")
	assert.ErrorIs(t, err, koierrors.ErrSchema)
	assert.ErrorContains(t, err, "vector: expected length 3, got 2")
}

func TestValidateRecord_Valid(t *testing.T) {
	v := validation.NewRecordValidator(schema.Default(), validation.ModeSingle)

	rec, err := v.ValidateRecord(validRaw(), 99)
	require.NoError(t, err)
	assert.Equal(t, koierrors.NoRow, rec.Row, "single records carry no row index")
	assert.InDelta(t, 2.47, rec.Values["koi_period"], 1e-12)
	assert.Len(t, rec.Values, 4)
	assert.Empty(t, rec.Cleared)
}

func TestValidateRecord_MissingRequired(t *testing.T) {
	raw := validRaw()
	delete(raw, "koi_period")
	raw["koi_perod"] = 3.0

	v := validation.NewRecordValidator(schema.Default(), validation.ModeSingle)
	rec, err := v.ValidateRecord(raw, 0)
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, koierrors.ErrSchema)

	var koiErr *koierrors.KOIError
	require.ErrorAs(t, err, &koiErr)
	assert.Equal(t, "koi_period", koiErr.Field)
	assert.Equal(t, []string{"koi_perod"}, koiErr.Suggestions)
}

func TestValidateRecord_RequiredProblems(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
		kind  error
	}{
		{"negative duration", "koi_duration", -1.0, koierrors.ErrSchema},
		{"period at exclusive bound", "koi_period", 0.2, koierrors.ErrSchema},
		{"depth above range", "koi_depth", 2e5, koierrors.ErrSchema},
		{"non numeric", "koi_prad", "big", koierrors.ErrMalformedInput},
		{"missing token", "koi_depth", "NaN", koierrors.ErrSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			raw[tt.field] = tt.value

			v := validation.NewRecordValidator(schema.Default(), validation.ModeBulkRow)
			_, err := v.ValidateRecord(raw, 37)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var koiErr *koierrors.KOIError
			require.ErrorAs(t, err, &koiErr)
			assert.Equal(t, tt.field, koiErr.Field)
			assert.Equal(t, 37, koiErr.Row)
			assert.Contains(t, err.Error(), "row 37")
		})
	}
}

func TestValidateRecord_OptionalOutOfRangeIsCleared(t *testing.T) {
	raw := validRaw()
	raw["koi_srad"] = -1.0
	raw["koi_teq"] = "hot"
	raw["koi_steff"] = 5778

	v := validation.NewRecordValidator(schema.Default(), validation.ModeSingle)
	rec, err := v.ValidateRecord(raw, 0)
	require.NoError(t, err)

	_, has := rec.Get("koi_srad")
	assert.False(t, has)
	assert.Contains(t, rec.Cleared, "koi_srad")
	assert.Contains(t, rec.Cleared, "koi_teq")
	steff, _ := rec.Get("koi_steff")
	assert.InDelta(t, 5778, steff, 1e-12)
}

func TestValidateRecord_CrossFieldRadius(t *testing.T) {
	raw := validRaw()
	raw["koi_srad"] = 0.1 // 10.91 R_earth, smaller than 14.4

	v := validation.NewRecordValidator(schema.Default(), validation.ModeSingle)
	_, err := v.ValidateRecord(raw, 0)
	require.Error(t, err)

	var koiErr *koierrors.KOIError
	require.ErrorAs(t, err, &koiErr)
	assert.Equal(t, "koi_prad", koiErr.Field)
	assert.Contains(t, koiErr.Message, "exceeds stellar radius")
}

func TestValidateRecord_ColumnsAndLeakage(t *testing.T) {
	raw := validation.RawRecord{
		" Orbital Period ": "2.47",
		"KOI_DEPTH":        "14284",
		"transit duration": "1.72",
		"koi_prad":         "14.4",
		"koi_score":        "0.98",
		"koi_pdisposition": "CANDIDATE",
		"kepoi_name":       "K00752.01",
		"ra":               "291.9",
	}

	v := validation.NewRecordValidator(schema.Default(), validation.ModeBulkRow)
	rec, err := v.ValidateRecord(raw, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, rec.Row)
	assert.Equal(t, "K00752.01", rec.ID)
	assert.Len(t, rec.Values, 4)
	_, hasScore := rec.Get("koi_score")
	assert.False(t, hasScore, "leakage fields never reach the record")
	assert.ElementsMatch(t, []string{"koi_score", "koi_pdisposition"}, rec.Leakage)
}

func TestValidateRecord_ExactColumnWinsOverAlias(t *testing.T) {
	raw := validRaw()
	raw["orbital_period"] = 99.0

	v := validation.NewRecordValidator(schema.Default(), validation.ModeSingle)
	rec, err := v.ValidateRecord(raw, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.47, rec.Values["koi_period"], 1e-12)
}

func TestValidateRecord_CollectsAllFieldErrors(t *testing.T) {
	v := validation.NewRecordValidator(schema.Default(), validation.ModeSingle)
	_, err := v.ValidateRecord(validation.RawRecord{"koi_prad": 2.0}, 0)
	require.Error(t, err)

	var fe koierrors.FieldErrors
	require.True(t, stderrors.As(err, &fe))
	assert.Equal(t, []string{"koi_period", "koi_depth", "koi_duration"}, fe.Fields())
}

func TestRecordClone(t *testing.T) {
	v := validation.NewRecordValidator(schema.Default(), validation.ModeSingle)
	rec, err := v.ValidateRecord(validRaw(), 0)
	require.NoError(t, err)

	c := rec.Clone()
	c.Values["koi_period"] = 100
	assert.InDelta(t, 2.47, rec.Values["koi_period"], 1e-12)
}
