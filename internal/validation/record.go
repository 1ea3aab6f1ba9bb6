package validation

import (
	"fmt"
	"sort"

	"github.com/paveg/huntex/internal/common"
	"github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/schema"
)

// Mode selects how record errors are reported.
type Mode int

const (
	// ModeSingle validates one request; any field error fails the request.
	ModeSingle Mode = iota
	// ModeBulkRow validates one row of a batch; errors carry the row index.
	ModeBulkRow
)

func (m Mode) String() string {
	if m == ModeBulkRow {
		return "bulk-row"
	}
	return "single"
}

const suggestionDistance = 2

// RawRecord maps arbitrary input column names to raw values (strings or numbers).
type RawRecord map[string]any

// Record is a validated sample keyed by canonical field name. Fields absent
// from Values are missing and will be imputed.
type Record struct {
	Row     int
	ID      string
	Values  map[string]float64
	Cleared map[string]string // optional field -> reason it was cleared
	Leakage []string          // leakage columns dropped from the input
}

// Get returns the value of a canonical field.
func (r *Record) Get(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Clone returns a deep copy so callers can mutate values without aliasing.
func (r *Record) Clone() *Record {
	c := &Record{Row: r.Row, ID: r.ID, Values: make(map[string]float64, len(r.Values))}
	for k, v := range r.Values {
		c.Values[k] = v
	}
	if len(r.Cleared) > 0 {
		c.Cleared = make(map[string]string, len(r.Cleared))
		for k, v := range r.Cleared {
			c.Cleared[k] = v
		}
	}
	c.Leakage = append(c.Leakage, r.Leakage...)
	return c
}

// RecordValidator validates raw records against a schema.
type RecordValidator struct {
	schema *schema.Schema
	mode   Mode
	op     string
}

// NewRecordValidator creates a record validator for the given mode.
func NewRecordValidator(s *schema.Schema, mode Mode) *RecordValidator {
	return &RecordValidator{schema: s, mode: mode, op: "Validate"}
}

// Mode returns the validation mode.
func (v *RecordValidator) Mode() Mode {
	return v.mode
}

// ValidateRecord validates one raw record. row is ignored in single mode.
// On failure the returned error is an errors.FieldErrors listing every offending field.
func (v *RecordValidator) ValidateRecord(raw RawRecord, row int) (*Record, error) {
	if v.mode == ModeSingle {
		row = errors.NoRow
	}
	rec := &Record{Row: row, Values: make(map[string]float64)}
	resolved, unmatched := v.resolveColumns(raw, rec)

	var errs errors.FieldErrors
	fail := func(e *errors.KOIError) {
		if row != errors.NoRow {
			e = e.WithRow(row)
		}
		errs = append(errs, e)
	}

	for _, field := range v.schema.FeatureFields() {
		value, present := resolved[field.Name]
		if !present || common.IsMissing(value) {
			if field.Required {
				fail(errors.NewMissingFieldError(v.op, field.Name,
					common.Suggest(field.Name, unmatched, suggestionDistance)...))
			}
			continue
		}

		f, err := common.ToFloat64(value)
		if err != nil {
			if field.Required {
				fail(errors.NewMalformedInputError(v.op, field.Name,
					fmt.Sprintf("value %q is not numeric", common.ToString(value)), nil))
			} else {
				v.clear(rec, field.Name, "not numeric")
			}
			continue
		}

		if !field.InRange(f) {
			if field.Required {
				fail(errors.NewSchemaError(v.op, field.Name,
					fmt.Sprintf("value %g outside physical range %s", f, field.RangeString())))
			} else {
				v.clear(rec, field.Name, fmt.Sprintf("value %g outside physical range %s", f, field.RangeString()))
			}
			continue
		}
		rec.Values[field.Name] = f
	}

	if prad, ok := rec.Values[schema.PlanetRad]; ok {
		if srad, ok := rec.Values[schema.StellarRad]; ok && prad > srad*schema.SolarToEarthRadii {
			fail(errors.NewSchemaError(v.op, schema.PlanetRad,
				fmt.Sprintf("planet radius %g exceeds stellar radius %g R_sun (%g R_earth)",
					prad, srad, srad*schema.SolarToEarthRadii)))
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return rec, nil
}

func (v *RecordValidator) clear(rec *Record, field, reason string) {
	if rec.Cleared == nil {
		rec.Cleared = make(map[string]string)
	}
	rec.Cleared[field] = reason
}

// resolveColumns maps raw columns onto canonical fields. An exact canonical
// column wins over an alias; among aliases the lexically first column wins.
func (v *RecordValidator) resolveColumns(raw RawRecord, rec *Record) (map[string]any, []string) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resolved := make(map[string]any, len(v.schema.Names()))
	exact := make(map[string]bool)
	var unmatched []string
	for _, k := range keys {
		norm := common.NormalizeName(k)
		if norm == schema.KepoiName {
			rec.ID = common.ToString(raw[k])
			continue
		}
		if v.schema.IsLeakage(k) {
			rec.Leakage = append(rec.Leakage, k)
			continue
		}
		name, ok := v.schema.Resolve(k)
		if !ok {
			unmatched = append(unmatched, norm)
			continue
		}
		isExact := norm == name
		if _, seen := resolved[name]; seen && (exact[name] || !isExact) {
			continue
		}
		resolved[name] = raw[k]
		exact[name] = isExact
	}
	return resolved, unmatched
}
