// Package schema defines the canonical KOI feature set: the ordered field list,
// physical ranges, column aliases, transform flags and the label enumeration.
//
// Field order is part of the model contract. Vectors for training and inference
// are always assembled in the order returned by FeatureNames.
package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/paveg/huntex/internal/common"
)

// Canonical field names.
const (
	Period     = "koi_period"
	Depth      = "koi_depth"
	Duration   = "koi_duration"
	PlanetRad  = "koi_prad"
	EqTemp     = "koi_teq"
	Insolation = "koi_insol"
	StellarTef = "koi_steff"
	StellarLog = "koi_slogg"
	StellarRad = "koi_srad"
	Score      = "koi_score"
	ModelSNR   = "koi_model_snr"
	Impact     = "koi_impact"

	// PDisposition is a leakage column that is never a feature.
	PDisposition = "koi_pdisposition"
	// KepoiName identifies a KOI and is used for duplicate detection.
	KepoiName = "kepoi_name"
	// Disposition is the default label column.
	Disposition = "koi_disposition"

	// SolarToEarthRadii converts stellar radii to Earth radii for the cross-field check.
	SolarToEarthRadii = 109.1
)

// Field describes one canonical feature.
type Field struct {
	Name         string
	Required     bool
	Min          float64
	Max          float64
	MinExclusive bool
	MaxExclusive bool
	LogTransform bool
	Leakage      bool
	Fallback     float64 // imputation value when training observed nothing
	Aliases      []string
}

// InRange reports whether v lies inside the field's physical interval.
func (f Field) InRange(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if f.MinExclusive {
		if v <= f.Min {
			return false
		}
	} else if v < f.Min {
		return false
	}
	if f.MaxExclusive {
		return v < f.Max
	}
	return v <= f.Max
}

// RangeString formats the interval in mathematical notation, e.g. "(0.2, 730]".
func (f Field) RangeString() string {
	lo, hi := "[", "]"
	if f.MinExclusive {
		lo = "("
	}
	if f.MaxExclusive {
		hi = ")"
	}
	return fmt.Sprintf("%s%g, %g%s", lo, f.Min, f.Max, hi)
}

// Schema is an immutable ordered feature schema.
type Schema struct {
	fields  []Field
	index   map[string]int
	columns map[string]string
	leakage map[string]struct{}
}

// New builds a schema from an ordered field list. extraLeakage names columns
// that are not features but must still be dropped from any input.
func New(fields []Field, extraLeakage ...string) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema requires at least one field")
	}
	s := &Schema{
		fields:  make([]Field, len(fields)),
		index:   make(map[string]int, len(fields)),
		columns: make(map[string]string),
		leakage: make(map[string]struct{}),
	}
	copy(s.fields, fields)

	for i, f := range s.fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d has empty name", i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %s", f.Name)
		}
		if f.Min > f.Max {
			return nil, fmt.Errorf("field %s has inverted range %s", f.Name, f.RangeString())
		}
		if f.Required && f.Leakage {
			return nil, fmt.Errorf("field %s cannot be both required and leakage", f.Name)
		}
		s.index[f.Name] = i
		if err := s.addColumn(f.Name, f.Name); err != nil {
			return nil, err
		}
		if short := strings.TrimPrefix(f.Name, "koi_"); short != f.Name {
			if err := s.addColumn(short, f.Name); err != nil {
				return nil, err
			}
		}
		for _, a := range f.Aliases {
			if err := s.addColumn(a, f.Name); err != nil {
				return nil, err
			}
		}
		if f.Leakage {
			s.leakage[f.Name] = struct{}{}
		}
	}
	for _, name := range extraLeakage {
		s.leakage[common.NormalizeName(name)] = struct{}{}
	}
	return s, nil
}

func (s *Schema) addColumn(alias, canonical string) error {
	key := common.NormalizeName(alias)
	if prev, ok := s.columns[key]; ok && prev != canonical {
		return fmt.Errorf("alias %q maps to both %s and %s", alias, prev, canonical)
	}
	s.columns[key] = canonical
	return nil
}

// Fields returns a copy of all fields in canonical order, leakage fields included.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by canonical name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Names returns every canonical field name in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// FeatureNames returns the ordered model features: all fields except leakage ones.
func (s *Schema) FeatureNames() []string {
	names := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		if !f.Leakage {
			names = append(names, f.Name)
		}
	}
	return names
}

// FeatureFields returns the fields backing FeatureNames.
func (s *Schema) FeatureFields() []Field {
	fields := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		if !f.Leakage {
			fields = append(fields, f)
		}
	}
	return fields
}

// Required returns the required fields in order.
func (s *Schema) Required() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Resolve maps an arbitrary input column name to a canonical field name.
func (s *Schema) Resolve(column string) (string, bool) {
	name, ok := s.columns[common.NormalizeName(column)]
	return name, ok
}

// IsLeakage reports whether a column, canonical or not, must be dropped before
// feature extraction.
func (s *Schema) IsLeakage(column string) bool {
	norm := common.NormalizeName(column)
	if _, ok := s.leakage[norm]; ok {
		return true
	}
	if name, ok := s.columns[norm]; ok {
		_, leak := s.leakage[name]
		return leak
	}
	return false
}

// LogTransformed returns the feature names that receive the log10 transform.
func (s *Schema) LogTransformed() []string {
	var out []string
	for _, f := range s.FeatureFields() {
		if f.LogTransform {
			out = append(out, f.Name)
		}
	}
	return out
}

// DefaultFields returns the KOI field list in canonical order.
func DefaultFields() []Field {
	return []Field{
		{Name: Period, Required: true, Min: 0.2, Max: 730, MinExclusive: true, LogTransform: true, Fallback: 10,
			Aliases: []string{"orbital_period", "period_days"}},
		{Name: Depth, Required: true, Min: 10, Max: 100000, LogTransform: true, Fallback: 500,
			Aliases: []string{"transit_depth", "depth_ppm"}},
		{Name: Duration, Required: true, Min: 0, Max: 72, MinExclusive: true, Fallback: 3,
			Aliases: []string{"transit_duration", "duration_hours"}},
		{Name: PlanetRad, Required: true, Min: 0.5, Max: 30, LogTransform: true, Fallback: 2.5,
			Aliases: []string{"planet_radius", "planetary_radius", "radius"}},
		{Name: EqTemp, Min: 100, Max: 3000, Fallback: 800,
			Aliases: []string{"equilibrium_temperature", "equilibrium_temp"}},
		{Name: Insolation, Min: 0, Max: 1e6, LogTransform: true, Fallback: 100,
			Aliases: []string{"insolation", "insolation_flux"}},
		{Name: StellarTef, Min: 2000, Max: 50000, Fallback: 5700,
			Aliases: []string{"stellar_teff", "stellar_temperature", "teff"}},
		{Name: StellarLog, Min: 0, Max: 6, Fallback: 4.4,
			Aliases: []string{"stellar_logg", "surface_gravity", "logg"}},
		{Name: StellarRad, Min: 0, Max: 200, MinExclusive: true, LogTransform: true, Fallback: 1,
			Aliases: []string{"stellar_radius"}},
		{Name: Score, Min: 0, Max: 1, Leakage: true, Fallback: 0.5,
			Aliases: []string{"disposition_score"}},
		{Name: ModelSNR, Min: 0, Max: 1e6, LogTransform: true, Fallback: 30,
			Aliases: []string{"snr", "signal_to_noise"}},
		{Name: Impact, Min: 0, Max: 5, Fallback: 0.5,
			Aliases: []string{"impact_parameter"}},
	}
}

var defaultSchema = mustDefault()

func mustDefault() *Schema {
	s, err := New(DefaultFields(), PDisposition)
	if err != nil {
		panic(err)
	}
	return s
}

// Default returns the shared KOI schema. It is immutable and safe for concurrent use.
func Default() *Schema {
	return defaultSchema
}
