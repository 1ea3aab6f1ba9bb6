// Package common provides conversion and string helpers shared by the
// validation, preprocessing and IO packages.
package common

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// missingTokens are the raw cell values treated as absent.
var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

// TypeConverter converts raw record values into float64 feature values.
type TypeConverter struct{}

// NewTypeConverter creates a new type converter.
func NewTypeConverter() *TypeConverter {
	return &TypeConverter{}
}

// IsMissing reports whether a raw value represents an absent measurement.
func (tc *TypeConverter) IsMissing(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		_, ok := missingTokens[strings.ToLower(strings.TrimSpace(v))]
		return ok
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	case *float64:
		return v == nil || math.IsNaN(*v)
	default:
		return false
	}
}

// ToFloat64 converts numeric types and numeric strings to float64.
// Booleans are rejected since no feature is categorical.
func (tc *TypeConverter) ToFloat64(value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case *float64:
		if v == nil {
			return 0, fmt.Errorf("cannot convert nil pointer to float64")
		}
		f = *v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("parsing %q as number: %w", v.String(), err)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing %q as number: %w", v, err)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("value is infinite")
	}
	return f, nil
}

// ToString converts a raw value to its display form.
func (tc *TypeConverter) ToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float32, float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Default converter instance for package-level functions
var defaultConverter = NewTypeConverter()

// IsMissing uses the default converter.
func IsMissing(value any) bool {
	return defaultConverter.IsMissing(value)
}

// ToFloat64 uses the default converter.
func ToFloat64(value any) (float64, error) {
	return defaultConverter.ToFloat64(value)
}

// ToString uses the default converter.
func ToString(value any) string {
	return defaultConverter.ToString(value)
}
