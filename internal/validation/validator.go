// Package validation checks raw KOI records against the feature schema.
//
// Required fields that are absent, non-numeric or outside their physical range
// are hard errors. Optional fields with the same problems are cleared and left
// for imputation. Unknown columns are ignored and leakage columns are dropped.
package validation

import (
	"fmt"
	"strings"

	"github.com/paveg/huntex/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ColumnProvider is implemented by tabular inputs that know their canonical columns.
type ColumnProvider interface {
	HasColumn(name string) bool
}

// ColumnValidator checks that a table carries every listed column.
type ColumnValidator struct {
	table   ColumnProvider
	columns []string
	op      string
}

// NewColumnValidator creates a validator for required columns
func NewColumnValidator(table ColumnProvider, op string, columns ...string) *ColumnValidator {
	return &ColumnValidator{
		table:   table,
		columns: columns,
		op:      op,
	}
}

// Validate returns one error per absent column.
func (v *ColumnValidator) Validate() error {
	var errs errors.FieldErrors
	for _, column := range v.columns {
		if !v.table.HasColumn(column) {
			errs = append(errs, errors.NewMissingFieldError(v.op, column))
		}
	}
	return errs.ErrOrNil()
}

// LengthValidator validates vector length consistency
type LengthValidator struct {
	expected int
	actual   int
	op       string
	context  string
}

// NewLengthValidator creates a validator for length consistency
func NewLengthValidator(expected, actual int, op, context string) *LengthValidator {
	return &LengthValidator{
		expected: expected,
		actual:   actual,
		op:       op,
		context:  context,
	}
}

// Validate checks if lengths match
func (v *LengthValidator) Validate() error {
	if v.expected != v.actual {
		return errors.NewSchemaMismatchError(v.op,
			fmt.Sprintf("%s: expected length %d, got %d", v.context, v.expected, v.actual))
	}
	return nil
}

// OrderValidator checks that two feature lists are identical, element by element.
type OrderValidator struct {
	expected []string
	actual   []string
	op       string
}

// NewOrderValidator creates a validator for feature order
func NewOrderValidator(expected, actual []string, op string) *OrderValidator {
	return &OrderValidator{expected: expected, actual: actual, op: op}
}

// Validate reports the first position where the lists diverge.
func (v *OrderValidator) Validate() error {
	if err := NewLengthValidator(len(v.expected), len(v.actual), v.op, "feature list").Validate(); err != nil {
		return err
	}
	for i := range v.expected {
		if v.expected[i] != v.actual[i] {
			return errors.NewSchemaMismatchError(v.op,
				fmt.Sprintf("feature %d is %s, expected %s (expected order %s)",
					i, v.actual[i], v.expected[i], strings.Join(v.expected, ",")))
		}
	}
	return nil
}

// Convenience validation functions

// ValidateColumns is a convenience function for column validation
func ValidateColumns(table ColumnProvider, op string, columns ...string) error {
	return NewColumnValidator(table, op, columns...).Validate()
}

// ValidateLength is a convenience function for length validation
func ValidateLength(expected, actual int, op, context string) error {
	return NewLengthValidator(expected, actual, op, context).Validate()
}

// ValidateOrder is a convenience function for feature order validation
func ValidateOrder(expected, actual []string, op string) error {
	return NewOrderValidator(expected, actual, op).Validate()
}
