// Package errors provides the error taxonomy shared by the classification core.
// Every error surfaced by a public operation is a *KOIError carrying one of four
// kinds, the operation that produced it and, where known, the field and row.
package errors

import (
	"fmt"
	"strings"
)

// Kind classifies a KOIError.
type Kind int

const (
	// KindSchema covers missing or out-of-range required fields and schema mismatches.
	KindSchema Kind = iota + 1
	// KindMalformedInput covers unparsable rows, wrong types and truncated files.
	KindMalformedInput
	// KindTraining covers insufficient classes, empty matrices and tree-fit failures.
	KindTraining
	// KindPersistence covers corrupt or version-incompatible bundles.
	KindPersistence
)

// NoRow marks an error that is not attached to an input row.
const NoRow = -1

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "SchemaError"
	case KindMalformedInput:
		return "MalformedInputError"
	case KindTraining:
		return "TrainingError"
	case KindPersistence:
		return "PersistenceError"
	default:
		return "UnknownError"
	}
}

// KOIError is the standard error type for all core operations.
type KOIError struct {
	Kind        Kind
	Op          string // Operation name (e.g., "Validate", "Train", "Restore")
	Field       string // Canonical field name if applicable
	Row         int    // Input row index, NoRow for single records
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *KOIError) Error() string {
	var sb strings.Builder
	if e.Row >= 0 {
		fmt.Fprintf(&sb, "row %d: ", e.Row)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, "%s operation failed on field '%s': %s", e.Op, e.Field, e.Message)
	} else {
		fmt.Fprintf(&sb, "%s operation failed: %s", e.Op, e.Message)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&sb, " (did you mean '%s'?)", strings.Join(e.Suggestions, "', '"))
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

// Unwrap returns the underlying cause for error wrapping support
func (e *KOIError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a kind sentinel matching e, or an identical error.
func (e *KOIError) Is(target error) bool {
	t, ok := target.(*KOIError)
	if !ok {
		return false
	}
	if t.Op == "" && t.Field == "" && t.Message == "" {
		return t.Kind == e.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op && e.Field == t.Field && e.Message == t.Message
}

// WithRow returns a copy of e attached to the given input row.
func (e *KOIError) WithRow(row int) *KOIError {
	c := *e
	c.Row = row
	return &c
}

// Kind sentinels for use with errors.Is.
var (
	ErrSchema         = &KOIError{Kind: KindSchema, Row: NoRow}
	ErrMalformedInput = &KOIError{Kind: KindMalformedInput, Row: NoRow}
	ErrTraining       = &KOIError{Kind: KindTraining, Row: NoRow}
	ErrPersistence    = &KOIError{Kind: KindPersistence, Row: NoRow}
)

// NewSchemaError creates an error for a field that violates the feature schema.
func NewSchemaError(op, field, message string) *KOIError {
	return &KOIError{Kind: KindSchema, Op: op, Field: field, Row: NoRow, Message: message}
}

// NewMissingFieldError creates an error for an absent required field.
func NewMissingFieldError(op, field string, suggestions ...string) *KOIError {
	return &KOIError{
		Kind:        KindSchema,
		Op:          op,
		Field:       field,
		Row:         NoRow,
		Message:     "required field is missing",
		Suggestions: suggestions,
	}
}

// NewSchemaMismatchError creates an error for a feature list that differs from the expected one.
func NewSchemaMismatchError(op, message string) *KOIError {
	return &KOIError{Kind: KindSchema, Op: op, Row: NoRow, Message: "schema mismatch: " + message}
}

// NewMalformedInputError creates an error for input that cannot be parsed.
func NewMalformedInputError(op, field, message string, cause error) *KOIError {
	return &KOIError{Kind: KindMalformedInput, Op: op, Field: field, Row: NoRow, Message: message, Cause: cause}
}

// NewTrainingError creates an error for a failed training job.
func NewTrainingError(op, message string, cause error) *KOIError {
	return &KOIError{Kind: KindTraining, Op: op, Row: NoRow, Message: message, Cause: cause}
}

// NewPersistenceError creates an error for a bundle that cannot be written or restored.
func NewPersistenceError(op, message string, cause error) *KOIError {
	return &KOIError{Kind: KindPersistence, Op: op, Row: NoRow, Message: message, Cause: cause}
}
