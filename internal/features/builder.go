// Package features assembles preprocessed records into fixed-order vectors.
package features

import (
	"fmt"

	"github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/frame"
	"github.com/paveg/huntex/internal/validation"
)

// Builder emits vectors in one fixed feature order.
type Builder struct {
	names []string
}

// NewBuilder creates a builder for the given ordered feature list.
func NewBuilder(names []string) *Builder {
	return &Builder{names: append([]string(nil), names...)}
}

// Names returns the configured feature order.
func (b *Builder) Names() []string {
	return append([]string(nil), b.names...)
}

// Len returns the vector length.
func (b *Builder) Len() int {
	return len(b.names)
}

// Check fails with a schema mismatch if names differ from the builder's order
// in length or position.
func (b *Builder) Check(names []string) error {
	return validation.ValidateOrder(b.names, names, "BuildFeatures")
}

// FromFrame converts a processed frame into a row-major matrix.
func (b *Builder) FromFrame(f *frame.Frame) ([][]float64, error) {
	if err := b.Check(f.Names()); err != nil {
		return nil, err
	}
	out := make([][]float64, f.NumRows())
	for r := range out {
		row := make([]float64, len(b.names))
		for c := range b.names {
			v, ok := f.Value(r, c)
			if !ok {
				return nil, errors.NewMalformedInputError("BuildFeatures", b.names[c],
					fmt.Sprintf("missing value in processed row %d", f.SourceRow(r)), nil)
			}
			row[c] = v
		}
		out[r] = row
	}
	return out, nil
}

// CheckVector verifies a vector length against the feature count.
func (b *Builder) CheckVector(vec []float64) error {
	return validation.ValidateLength(len(b.names), len(vec), "BuildFeatures", "feature vector")
}
