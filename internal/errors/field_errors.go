package errors

import "strings"

// FieldErrors collects every field-level problem found in one record.
type FieldErrors []*KOIError

func (fe FieldErrors) Error() string {
	msgs := make([]string, len(fe))
	for i, e := range fe {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (fe FieldErrors) Unwrap() []error {
	errs := make([]error, len(fe))
	for i, e := range fe {
		errs[i] = e
	}
	return errs
}

// Fields returns the names of the offending fields in order.
func (fe FieldErrors) Fields() []string {
	fields := make([]string, 0, len(fe))
	for _, e := range fe {
		if e.Field != "" {
			fields = append(fields, e.Field)
		}
	}
	return fields
}

// ErrOrNil returns nil for an empty list so callers can return it directly.
func (fe FieldErrors) ErrOrNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}
