package schema

import (
	"fmt"
	"strings"
)

// Label is the integer code of a KOI disposition.
type Label int

// Disposition codes. The numeric values are persisted inside model bundles.
const (
	Confirmed Label = iota
	Candidate
	FalsePositive
)

// NumLabels is the number of dispositions.
const NumLabels = 3

var labelNames = [NumLabels]string{"CONFIRMED", "CANDIDATE", "FALSE POSITIVE"}

func (l Label) String() string {
	if l < 0 || int(l) >= NumLabels {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// ParseLabel parses a disposition string, tolerating case and '_' for ' '.
func ParseLabel(s string) (Label, error) {
	norm := strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " "))
	for i, name := range labelNames {
		if norm == name {
			return Label(i), nil
		}
	}
	return 0, fmt.Errorf("unknown disposition %q", s)
}

// LabelMap is the bidirectional code to name table stored inside a bundle.
// Names[i] is the name of code i.
type LabelMap struct {
	Names []string `msgpack:"names" json:"names"`
}

// DefaultLabelMap returns the mapping for the three dispositions.
func DefaultLabelMap() LabelMap {
	names := make([]string, NumLabels)
	copy(names, labelNames[:])
	return LabelMap{Names: names}
}

// Len returns the number of classes.
func (m LabelMap) Len() int {
	return len(m.Names)
}

// Name returns the string for a class code.
func (m LabelMap) Name(code int) (string, error) {
	if code < 0 || code >= len(m.Names) {
		return "", fmt.Errorf("class code %d outside label map of size %d", code, len(m.Names))
	}
	return m.Names[code], nil
}

// Code returns the class code for a disposition string.
func (m LabelMap) Code(name string) (int, error) {
	l, err := ParseLabel(name)
	if err != nil {
		return 0, err
	}
	for i, n := range m.Names {
		if n == l.String() {
			return i, nil
		}
	}
	return 0, fmt.Errorf("disposition %q not in label map", name)
}

// Validate checks that the map is non-empty and has unique names.
func (m LabelMap) Validate() error {
	if len(m.Names) < 2 {
		return fmt.Errorf("label map needs at least 2 classes, got %d", len(m.Names))
	}
	seen := make(map[string]struct{}, len(m.Names))
	for _, n := range m.Names {
		if _, dup := seen[n]; dup {
			return fmt.Errorf("duplicate label %q", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// Equal reports whether two maps assign the same names to the same codes.
func (m LabelMap) Equal(other LabelMap) bool {
	if len(m.Names) != len(other.Names) {
		return false
	}
	for i := range m.Names {
		if m.Names[i] != other.Names[i] {
			return false
		}
	}
	return true
}
