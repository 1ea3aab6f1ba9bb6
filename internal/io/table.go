package io

import (
	"fmt"
	stdio "io"
	"path/filepath"
	"strings"
)

// Table is raw tabular input: one record per data row, in input order.
// Row indices are 0-based positions in Records.
type Table struct {
	Columns []string
	Records []map[string]any
	// Malformed maps a row index to the reason it could not be parsed.
	Malformed map[int]string
}

func (t *Table) markMalformed(row int, reason string) {
	if t.Malformed == nil {
		t.Malformed = make(map[int]string)
	}
	t.Malformed[row] = reason
}

// Len returns the number of data rows, malformed ones included.
func (t *Table) Len() int {
	return len(t.Records)
}

// ColumnSet is the set of canonical columns a table carries.
type ColumnSet map[string]bool

// HasColumn reports whether the canonical column is present.
func (c ColumnSet) HasColumn(name string) bool {
	return c[name]
}

// Resolve maps every header through resolve and returns the canonical columns found.
func (t *Table) Resolve(resolve func(string) (string, bool)) ColumnSet {
	set := make(ColumnSet, len(t.Columns))
	for _, col := range t.Columns {
		if name, ok := resolve(col); ok {
			set[name] = true
		}
	}
	return set
}

// Input formats accepted by NewTableReader.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// NewTableReader returns the reader for format. csv configures the CSV
// reader and is ignored otherwise.
func NewTableReader(r stdio.Reader, format string, csv CSVOptions) (TableReader, error) {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return NewCSVReader(r, csv), nil
	case FormatJSON:
		return NewJSONReader(r, JSONOptions{Format: JSONArray}), nil
	case FormatJSONL, "ndjson":
		return NewJSONReader(r, JSONOptions{Format: JSONLines}), nil
	}
	return nil, fmt.Errorf("unsupported input format %q", format)
}

// FormatOf guesses the input format from a file extension, defaulting to CSV.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	}
	return FormatCSV
}
