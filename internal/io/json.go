package io

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Read reads JSON objects into a Table. Numbers are kept as json.Number so no
// precision is lost before validation.
func (r *JSONReader) Read() (*Table, error) {
	var (
		records   []map[string]any
		malformed map[int]string
		err       error
	)
	switch r.options.Format {
	case JSONArray:
		records, err = r.readJSONArray()
	case JSONLines:
		records, malformed, err = r.readJSONLines()
	default:
		return nil, fmt.Errorf("unsupported JSON format: %d", r.options.Format)
	}
	if err != nil {
		return nil, err
	}
	if r.options.MaxRecords > 0 && len(records) > r.options.MaxRecords {
		records = records[:r.options.MaxRecords]
	}
	table := &Table{Columns: columnsOf(records), Records: records}
	for row, reason := range malformed {
		if row < len(records) {
			table.markMalformed(row, reason)
		}
	}
	return table, nil
}

func (r *JSONReader) readJSONArray() ([]map[string]any, error) {
	dec := json.NewDecoder(r.reader)
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("unmarshaling JSON array: %w", err)
	}
	return records, nil
}

// readJSONLines keeps an empty record for every line that is not a JSON
// object so row indexes still match input lines.
func (r *JSONReader) readJSONLines() ([]map[string]any, map[int]string, error) {
	scanner := bufio.NewScanner(r.reader)
	var records []map[string]any
	malformed := make(map[int]string)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		var record map[string]any
		if err := dec.Decode(&record); err != nil || record == nil {
			reason := "not a JSON object"
			if err != nil {
				reason = err.Error()
			}
			malformed[len(records)] = fmt.Sprintf("unparsable JSON (line %d): %s", lineNum, reason)
			record = map[string]any{}
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanning JSON lines: %w", err)
	}
	return records, malformed, nil
}

func columnsOf(records []map[string]any) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}
