package io

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paveg/huntex/internal/frame"
)

// Read reads CSV data into a Table. Rows that cannot be parsed, or whose field
// count differs from the header, are kept as empty or partial records and
// recorded in Table.Malformed. A broken header or a quoted field that runs
// across lines fails the whole file, since later rows can no longer be told
// apart.
func (r *CSVReader) Read() (*Table, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	csvReader.FieldsPerRecord = -1

	table := &Table{}
	var headers []string
	line := 0
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) && headers != nil && perr.Line == perr.StartLine {
			line++
			table.markMalformed(len(table.Records), fmt.Sprintf("unparsable CSV (line %d, column %d): %v", perr.Line, perr.Column, perr.Err))
			table.Records = append(table.Records, map[string]any{})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		line++

		if headers == nil {
			if r.options.Header {
				headers = make([]string, len(record))
				for i, h := range record {
					headers[i] = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
				}
				table.Columns = headers
				continue
			}
			headers = make([]string, len(record))
			for i := range record {
				headers[i] = fmt.Sprintf("column_%d", i)
			}
			table.Columns = headers
		}

		row := len(table.Records)
		values := make(map[string]any, len(headers))
		for i, h := range headers {
			if i < len(record) {
				values[h] = record[i]
			}
		}
		if len(record) != len(headers) {
			table.markMalformed(row, fmt.Sprintf("expected %d fields, got %d (line %d)", len(headers), len(record), line))
		}
		table.Records = append(table.Records, values)
	}

	if headers == nil {
		return nil, fmt.Errorf("reading CSV: no header row")
	}
	return table, nil
}

// Write writes a frame with its row column first. Missing cells are empty.
func (w *CSVWriter) Write(f *frame.Frame) error {
	names := f.Names()
	header := append([]string{frame.RowColumn}, names...)

	rows := make([][]string, f.NumRows())
	for r := range rows {
		row := make([]string, len(header))
		row[0] = strconv.Itoa(f.SourceRow(r))
		for c := range names {
			if v, ok := f.Value(r, c); ok {
				row[c+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		rows[r] = row
	}
	return w.WriteRows(header, rows)
}

// WriteRows writes an optional header followed by string rows.
func (w *CSVWriter) WriteRows(header []string, rows [][]string) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter

	if w.options.Header && header != nil {
		if err := csvWriter.Write(header); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}
	for i, row := range rows {
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
