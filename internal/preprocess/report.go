package preprocess

import (
	"fmt"
	"sort"
)

// RowIssue ties a message to an input row.
type RowIssue struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Report describes one preprocessing invocation. It is returned to the caller
// and never persisted.
type Report struct {
	OriginalRows  int            `json:"original_rows"`
	ProcessedRows int            `json:"processed_rows"`
	RemovedRows   int            `json:"removed_rows"`
	Errors        []RowIssue     `json:"errors"`
	Removed       []RowIssue     `json:"removed"`
	Imputed       map[string]int `json:"imputed"`
	Cleared       map[string]int `json:"cleared"`
	Warnings      []string       `json:"warnings"`
}

// NewReport creates a report for a batch of n input rows.
func NewReport(n int) *Report {
	return &Report{
		OriginalRows: n,
		Errors:       []RowIssue{},
		Removed:      []RowIssue{},
		Imputed:      make(map[string]int),
		Cleared:      make(map[string]int),
		Warnings:     []string{},
	}
}

// AddError records a row that could not be processed.
func (r *Report) AddError(row int, msg string) {
	r.Errors = append(r.Errors, RowIssue{Row: row, Message: msg})
}

// AddRemoved records a row dropped during training.
func (r *Report) AddRemoved(row int, reason string) {
	r.Removed = append(r.Removed, RowIssue{Row: row, Message: reason})
}

// Warnf appends a formatted warning.
func (r *Report) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Finalize sets the processed and removed counts and sorts issues by row.
func (r *Report) Finalize(processed int) {
	r.ProcessedRows = processed
	r.RemovedRows = r.OriginalRows - processed
	sort.SliceStable(r.Errors, func(i, j int) bool { return r.Errors[i].Row < r.Errors[j].Row })
	sort.SliceStable(r.Removed, func(i, j int) bool { return r.Removed[i].Row < r.Removed[j].Row })
}

// HasErrors reports whether any row failed.
func (r *Report) HasErrors() bool {
	return len(r.Errors) > 0
}
