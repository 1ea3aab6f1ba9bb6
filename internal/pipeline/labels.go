// Package pipeline wires validation, preprocessing, feature building,
// balancing and the forest into the training and inference flows.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paveg/huntex/internal/common"
	koierrors "github.com/paveg/huntex/internal/errors"
	"github.com/paveg/huntex/internal/io"
	"github.com/paveg/huntex/internal/preprocess"
	"github.com/paveg/huntex/internal/schema"
	"github.com/paveg/huntex/internal/validation"
)

// ReasonUnknownLabel is recorded for training rows whose disposition is not
// one of the known labels.
const ReasonUnknownLabel = "unknown disposition"

// labelColumn finds the table header matching name after normalization.
func labelColumn(table *io.Table, name string) (string, error) {
	want := common.NormalizeName(name)
	for _, col := range table.Columns {
		if common.NormalizeName(col) == want {
			return col, nil
		}
	}
	return "", koierrors.NewMissingFieldError("Train", name, common.Suggest(want, table.Columns, 2)...)
}

// labeled keeps the records whose label parses and returns their class codes
// keyed by input row. Unlabeled rows are recorded as removed in the batch
// report.
func labeled(batch *preprocess.Batch, table *io.Table, column string, labels schema.LabelMap) ([]*validation.Record, map[int]int) {
	codes := make(map[int]int, len(batch.Records))
	kept := make([]*validation.Record, 0, len(batch.Records))
	for _, rec := range batch.Records {
		raw := common.ToString(table.Records[rec.Row][column])
		code, err := labels.Code(raw)
		if err != nil {
			batch.Report.AddRemoved(rec.Row, fmt.Sprintf("%s %q", ReasonUnknownLabel, raw))
			continue
		}
		codes[rec.Row] = code
		kept = append(kept, rec)
	}
	return kept, codes
}

func codesOf(records []*validation.Record, codes map[int]int) []int {
	y := make([]int, len(records))
	for i, rec := range records {
		y[i] = codes[rec.Row]
	}
	return y
}

func pick(records []*validation.Record, idx []int) []*validation.Record {
	out := make([]*validation.Record, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}

// dropReason groups a removal message for metrics.
func dropReason(msg string) string {
	for _, prefix := range []string{"duplicate", "outlier", "missing", ReasonUnknownLabel} {
		if strings.HasPrefix(msg, prefix) {
			return prefix
		}
	}
	return "other"
}

// errorKind names the taxonomy kind of err for metrics.
func errorKind(err error) string {
	var ke *koierrors.KOIError
	if errors.As(err, &ke) {
		return ke.Kind.String()
	}
	return "UnknownError"
}
