package huntex

import (
	"fmt"
	"sort"

	koierrors "github.com/paveg/huntex/internal/errors"
	koiio "github.com/paveg/huntex/internal/io"
)

// rowsTable turns in-memory records into a raw table, adding labels under
// labelColumn when given. Columns are the sorted union of all record keys.
func rowsTable(rows []Record, labels []string, labelColumn string) (*koiio.Table, error) {
	if labels != nil && len(labels) != len(rows) {
		return nil, koierrors.NewMalformedInputError("TrainRows", "",
			fmt.Sprintf("got %d rows and %d labels", len(rows), len(labels)), nil)
	}
	seen := make(map[string]struct{})
	table := &koiio.Table{Records: make([]map[string]any, len(rows))}
	for i, row := range rows {
		rec := make(map[string]any, len(row)+1)
		for k, v := range row {
			rec[k] = v
			seen[k] = struct{}{}
		}
		if labels != nil {
			rec[labelColumn] = labels[i]
			seen[labelColumn] = struct{}{}
		}
		table.Records[i] = rec
	}
	for col := range seen {
		table.Columns = append(table.Columns, col)
	}
	sort.Strings(table.Columns)
	return table, nil
}
