// Package frame provides an immutable column-major float64 table backed by
// Apache Arrow arrays. Null slots represent missing measurements.
//
// Every frame carries a row index column tying each row back to its position
// in the caller's input.
package frame

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// RowColumn is the name of the row index column in exported records.
const RowColumn = "row"

// Frame is an immutable float64 table. Release must be called when done.
type Frame struct {
	names   []string
	index   map[string]int
	columns []*array.Float64
	rows    *array.Int64
}

// New builds a frame from row-major values. NaN entries become nulls.
// rowIdx gives the source row index of each row; nil means 0..n-1.
func New(names []string, values [][]float64, rowIdx []int, mem memory.Allocator) (*Frame, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if rowIdx != nil && len(rowIdx) != len(values) {
		return nil, fmt.Errorf("row index length %d does not match %d rows", len(rowIdx), len(values))
	}
	index := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := index[n]; dup {
			return nil, fmt.Errorf("duplicate column %s", n)
		}
		index[n] = i
	}

	builders := make([]*array.Float64Builder, len(names))
	for i := range builders {
		builders[i] = array.NewFloat64Builder(mem)
		defer builders[i].Release()
		builders[i].Reserve(len(values))
	}
	rb := array.NewInt64Builder(mem)
	defer rb.Release()

	for r, row := range values {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", r, len(row), len(names))
		}
		for c, v := range row {
			if math.IsNaN(v) {
				builders[c].AppendNull()
			} else {
				builders[c].Append(v)
			}
		}
		if rowIdx != nil {
			rb.Append(int64(rowIdx[r]))
		} else {
			rb.Append(int64(r))
		}
	}

	f := &Frame{
		names:   append([]string(nil), names...),
		index:   index,
		columns: make([]*array.Float64, len(names)),
		rows:    rb.NewInt64Array(),
	}
	for i, b := range builders {
		f.columns[i] = b.NewFloat64Array()
	}
	return f, nil
}

// FromRecord copies a record holding float64 feature columns and an optional
// int64 row column into a frame.
func FromRecord(rec arrow.Record, mem memory.Allocator) (*Frame, error) {
	var names []string
	var cols []*array.Float64
	var rowCol *array.Int64
	for i, field := range rec.Schema().Fields() {
		switch col := rec.Column(i).(type) {
		case *array.Float64:
			names = append(names, field.Name)
			cols = append(cols, col)
		case *array.Int64:
			if field.Name != RowColumn {
				return nil, fmt.Errorf("unexpected int64 column %s", field.Name)
			}
			rowCol = col
		default:
			return nil, fmt.Errorf("column %s has unsupported type %s", field.Name, field.Type)
		}
	}

	n := int(rec.NumRows())
	values := make([][]float64, n)
	rowIdx := make([]int, n)
	for r := 0; r < n; r++ {
		values[r] = make([]float64, len(cols))
		for c, col := range cols {
			if col.IsNull(r) {
				values[r][c] = math.NaN()
			} else {
				values[r][c] = col.Value(r)
			}
		}
		if rowCol != nil {
			rowIdx[r] = int(rowCol.Value(r))
		} else {
			rowIdx[r] = r
		}
	}
	return New(names, values, rowIdx, mem)
}

// Release frees the underlying Arrow buffers.
func (f *Frame) Release() {
	for _, c := range f.columns {
		c.Release()
	}
	f.rows.Release()
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return append([]string(nil), f.names...)
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	return f.rows.Len()
}

// NumCols returns the number of value columns.
func (f *Frame) NumCols() int {
	return len(f.columns)
}

// Column returns the named column.
func (f *Frame) Column(name string) (*array.Float64, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Observed returns the non-null values of a column in row order.
func (f *Frame) Observed(name string) []float64 {
	col, ok := f.Column(name)
	if !ok {
		return nil
	}
	out := make([]float64, 0, col.Len()-col.NullN())
	for i := 0; i < col.Len(); i++ {
		if col.IsValid(i) {
			out = append(out, col.Value(i))
		}
	}
	return out
}

// Value returns the cell at (row, col) and whether it is present.
func (f *Frame) Value(row, col int) (float64, bool) {
	c := f.columns[col]
	if c.IsNull(row) {
		return math.NaN(), false
	}
	return c.Value(row), true
}

// Row returns row r with NaN for missing cells.
func (f *Frame) Row(r int) []float64 {
	out := make([]float64, len(f.columns))
	for c := range f.columns {
		out[c], _ = f.Value(r, c)
	}
	return out
}

// Rows returns the whole frame in row-major order.
func (f *Frame) Rows() [][]float64 {
	out := make([][]float64, f.NumRows())
	for r := range out {
		out[r] = f.Row(r)
	}
	return out
}

// SourceRow returns the input row index of row r.
func (f *Frame) SourceRow(r int) int {
	return int(f.rows.Value(r))
}

// SourceRows returns the input row indices of all rows.
func (f *Frame) SourceRows() []int {
	out := make([]int, f.NumRows())
	for r := range out {
		out[r] = f.SourceRow(r)
	}
	return out
}

// NullCount returns the number of missing cells in the named column.
func (f *Frame) NullCount(name string) int {
	col, ok := f.Column(name)
	if !ok {
		return 0
	}
	return col.NullN()
}

// Schema returns the Arrow schema of Record.
func (f *Frame) Schema() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(f.names)+1)
	fields = append(fields, arrow.Field{Name: RowColumn, Type: arrow.PrimitiveTypes.Int64})
	for _, n := range f.names {
		fields = append(fields, arrow.Field{Name: n, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// Record returns the frame as an Arrow record with the row column first.
// The caller must release the record.
func (f *Frame) Record() arrow.Record {
	cols := make([]arrow.Array, 0, len(f.columns)+1)
	cols = append(cols, f.rows)
	for _, c := range f.columns {
		cols = append(cols, c)
	}
	return array.NewRecord(f.Schema(), cols, int64(f.NumRows()))
}
