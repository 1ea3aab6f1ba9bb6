package frame_test

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/huntex/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndAccessors(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	f, err := frame.New(
		[]string{"a", "b"},
		[][]float64{{1, math.NaN()}, {3, 4}, {5, 6}},
		[]int{10, 11, 12},
		mem,
	)
	require.NoError(t, err)
	defer f.Release()

	assert.Equal(t, 3, f.NumRows())
	assert.Equal(t, 2, f.NumCols())
	assert.Equal(t, []string{"a", "b"}, f.Names())
	assert.Equal(t, 1, f.NullCount("b"))
	assert.Equal(t, []float64{4, 6}, f.Observed("b"))
	assert.Equal(t, []int{10, 11, 12}, f.SourceRows())

	v, ok := f.Value(0, 1)
	assert.False(t, ok)
	assert.True(t, math.IsNaN(v))

	assert.Equal(t, []float64{3, 4}, f.Row(1))
	assert.Nil(t, f.Observed("missing"))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := frame.New([]string{"a", "a"}, nil, nil, nil)
	require.Error(t, err)

	_, err = frame.New([]string{"a"}, [][]float64{{1, 2}}, nil, nil)
	require.Error(t, err)

	_, err = frame.New([]string{"a"}, [][]float64{{1}}, []int{1, 2}, nil)
	require.Error(t, err)
}

func TestRecordRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	f, err := frame.New([]string{"x", "y"}, [][]float64{{1, 2}, {math.NaN(), 4}}, []int{5, 9}, mem)
	require.NoError(t, err)
	defer f.Release()

	rec := f.Record()
	defer rec.Release()
	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, int64(3), rec.NumCols())
	assert.Equal(t, frame.RowColumn, rec.Schema().Field(0).Name)

	back, err := frame.FromRecord(rec, mem)
	require.NoError(t, err)
	defer back.Release()

	assert.Equal(t, f.Names(), back.Names())
	assert.Equal(t, []int{5, 9}, back.SourceRows())
	assert.Equal(t, 1, back.NullCount("x"))
	assert.Equal(t, []float64{2, 4}, back.Observed("y"))
}
