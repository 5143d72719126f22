package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *Dataset {
	return New(nil, []Row{
		{Values: map[string]float64{"a": 1, "b": 2}, Labels: map[string]string{"g": "x"}},
		{Values: map[string]float64{"a": math.NaN(), "b": 3}, Labels: map[string]string{"g": "y"}},
		{Values: map[string]float64{"a": 4}, Labels: map[string]string{"g": "x"}},
		{Values: map[string]float64{"a": 5, "b": 6, "code": 2}},
	})
}

func TestListwiseExcludesMissing(t *testing.T) {
	ds := sampleDataset()

	data, idx := ds.Listwise("a", "b")
	require.Len(t, data, 2)
	assert.Equal(t, []int{0, 3}, idx)
	assert.Equal(t, []float64{1, 2}, data[0])
	assert.Equal(t, []float64{5, 6}, data[1])
}

func TestColumnMarksMissingWithNaN(t *testing.T) {
	col := sampleDataset().Column("b")
	require.Len(t, col, 4)
	assert.Equal(t, 2.0, col[0])
	assert.True(t, math.IsNaN(col[2]))
}

func TestGroupByAndSplit(t *testing.T) {
	ds := sampleDataset()
	groups := ds.GroupBy("g")
	assert.Equal(t, GroupAssignment{"x", "y", "x", ""}, groups)

	levels, data := ds.Split("a", groups)
	assert.Equal(t, []string{"x", "y"}, levels)
	assert.Equal(t, []float64{1, 4}, data[0])
	assert.Empty(t, data[1])
}

func TestNumericLabelsAreFormatted(t *testing.T) {
	ds := sampleDataset()
	l, ok := ds.Rows[3].Label("code")
	require.True(t, ok)
	assert.Equal(t, "2", l)
}

func TestDeriveColumns(t *testing.T) {
	ds := sampleDataset()
	assert.Equal(t, []string{"a", "b", "code", "g"}, ds.Columns)
	assert.True(t, ds.HasColumn("g"))
	assert.False(t, ds.HasColumn("missing"))
}
