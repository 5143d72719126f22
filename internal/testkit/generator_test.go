package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestSurveyGenerator_Deterministic(t *testing.T) {
	a := NewSurveyGenerator(DefaultSurveyConfig()).Matrix()
	b := NewSurveyGenerator(DefaultSurveyConfig()).Matrix()
	assert.Equal(t, a, b)
	require.Len(t, a, 300)
	assert.Len(t, a[0], 6)
}

func TestSurveyGenerator_Structure(t *testing.T) {
	gen := NewSurveyGenerator(DefaultSurveyConfig())
	m := gen.Matrix()
	col := func(j int) []float64 {
		out := make([]float64, len(m))
		for i, row := range m {
			out[i] = row[j]
		}
		return out
	}
	within := stat.Correlation(col(0), col(1), nil)
	across := stat.Correlation(col(0), col(3), nil)
	assert.Greater(t, within, 0.5)
	assert.Less(t, across, 0.2)
	assert.Equal(t, []string{"f1_q1", "f1_q2", "f1_q3", "f2_q1", "f2_q2", "f2_q3"}, gen.Variables())
}

func TestSurveyGenerator_Missing(t *testing.T) {
	cfg := DefaultSurveyConfig()
	cfg.MissingRate = 0.2
	ds := NewSurveyGenerator(cfg).Dataset()
	rows, _ := ds.Listwise(ds.Columns...)
	assert.Less(t, len(rows), ds.Len())
	assert.NotEmpty(t, rows)
}

func TestGroupsAndRepeated(t *testing.T) {
	groups := Groups(GroupGeneratorConfig{Means: []float64{0, 10}, SDs: []float64{1}, N: 50, Seed: 1})
	require.Len(t, groups, 2)
	assert.InDelta(t, 10, stat.Mean(groups[1], nil), 1)

	ds := GroupDataset("y", "g", []string{"a", "b"}, groups)
	levels, split := ds.Split("y", ds.GroupBy("g"))
	assert.Equal(t, []string{"a", "b"}, levels)
	assert.Len(t, split[0], 50)

	rows := Repeated(RepeatedGeneratorConfig{Means: []float64{1, 2, 3}, Subjects: 20, SubjectSD: 2, ErrorSD: 0.5, Seed: 7})
	require.Len(t, rows, 20)
	assert.Len(t, rows[0], 3)
}
