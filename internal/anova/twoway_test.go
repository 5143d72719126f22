package anova

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
)

func cellObservations(cells map[[2]string][]float64) []Observation {
	var out []Observation
	for key, values := range cells {
		for _, v := range values {
			out = append(out, Observation{A: key[0], B: key[1], Value: v})
		}
	}
	return out
}

func balancedCells() map[[2]string][]float64 {
	return map[[2]string][]float64{
		{"a1", "b1"}: {4, 5, 6},
		{"a1", "b2"}: {7, 8, 9},
		{"a2", "b1"}: {5, 6, 7},
		{"a2", "b2"}: {10, 11, 12},
	}
}

func TestTwoWayIndependentBalanced(t *testing.T) {
	res, err := TwoWayIndependent("y", "dose", "sex", cellObservations(balancedCells()))
	require.NoError(t, err)

	assert.Equal(t, domainstats.DesignIndependent, res.Design)
	assert.Equal(t, []string{"a1", "a2"}, res.LevelsA)
	require.Len(t, res.Sources, 4)
	require.Len(t, res.Cells, 4)
	assert.InDelta(t, 11.0, res.Cells[3].Mean, 1e-12)

	a := res.Effect("dose")
	require.NotNil(t, a)
	assert.InDelta(t, 12.0, a.SS, 1e-9)
	assert.InDelta(t, 12.0, a.F, 1e-9)
	assert.InDelta(t, 0.008516263370901282, a.P, 1e-7)
	assert.InDelta(t, 0.6, a.PartialEtaSquared, 1e-9)
	assert.Equal(t, "Error", a.ErrorTerm)

	b := res.Effect("sex")
	require.NotNil(t, b)
	assert.InDelta(t, 48.0, b.F, 1e-9)

	ab := res.Effect("dose x sex")
	require.NotNil(t, ab)
	assert.InDelta(t, 3.0, ab.SS, 1e-9)
	assert.InDelta(t, 0.1215029188171131, ab.P, 1e-7)

	e := res.Sources[3]
	assert.True(t, e.IsError)
	assert.InDelta(t, 8.0, e.SS, 1e-9)
	assert.Equal(t, 8, e.DF)
	assert.Nil(t, res.Effect("Error"))
}

func TestTwoWayIndependentUnbalancedUsesTypeIII(t *testing.T) {
	cells := balancedCells()
	cells[[2]string{"a1", "b1"}] = append(cells[[2]string{"a1", "b1"}], 3)
	cells[[2]string{"a2", "b2"}] = append(cells[[2]string{"a2", "b2"}], 15, 9)

	res, err := TwoWayIndependent("y", "A", "B", cellObservations(cells))
	require.NoError(t, err)

	// 2x2 Type III SS_A equals the unweighted-means contrast
	// (4.5+8-6-11.4)^2 / (1/4+1/3+1/3+1/5)
	assert.InDelta(t, 4.9*4.9/(1.0/4+1.0/3+1.0/3+1.0/5), res.Effect("A").SS, 1e-8)
	assert.InDelta(t, 70.93432835820896, res.Effect("B").SS, 1e-8)
	assert.InDelta(t, 3.232835820895513, res.Effect("A x B").SS, 1e-8)
	assert.InDelta(t, 30.2, res.Sources[3].SS, 1e-8)
	assert.Equal(t, 11, res.Sources[3].DF)
	assert.InDelta(t, 0.017320808542946556, res.Effect("A").P, 1e-7)
}

func TestTwoWayIndependentThreeByTwo(t *testing.T) {
	obs := []Observation{
		{"x", "p", 2}, {"x", "p", 3}, {"x", "q", 5}, {"x", "q", 6}, {"x", "q", 4},
		{"y", "p", 4}, {"y", "p", 6}, {"y", "q", 9}, {"y", "q", 8},
		{"z", "p", 7}, {"z", "p", 8}, {"z", "p", 6}, {"z", "q", 7}, {"z", "q", 9},
		{"z", "q", math.NaN()}, {"", "q", 100},
	}
	res, err := TwoWayIndependent("y", "A", "B", obs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Effect("A").DF)
	assert.Equal(t, 2, res.Effect("A x B").DF)
	assert.InDelta(t, 37.3235294117647, res.Effect("A").SS, 1e-8)
	assert.InDelta(t, 16.33333333333333, res.Effect("B").F, 1e-8)
	assert.InDelta(t, 0.26772921441024244, res.Effect("A x B").P, 1e-7)
	assert.InDelta(t, 9.0, res.Sources[3].SS, 1e-8)
}

func TestTwoWayIndependentValidation(t *testing.T) {
	cells := balancedCells()
	delete(cells, [2]string{"a2", "b2"})
	_, err := TwoWayIndependent("y", "A", "B", cellObservations(cells))
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))

	_, err = TwoWayIndependent("y", "A", "B", []Observation{{"a", "p", 1}, {"a", "q", 2}})
	assert.True(t, core.IsValidationError(err))

	one := map[[2]string][]float64{{"a1", "b1"}: {1}, {"a1", "b2"}: {2}, {"a2", "b1"}: {3}, {"a2", "b2"}: {4}}
	_, err = TwoWayIndependent("y", "A", "B", cellObservations(one))
	assert.True(t, core.IsValidationError(err))
}

func TestTwoWayIndependentBalancedPartition(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.IntRange(2, 4).Draw(rt, "a")
		b := rapid.IntRange(2, 3).Draw(rt, "b")
		n := rapid.IntRange(2, 5).Draw(rt, "n")
		var obs []Observation
		var all []float64
		for i := 0; i < a; i++ {
			for j := 0; j < b; j++ {
				values := rapid.SliceOfN(rapid.Float64Range(-20, 20), n, n).Draw(rt, "cell")
				for _, v := range values {
					obs = append(obs, Observation{A: string(rune('a' + i)), B: string(rune('p' + j)), Value: v})
				}
				all = append(all, values...)
			}
		}
		res, err := TwoWayIndependent("y", "A", "B", obs)
		if err != nil {
			return
		}
		var total, mean float64
		for _, v := range all {
			mean += v / float64(len(all))
		}
		for _, v := range all {
			total += (v - mean) * (v - mean)
		}
		var sum float64
		for _, s := range res.Sources {
			sum += s.SS
			assert.GreaterOrEqual(rt, s.SS, 0.0)
		}
		assert.InDelta(rt, total, sum, 1e-6*math.Max(1, total))
	})
}

func TestTwoWayRepeatedTwoByTwo(t *testing.T) {
	subjects := [][]float64{
		{10, 12, 14, 18},
		{9, 11, 13, 16},
		{12, 13, 15, 20},
		{8, 10, 12, 15},
		{11, 14, 14, 19},
	}
	res, err := TwoWayRepeated("time", "load", []string{"am", "pm"}, []string{"low", "high"}, subjects)
	require.NoError(t, err)

	assert.Equal(t, domainstats.DesignRepeated, res.Design)
	require.Len(t, res.Sources, 6)
	a := res.Effect("time")
	require.NotNil(t, a)
	assert.InDelta(t, 105.8, a.SS, 1e-9)
	assert.Equal(t, "time x Subject", a.ErrorTerm)
	assert.InDelta(t, 0.7, res.Sources[1].SS, 1e-9)
	assert.Equal(t, 4, res.Sources[1].DF)
	assert.InDelta(t, 604.571428571426, a.F, 1e-6)
	assert.InDelta(t, 0.9934272300469483, a.PartialEtaSquared, 1e-9)

	ab := res.Effect("time x load")
	require.NotNil(t, ab)
	assert.InDelta(t, 13.333333333334192, ab.F, 1e-6)
	assert.InDelta(t, 0.0217429784652344, ab.P, 1e-7)

	// two-level effects are always spherical
	for _, s := range res.Sources {
		if !s.IsError {
			require.NotNil(t, s.Sphericity)
			assert.Equal(t, 1.0, s.Sphericity.Epsilon)
		}
	}
	assert.Empty(t, res.Advisories)
}

func TestTwoWayRepeatedSphericityPerEffect(t *testing.T) {
	subjects := [][]float64{
		{10, 12, 15, 14, 15, 20},
		{9, 11, 13, 13, 14, 16},
		{12, 13, 17, 15, 18, 22},
		{8, 10, 11, 12, 12, 15},
		{11, 14, 14, 19, 17, 21},
		{10, 10, 16, 13, 15, 19},
		{math.NaN(), 1, 1, 1, 1, 1},
	}
	res, err := TwoWayRepeated("A", "B", []string{"a1", "a2"}, []string{"b1", "b2", "b3"}, subjects)
	require.NoError(t, err)

	b := res.Effect("B")
	require.NotNil(t, b)
	assert.InDelta(t, 124.38888888888884, b.SS, 1e-9)
	assert.InDelta(t, 40.70909090909072, b.F, 1e-6)
	assert.InDelta(t, 0.5687715287074503, b.Sphericity.Epsilon, 1e-9)
	assert.InDelta(t, 0.0007481262284280531, b.Sphericity.PAdjusted, 1e-7)

	ab := res.Effect("A x B")
	assert.InDelta(t, 0.6322749488717117, ab.Sphericity.Epsilon, 1e-9)
	assert.InDelta(t, 0.4303765704790896, ab.Sphericity.PAdjusted, 1e-7)

	assert.Equal(t, 1.0, res.Effect("A").Sphericity.Epsilon)
	assert.Len(t, res.Advisories, 2)
}

func TestTwoWayRepeatedValidation(t *testing.T) {
	_, err := TwoWayRepeated("A", "B", []string{"a1"}, []string{"b1", "b2"}, [][]float64{{1, 2}, {3, 4}})
	assert.True(t, core.IsValidationError(err))

	_, err = TwoWayRepeated("A", "B", []string{"a1", "a2"}, []string{"b1", "b2"}, [][]float64{{1, 2, 3}})
	assert.True(t, core.IsValidationError(err))

	_, err = TwoWayRepeated("A", "B", []string{"a1", "a2"}, []string{"b1", "b2"}, [][]float64{{1, 2, 3, 4}})
	assert.True(t, core.IsValidationError(err))
}

func TestTwoWayMixed(t *testing.T) {
	groups := []SubjectGroup{
		{Label: "control", Subjects: [][]float64{{5, 7, 9}, {6, 6, 10}, {4, 7, 8}, {5, 8, 11}}},
		{Label: "treated", Subjects: [][]float64{{7, 8, 8}, {6, 9, 9}, {8, 9, 10}, {7, 7, 9}, {6, 8, 8}}},
		{Label: "empty", Subjects: [][]float64{{1, math.NaN(), 2}}},
	}
	res, err := TwoWayMixed("arm", "visit", []string{"v1", "v2", "v3"}, groups)
	require.NoError(t, err)

	assert.Equal(t, domainstats.DesignMixed, res.Design)
	assert.Equal(t, []string{"control", "treated"}, res.LevelsA)
	require.Len(t, res.Cells, 6)
	require.Len(t, res.Sources, 5)

	between := res.Effect("arm")
	require.NotNil(t, between)
	assert.InDelta(t, 3.9185185185185176, between.SS, 1e-9)
	assert.InDelta(t, 0.12902778259508357, between.P, 1e-7)
	assert.Nil(t, between.Sphericity)
	assert.InDelta(t, 9.26666666666667, res.Sources[1].SS, 1e-9)
	assert.Equal(t, 7, res.Sources[1].DF)

	within := res.Effect("visit")
	require.NotNil(t, within)
	assert.InDelta(t, 43.62962962962962, within.SS, 1e-9)
	assert.InDelta(t, 37.55009107468126, within.F, 1e-6)
	assert.InDelta(t, 0.8376857271499326, within.Sphericity.Epsilon, 1e-9)

	inter := res.Effect("arm x visit")
	require.NotNil(t, inter)
	assert.InDelta(t, 6.515482695810582, inter.F, 1e-6)
	assert.InDelta(t, 0.015334003478435531, inter.Sphericity.PAdjusted, 1e-7)
	assert.InDelta(t, 8.133333333333326, res.Sources[4].SS, 1e-9)
	assert.Equal(t, 14, res.Sources[4].DF)

	var dropped bool
	for _, a := range res.Advisories {
		if a.Code == domainstats.AdvisoryGroupDropped {
			dropped = a.Subject == "empty"
		}
	}
	assert.True(t, dropped)
}

func TestTwoWayMixedValidation(t *testing.T) {
	_, err := TwoWayMixed("arm", "visit", []string{"v1"}, nil)
	assert.True(t, core.IsValidationError(err))

	_, err = TwoWayMixed("arm", "visit", []string{"v1", "v2"}, []SubjectGroup{
		{Label: "a", Subjects: [][]float64{{1, 2}}},
	})
	assert.True(t, core.IsValidationError(err))

	_, err = TwoWayMixed("arm", "visit", []string{"v1", "v2"}, []SubjectGroup{
		{Label: "a", Subjects: [][]float64{{1, 2}}},
		{Label: "b", Subjects: [][]float64{{3, 4}}},
	})
	assert.True(t, core.IsValidationError(err))
}
