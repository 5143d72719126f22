package anova

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"pgregory.net/rapid"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
)

func threeGroups() []Group {
	return []Group{
		{Label: "A", Values: []float64{7, 9, 10, 11, 13}},
		{Label: "B", Values: []float64{9, 11, 12, 13, 15}},
		{Label: "C", Values: []float64{17, 19, 20, 21, 23}},
	}
}

func TestIndependentKnownValues(t *testing.T) {
	res, err := Independent("score", threeGroups(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, domainstats.DesignIndependent, res.Design)
	assert.InDelta(t, 280.0, res.SS.Between, 1e-9)
	assert.InDelta(t, 60.0, res.SS.Within, 1e-9)
	assert.InDelta(t, 340.0, res.SS.Total, 1e-9)
	assert.Equal(t, 2, res.SS.DFBetween)
	assert.Equal(t, 12, res.SS.DFWithin)
	assert.InDelta(t, 5.0, res.SS.MSWithin, 1e-12)
	assert.InDelta(t, 28.0, res.SS.F, 1e-9)
	// F(2, d2) has a closed-form tail: (d2/(d2+2F))^(d2/2)
	assert.InDelta(t, math.Pow(12.0/68.0, 6), res.SS.P, 1e-9)

	assert.InDelta(t, 280.0/340.0, res.Effects.EtaSquared, 1e-12)
	assert.InDelta(t, 270.0/345.0, res.Effects.OmegaSquared, 1e-12)
	assert.False(t, res.Effects.OmegaClipped)

	require.Len(t, res.Groups, 3)
	assert.InDelta(t, 10.0, res.Groups[0].Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5), res.Groups[0].SD, 1e-12)
	assert.InDelta(t, 1.0, res.Groups[0].SE, 1e-12)

	require.NotNil(t, res.Levene)
	assert.InDelta(t, 0.0, res.Levene.F, 1e-12)
	assert.Empty(t, res.Advisories)
}

func TestIndependentClipsNegativeOmega(t *testing.T) {
	groups := []Group{
		{Label: "x", Values: []float64{1, 2, 3}},
		{Label: "y", Values: []float64{3, 2, 1}},
	}
	res, err := Independent("v", groups, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Effects.OmegaClipped)
	assert.Equal(t, 0.0, res.Effects.OmegaSquared)
	assert.Less(t, res.Effects.RawOmegaSquared, 0.0)
	require.NotEmpty(t, res.Advisories)
	assert.Equal(t, domainstats.AdvisoryOmegaClipped, res.Advisories[0].Code)
}

func TestIndependentDropsEmptyGroups(t *testing.T) {
	groups := append(threeGroups(), Group{Label: "D", Values: []float64{math.NaN()}})
	res, err := Independent("score", groups, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, res.Groups, 3)
	require.NotEmpty(t, res.Advisories)
	assert.Equal(t, domainstats.AdvisoryGroupDropped, res.Advisories[0].Code)
	assert.Equal(t, "D", res.Advisories[0].Subject)
}

func TestIndependentValidation(t *testing.T) {
	tests := []struct {
		name   string
		groups []Group
		field  string
	}{
		{"single group", []Group{{Label: "a", Values: []float64{1, 2, 3}}}, "groups"},
		{"no within df", []Group{{Label: "a", Values: []float64{1}}, {Label: "b", Values: []float64{2}}}, "df_within"},
		{"no variance", []Group{{Label: "a", Values: []float64{4, 4}}, {Label: "b", Values: []float64{4, 4}}}, "y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Independent("y", tt.groups, DefaultOptions())
			require.Error(t, err)
			assert.True(t, core.IsValidationError(err))
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLeveneBrownForsythe(t *testing.T) {
	groups := []Group{
		{Label: "g1", Values: []float64{1, 2, 3, 4, 5}},
		{Label: "g2", Values: []float64{10, 20, 30, 40, 50}},
		{Label: "g3", Values: []float64{3, 5, 7, 9, 11}},
	}
	res, err := Levene(groups, CenterMedian)
	require.NoError(t, err)
	assert.Equal(t, "median", res.Center)
	assert.Equal(t, 2, res.DF1)
	assert.Equal(t, 12, res.DF2)
	assert.InDelta(t, 7.151020408163264, res.F, 1e-9)
	assert.InDelta(t, 0.009018842277231053, res.P, 1e-6)

	anovaRes, err := Independent("y", groups, DefaultOptions())
	require.NoError(t, err)
	codes := make([]domainstats.AdvisoryCode, 0, len(anovaRes.Advisories))
	for _, a := range anovaRes.Advisories {
		codes = append(codes, a.Code)
	}
	assert.Contains(t, codes, domainstats.AdvisoryHeterogeneousVariance)
}

func TestLeveneRejectsUnknownCenter(t *testing.T) {
	_, err := Levene(threeGroups(), Center("trimmed"))
	assert.ErrorIs(t, err, core.ErrUnknownMethod)

	_, err = Independent("y", threeGroups(), Options{LeveneCenter: "trimmed"})
	assert.ErrorIs(t, err, core.ErrUnknownMethod)
}

func repeatedData() ([]string, [][]float64) {
	return []string{"t1", "t2", "t3"}, [][]float64{
		{45, 50, 55},
		{42, 42, 45},
		{36, 41, 43},
		{39, 35, 40},
		{51, 55, 59},
		{44, 49, 56},
	}
}

func TestRepeatedKnownValues(t *testing.T) {
	conds, rows := repeatedData()
	res, err := Repeated(conds, rows)
	require.NoError(t, err)

	assert.Equal(t, domainstats.DesignRepeated, res.Design)
	assert.InDelta(t, 858.9444444444443, res.SS.Total, 1e-9)
	assert.InDelta(t, 658.2777777777778, res.SS.Subjects, 1e-9)
	assert.InDelta(t, 143.44444444444423, res.SS.Between, 1e-9)
	assert.InDelta(t, 57.222222222222285, res.SS.Within, 1e-9)
	assert.Equal(t, 2, res.SS.DFBetween)
	assert.Equal(t, 10, res.SS.DFWithin)
	assert.InDelta(t, 12.53398058252424, res.SS.F, 1e-9)
	assert.InDelta(t, 0.0018855906470255572, res.SS.P, 1e-7)
	assert.InDelta(t, 0.7148394241417492, res.Effects.PartialEtaSquared, 1e-9)
	assert.InDelta(t, 0.1526599845797993, res.Effects.OmegaSquared, 1e-9)

	require.NotNil(t, res.Sphericity)
	assert.InDelta(t, 0.638379554524316, res.Sphericity.Epsilon, 1e-9)
	assert.InDelta(t, 0.638379554524316*2, res.Sphericity.DFConditionsAdj, 1e-9)
	assert.InDelta(t, 0.638379554524316*10, res.Sphericity.DFErrorAdj, 1e-9)
	assert.InDelta(t, 0.008985215284780869, res.Sphericity.PAdjusted, 1e-6)
	assert.Equal(t, domainstats.AdvisorySphericityCorrected, res.Advisories[len(res.Advisories)-1].Code)
}

func TestRepeatedListwiseAndValidation(t *testing.T) {
	conds, rows := repeatedData()
	withMissing := append([][]float64{{math.NaN(), 1, 2}}, rows...)
	a, err := Repeated(conds, withMissing)
	require.NoError(t, err)
	b, err := Repeated(conds, rows)
	require.NoError(t, err)
	assert.InDelta(t, b.SS.F, a.SS.F, 1e-12)

	_, err = Repeated([]string{"a", "b"}, [][]float64{{1, 2}, {3, 5}})
	assert.True(t, core.IsValidationError(err))

	_, err = Repeated(conds, rows[:1])
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = Repeated(conds, [][]float64{{1, 2}})
	assert.True(t, core.IsValidationError(err))
}

func TestGreenhouseGeisserCompoundSymmetry(t *testing.T) {
	cov := mat.NewSymDense(3, []float64{
		4, 2, 2,
		2, 4, 2,
		2, 2, 4,
	})
	assert.InDelta(t, 1.0, GreenhouseGeisser(cov), 1e-3)
}

func TestGreenhouseGeisserLowerBound(t *testing.T) {
	// One dominant difference direction pushes epsilon to 1/(k-1).
	cov := mat.NewSymDense(3, []float64{
		1, 0, 0,
		0, 1e-9, 0,
		0, 0, 1e-9,
	})
	eps := GreenhouseGeisser(cov)
	assert.GreaterOrEqual(t, eps, 0.5)
	assert.Less(t, eps, 0.8)
}

func drawGroups(rt *rapid.T) []Group {
	k := rapid.IntRange(2, 5).Draw(rt, "k")
	groups := make([]Group, k)
	for i := range groups {
		groups[i] = Group{
			Label:  string(rune('a' + i)),
			Values: rapid.SliceOfN(rapid.Float64Range(-100, 100), 2, 12).Draw(rt, "values"),
		}
	}
	return groups
}

func TestIndependentSumsOfSquaresPartition(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		groups := drawGroups(rt)
		res, err := Independent("y", groups, DefaultOptions())
		if err != nil {
			if !core.IsValidationError(err) {
				rt.Fatalf("unexpected error: %v", err)
			}
			return
		}
		sum := res.SS.Between + res.SS.Within
		if math.Abs(sum-res.SS.Total) > 1e-6*math.Max(1, res.SS.Total) {
			rt.Fatalf("SSb+SSw=%v, SSt=%v", sum, res.SS.Total)
		}
		if res.Effects.EtaSquared < 0 || res.Effects.EtaSquared > 1+1e-12 {
			rt.Fatalf("eta squared %v out of range", res.Effects.EtaSquared)
		}
		if res.Effects.OmegaSquared < 0 {
			rt.Fatalf("negative omega squared %v", res.Effects.OmegaSquared)
		}
	})
}

func TestRepeatedSumsOfSquaresPartition(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(3, 5).Draw(rt, "k")
		n := rapid.IntRange(2, 10).Draw(rt, "n")
		conds := make([]string, k)
		for j := range conds {
			conds[j] = string(rune('a' + j))
		}
		rows := make([][]float64, n)
		for i := range rows {
			rows[i] = rapid.SliceOfN(rapid.Float64Range(-50, 50), k, k).Draw(rt, "row")
		}
		res, err := Repeated(conds, rows)
		if err != nil {
			return
		}
		sum := res.SS.Subjects + res.SS.Between + res.SS.Within
		if math.Abs(sum-res.SS.Total) > 1e-6*math.Max(1, res.SS.Total) {
			rt.Fatalf("partition %v != total %v", sum, res.SS.Total)
		}
		eps := res.Sphericity.Epsilon
		if eps < 1/float64(k-1)-1e-12 || eps > 1+1e-12 {
			rt.Fatalf("epsilon %v outside [1/(k-1), 1]", eps)
		}
	})
}
