package posthoc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
	"statcore/internal/anova"
)

func threeGroups() []anova.Group {
	return []anova.Group{
		{Label: "A", Values: []float64{7, 9, 10, 11, 13}},
		{Label: "B", Values: []float64{9, 11, 12, 13, 15}},
		{Label: "C", Values: []float64{17, 19, 20, 21, 23}},
	}
}

func byPair(t *testing.T, res *Result) map[string]domainstats.ComparisonRecord {
	t.Helper()
	out := make(map[string]domainstats.ComparisonRecord, len(res.Comparisons))
	for _, c := range res.Comparisons {
		out[c.ItemA+"-"+c.ItemB] = c
	}
	return out
}

func TestTukeyEndToEnd(t *testing.T) {
	omnibus, err := anova.Independent("score", threeGroups(), anova.DefaultOptions())
	require.NoError(t, err)
	require.Less(t, omnibus.SS.P, 0.05)

	opts := Options{Method: domainstats.PostHocTukey, Alpha: 0.05}
	require.True(t, ShouldRun(omnibus, opts))

	res, err := Independent(threeGroups(), ErrorTermOf(omnibus), opts)
	require.NoError(t, err)
	require.Len(t, res.Comparisons, 3)
	pairs := byPair(t, res)

	ab := pairs["A-B"]
	assert.Equal(t, domainstats.StatisticQ, ab.StatisticKind)
	assert.InDelta(t, 2.0, ab.Statistic, 1e-12)
	assert.InDelta(t, 0.365, ab.PAdjusted, 0.01)
	assert.Equal(t, ab.PRaw, ab.PAdjusted)
	assert.False(t, ab.Significant)

	assert.InDelta(t, 10.0, pairs["A-C"].Statistic, 1e-12)
	assert.True(t, pairs["A-C"].Significant)
	assert.InDelta(t, 8.0, pairs["B-C"].Statistic, 1e-12)
	assert.True(t, pairs["B-C"].Significant)
	assert.Equal(t, 5, pairs["B-C"].NA)
	assert.Equal(t, 12.0, pairs["B-C"].DF)
}

func TestWelchWithCorrections(t *testing.T) {
	term := ErrorTerm{MS: 5, DF: 12}

	bonf, err := Independent(threeGroups(), term, Options{Method: domainstats.PostHocBonferroni})
	require.NoError(t, err)
	pairs := byPair(t, bonf)
	ab := pairs["A-B"]
	assert.Equal(t, domainstats.StatisticT, ab.StatisticKind)
	assert.InDelta(t, -math.Sqrt2, ab.Statistic, 1e-12)
	assert.InDelta(t, 8.0, ab.DF, 1e-9)
	assert.InDelta(t, 0.19501552810007583, ab.PRaw, 1e-6)
	assert.InDelta(t, 3*0.19501552810007583, ab.PAdjusted, 3e-6)

	holm, err := Independent(threeGroups(), term, Options{Method: domainstats.PostHocHolm})
	require.NoError(t, err)
	for key, h := range byPair(t, holm) {
		assert.LessOrEqual(t, h.PAdjusted, pairs[key].PAdjusted+1e-12, key)
		assert.GreaterOrEqual(t, h.PAdjusted, h.PRaw, key)
	}
	assert.InDelta(t, 0.19501552810007583, byPair(t, holm)["A-B"].PAdjusted, 1e-6)
}

func TestPairsWithTooFewObservationsAreSkipped(t *testing.T) {
	groups := append(threeGroups(), anova.Group{Label: "D", Values: []float64{14, math.NaN()}})
	res, err := Independent(groups, ErrorTerm{MS: 5, DF: 13}, Options{Method: domainstats.PostHocBonferroni})
	require.NoError(t, err)
	assert.Len(t, res.Comparisons, 3)
	require.Len(t, res.Advisories, 3)
	for _, a := range res.Advisories {
		assert.Equal(t, domainstats.AdvisoryPairSkipped, a.Code)
	}
	// m is the realized comparison count
	for _, c := range res.Comparisons {
		assert.InDelta(t, math.Min(1, 3*c.PRaw), c.PAdjusted, 1e-12)
	}
}

func conditions() ([]string, [][]float64) {
	return []string{"t1", "t2", "t3"}, [][]float64{
		{45, 42, 36, 39, 51, 44},
		{50, 42, 41, 35, 55, 49},
		{55, 45, 43, 40, 59, 56},
	}
}

func TestRepeatedPairedHolm(t *testing.T) {
	labels, cols := conditions()
	res, err := Repeated(labels, cols, ErrorTerm{MS: 5.722, DF: 10}, Options{Method: domainstats.PostHocHolm, Alpha: 0.05})
	require.NoError(t, err)
	pairs := byPair(t, res)
	require.Len(t, pairs, 3)

	assert.InDelta(t, -1.6425107995440105, pairs["t1-t2"].Statistic, 1e-9)
	assert.Equal(t, 5.0, pairs["t1-t2"].DF)
	assert.InDelta(t, 0.16140644025856557, pairs["t1-t2"].PAdjusted, 1e-5)
	assert.InDelta(t, 0.020311417151305567, pairs["t1-t3"].PAdjusted, 1e-5)
	assert.InDelta(t, 0.005291942111986777, pairs["t2-t3"].PAdjusted, 1e-5)
	assert.False(t, pairs["t1-t2"].Significant)
	assert.True(t, pairs["t2-t3"].Significant)
}

func TestRepeatedPairwiseCompleteness(t *testing.T) {
	labels, cols := conditions()
	cols[0] = []float64{45, math.NaN(), math.NaN(), math.NaN(), math.NaN(), 44}
	cols[0][5] = math.NaN()
	res, err := Repeated(labels, cols, ErrorTerm{MS: 5, DF: 10}, Options{Method: domainstats.PostHocBonferroni})
	require.NoError(t, err)
	assert.Len(t, res.Comparisons, 1)
	assert.Len(t, res.Advisories, 2)
	assert.InDelta(t, math.Min(1, res.Comparisons[0].PRaw), res.Comparisons[0].PAdjusted, 1e-12)
}

func TestRepeatedTukeyUsesCompleteSubjects(t *testing.T) {
	labels, cols := conditions()
	res, err := Repeated(labels, cols, ErrorTerm{MS: 57.222222222222285 / 10, DF: 10}, Options{Method: domainstats.PostHocTukey})
	require.NoError(t, err)
	require.Len(t, res.Comparisons, 3)
	se := math.Sqrt(5.7222222222222285 / 6)
	c := byPair(t, res)["t1-t3"]
	assert.InDelta(t, math.Abs(c.MeanA-c.MeanB)/se, c.Statistic, 1e-9)
	assert.Equal(t, 6, c.NA)
}

func TestMethodNoneAndValidation(t *testing.T) {
	res, err := Independent(threeGroups(), ErrorTerm{MS: 5, DF: 12}, Options{Method: domainstats.PostHocNone})
	require.NoError(t, err)
	assert.Empty(t, res.Comparisons)
	assert.False(t, ShouldRun(&domainstats.ANOVAResult{}, Options{Method: domainstats.PostHocNone, Force: true}))
	assert.True(t, ShouldRun(&domainstats.ANOVAResult{SS: domainstats.SumsOfSquares{P: 0.5}}, Options{Method: domainstats.PostHocHolm, Force: true}))

	_, err = Independent(threeGroups(), ErrorTerm{MS: 5, DF: 0}, Options{Method: domainstats.PostHocTukey})
	assert.True(t, core.IsValidationError(err))

	_, err = Independent(threeGroups(), ErrorTerm{MS: 5, DF: 12}, Options{Method: domainstats.PostHocMethod(99)})
	assert.ErrorIs(t, err, core.ErrUnknownMethod)
}
