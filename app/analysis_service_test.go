package app

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statcore/domain/core"
	"statcore/domain/dataset"
	domainstats "statcore/domain/stats"
	"statcore/internal/config"
	"statcore/internal/testkit"
)

type countingObserver struct {
	mu     sync.Mutex
	calls  map[Kind]int
	failed int
}

func (o *countingObserver) ObserveAnalysis(kind Kind, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = make(map[Kind]int)
	}
	o.calls[kind]++
	if err != nil {
		o.failed++
	}
}

func newService(buf io.Writer) *AnalysisService {
	cfg := config.Default()
	cfg.Workers = 2
	return NewAnalysisService(cfg, zerolog.New(buf))
}

func separatedGroups() *dataset.Dataset {
	groups := testkit.Groups(testkit.GroupGeneratorConfig{Means: []float64{10, 10, 20}, SDs: []float64{1}, N: 20, Seed: 7})
	return testkit.GroupDataset("y", "g", []string{"a", "b", "c"}, groups)
}

// flatGroups has identical group means, so F is 0 and p is 1.
func flatGroups() *dataset.Dataset {
	return testkit.GroupDataset("y", "g", []string{"a", "b", "c"}, [][]float64{{1, 2, 3}, {3, 2, 1}, {2, 1, 3}})
}

func repeatedDataset() *dataset.Dataset {
	subjects := [][]float64{{45, 50, 55}, {42, 42, 45}, {36, 41, 43}, {39, 35, 40}, {51, 55, 59}, {44, 49, 56}}
	conditions := []string{"t1", "t2", "t3"}
	rows := make([]dataset.Row, len(subjects))
	for i, s := range subjects {
		values := make(map[string]float64, len(conditions))
		for j, c := range conditions {
			values[c] = s[j]
		}
		rows[i] = dataset.NewRow(values)
	}
	return dataset.New(conditions, rows)
}

func TestIndependentRunsPostHocWhenSignificant(t *testing.T) {
	var buf bytes.Buffer
	obs := &countingObserver{}
	svc := newService(&buf).WithObserver(obs)

	report, err := svc.Independent(context.Background(), separatedGroups(), IndependentRequest{
		Dependent: "y", Factor: "g", PostHoc: domainstats.PostHocTukey,
	})
	require.NoError(t, err)
	assert.False(t, report.ID == "")
	assert.Equal(t, KindIndependent, report.Kind)
	require.NotNil(t, report.ANOVA)
	assert.Equal(t, "g", report.ANOVA.Factor)
	assert.Less(t, report.ANOVA.SS.P, 0.001)
	assert.Equal(t, domainstats.PostHocTukey, report.ANOVA.PostHocMethod)
	assert.Len(t, report.ANOVA.PostHoc, 3)
	assert.Equal(t, 1, obs.calls[KindIndependent])
	assert.Contains(t, buf.String(), "analysis complete")
	assert.Contains(t, buf.String(), "tukey: 3 comparisons")
}

func TestIndependentPostHocGate(t *testing.T) {
	svc := newService(&bytes.Buffer{})
	req := IndependentRequest{Dependent: "y", Factor: "g", PostHoc: domainstats.PostHocHolm}

	report, err := svc.Independent(context.Background(), flatGroups(), req)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.ANOVA.SS.P, 1e-12)
	assert.Empty(t, report.ANOVA.PostHoc)
	assert.Equal(t, domainstats.PostHocNone, report.ANOVA.PostHocMethod)

	req.Force = true
	report, err = svc.Independent(context.Background(), flatGroups(), req)
	require.NoError(t, err)
	assert.Len(t, report.ANOVA.PostHoc, 3)
	for _, c := range report.ANOVA.PostHoc {
		assert.False(t, c.Significant)
	}
}

func TestIndependentUnknownColumn(t *testing.T) {
	obs := &countingObserver{}
	svc := newService(&bytes.Buffer{}).WithObserver(obs)
	_, err := svc.Independent(context.Background(), flatGroups(), IndependentRequest{Dependent: "nope", Factor: "g"})
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
	assert.Equal(t, 1, obs.failed)
}

func TestRepeatedWithPairedComparisons(t *testing.T) {
	var buf bytes.Buffer
	svc := newService(&buf)
	report, err := svc.Repeated(context.Background(), repeatedDataset(), RepeatedRequest{
		Conditions: []string{"t1", "t2", "t3"}, PostHoc: domainstats.PostHocHolm,
	})
	require.NoError(t, err)
	require.NotNil(t, report.ANOVA.Sphericity)
	assert.InDelta(t, 12.53398058252424, report.ANOVA.SS.F, 1e-9)
	assert.InDelta(t, 0.638379554524316, report.ANOVA.Sphericity.Epsilon, 1e-9)
	require.Len(t, report.ANOVA.PostHoc, 3)
	assert.InDelta(t, 0.16140644025856557, report.ANOVA.PostHoc[0].PAdjusted, 1e-9)
	assert.Contains(t, buf.String(), string(domainstats.AdvisorySphericityCorrected))
}

func TestFactorRecoversSurveyStructure(t *testing.T) {
	gen := testkit.NewSurveyGenerator(testkit.DefaultSurveyConfig())
	svc := newService(&bytes.Buffer{})
	report, err := svc.Factor(context.Background(), gen.Dataset(), FactorRequest{
		Variables: gen.Variables(), Factors: 2, Rotation: domainstats.RotationVarimax,
	})
	require.NoError(t, err)
	sol := report.Factor
	require.NotNil(t, sol)
	assert.Equal(t, 2, sol.NumFactors())
	assert.True(t, sol.Converged)
	assert.ElementsMatch(t, gen.Items(), sol.Items)
}

func TestRegressionFromDataset(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2, 4, 5, 4, 5}
	rows := make([]dataset.Row, len(xs))
	for i := range xs {
		rows[i] = dataset.NewRow(map[string]float64{"x": xs[i], "y": ys[i]})
	}
	rows = append(rows, dataset.NewRow(map[string]float64{"x": 9}))

	svc := newService(&bytes.Buffer{})
	report, err := svc.Regression(context.Background(), dataset.New(nil, rows), RegressionRequest{Dependent: "y", Predictors: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Regression.N)
	assert.InDelta(t, 0.6, report.Regression.Coefficients[1].Estimate, 1e-12)
}

func TestDescriptivesGrouped(t *testing.T) {
	svc := newService(&bytes.Buffer{})
	report, err := svc.Descriptives(context.Background(), flatGroups(), DescriptivesRequest{Variables: []string{"y"}, GroupBy: "g"})
	require.NoError(t, err)
	require.Len(t, report.Descriptives, 3)
	assert.Equal(t, "y | g=a", report.Descriptives[0].Variable)

	_, err = svc.Descriptives(context.Background(), flatGroups(), DescriptivesRequest{})
	assert.True(t, core.IsValidationError(err))
}

func TestBatchKeepsRequestOrder(t *testing.T) {
	groups := testkit.Groups(testkit.GroupGeneratorConfig{Means: []float64{0, 1, 2}, SDs: []float64{1}, N: 10, Seed: 3})
	ds := testkit.GroupDataset("y", "g", []string{"a", "b", "c"}, groups)
	for i := range ds.Rows {
		ds.Rows[i].Values["z"] = ds.Rows[i].Values["y"] * 2
	}
	ds = dataset.New(nil, ds.Rows)

	obs := &countingObserver{}
	svc := newService(io.Discard).WithObserver(obs)
	items, err := svc.Batch(context.Background(), ds, BatchRequest{Dependents: []string{"z", "missing", "y"}, Factor: "g"})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "z", items[0].Dependent)
	assert.Equal(t, "missing", items[1].Dependent)
	assert.Equal(t, "y", items[2].Dependent)
	require.NoError(t, items[0].Err)
	require.NoError(t, items[2].Err)
	assert.True(t, core.IsValidationError(items[1].Err))
	assert.NotEmpty(t, items[1].Error)

	// Scaling the dependent leaves F unchanged.
	assert.InDelta(t, items[2].Report.ANOVA.SS.F, items[0].Report.ANOVA.SS.F, 1e-9)
	assert.Equal(t, 3, obs.calls[KindIndependent])
}

func TestBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newService(io.Discard)
	_, err := svc.Batch(ctx, flatGroups(), BatchRequest{Dependents: []string{"y"}, Factor: "g"})
	assert.ErrorIs(t, err, context.Canceled)
}

func labelledRow(labels map[string]string, values map[string]float64) dataset.Row {
	return dataset.Row{Values: values, Labels: labels}
}

func TestTwoWayIndependentFromDataset(t *testing.T) {
	cells := map[[2]string][]float64{
		{"a1", "b1"}: {4, 5, 6},
		{"a1", "b2"}: {7, 8, 9},
		{"a2", "b1"}: {5, 6, 7},
		{"a2", "b2"}: {10, 11, 12},
	}
	var rows []dataset.Row
	for key, values := range cells {
		for _, v := range values {
			rows = append(rows, labelledRow(map[string]string{"dose": key[0], "sex": key[1]}, map[string]float64{"y": v}))
		}
	}
	ds := dataset.New([]string{"dose", "sex", "y"}, rows)

	var buf bytes.Buffer
	report, err := newService(&buf).TwoWay(context.Background(), ds, TwoWayRequest{
		Design: domainstats.DesignIndependent, Dependent: "y", FactorA: "dose", FactorB: "sex",
	})
	require.NoError(t, err)
	assert.Equal(t, KindTwoWay, report.Kind)
	require.NotNil(t, report.TwoWay)
	assert.InDelta(t, 12.0, report.TwoWay.Effect("dose").F, 1e-9)
	assert.InDelta(t, 48.0, report.TwoWay.Effect("sex").F, 1e-9)
	assert.Contains(t, buf.String(), "analysis complete")
}

func TestTwoWayRepeatedAndMixedFromDataset(t *testing.T) {
	svc := newService(io.Discard)
	ds := repeatedDataset()

	_, err := svc.TwoWay(context.Background(), ds, TwoWayRequest{
		Design: domainstats.DesignRepeated, FactorA: "A", FactorB: "B",
		LevelsA: []string{"x", "y"}, LevelsB: []string{"p", "q"}, Conditions: []string{"t1", "t2", "t3"},
	})
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))

	rows := make([]dataset.Row, len(ds.Rows))
	for i, r := range ds.Rows {
		arm := "control"
		if i%2 == 1 {
			arm = "treated"
		}
		rows[i] = labelledRow(map[string]string{"arm": arm}, r.Values)
	}
	mixed := dataset.New([]string{"arm", "t1", "t2", "t3"}, rows)
	report, err := svc.TwoWay(context.Background(), mixed, TwoWayRequest{
		Design: domainstats.DesignMixed, FactorA: "arm", FactorB: "time", Conditions: []string{"t1", "t2", "t3"},
	})
	require.NoError(t, err)
	require.NotNil(t, report.TwoWay)
	assert.Equal(t, domainstats.DesignMixed, report.TwoWay.Design)
	assert.Equal(t, []string{"control", "treated"}, report.TwoWay.LevelsA)
	within := report.TwoWay.Effect("time")
	require.NotNil(t, within)
	assert.Less(t, within.P, 0.05)
	require.NotNil(t, within.Sphericity)

	report, err = svc.TwoWay(context.Background(), ds, TwoWayRequest{
		Design: domainstats.DesignRepeated, FactorA: "A", FactorB: "B",
		LevelsA: []string{"x"}, LevelsB: []string{"p", "q", "r"}, Conditions: []string{"t1", "t2", "t3"},
	})
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestTTestFromDataset(t *testing.T) {
	svc := newService(io.Discard)

	report, err := svc.TTest(context.Background(), repeatedDataset(), TTestRequest{A: "t3", B: "t1", Paired: true})
	require.NoError(t, err)
	assert.Equal(t, KindTTest, report.Kind)
	require.NotNil(t, report.TTest)
	assert.Equal(t, domainstats.TTestPaired, report.TTest.Kind)
	assert.Greater(t, report.TTest.Comparison.Statistic, 0.0)

	report, err = svc.TTest(context.Background(), separatedGroups(), TTestRequest{Dependent: "y", Factor: "g"})
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))

	two := testkit.GroupDataset("y", "g", []string{"a", "b"}, [][]float64{{1, 2, 3, 4}, {5, 6, 7, 9}})
	report, err = svc.TTest(context.Background(), two, TTestRequest{Dependent: "y", Factor: "g"})
	require.NoError(t, err)
	assert.Equal(t, "a", report.TTest.Comparison.ItemA)
	assert.NotNil(t, report.TTest.Levene)
	assert.True(t, report.TTest.Comparison.Significant)

	_, err = svc.TTest(context.Background(), two, TTestRequest{Dependent: "y", Factor: "g", Paired: true})
	assert.True(t, core.IsValidationError(err))
}
