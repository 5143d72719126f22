// Package posthoc generates pairwise comparisons after a one-way ANOVA.
//
// Tukey-Kramer comparisons use the studentized range distribution and are
// self-adjusting. Holm and Bonferroni comparisons use Welch t-tests for
// independent groups and paired t-tests for repeated conditions, corrected
// over the comparisons that were actually computed.
package posthoc

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
	"statcore/internal/anova"
	"statcore/internal/correction"
	"statcore/internal/distributions"
)

// MinPairObservations is the fewest valid observations either side of a
// comparison may have.
const MinPairObservations = 2

// ErrorTerm is the omnibus error mean square and its degrees of freedom
type ErrorTerm struct {
	MS float64
	DF int
}

// ErrorTermOf extracts the error term of an ANOVA result
func ErrorTermOf(r *domainstats.ANOVAResult) ErrorTerm {
	return ErrorTerm{MS: r.SS.MSWithin, DF: r.SS.DFWithin}
}

// Options selects the comparison method and significance level
type Options struct {
	Method domainstats.PostHocMethod
	Alpha  float64
	// Force runs comparisons even when the omnibus test is not significant.
	Force bool
}

// ShouldRun reports whether comparisons follow the given omnibus result
func ShouldRun(r *domainstats.ANOVAResult, opts Options) bool {
	if opts.Method == domainstats.PostHocNone || r == nil {
		return false
	}
	return opts.Force || r.Significant(alphaOr(opts.Alpha))
}

func alphaOr(alpha float64) float64 {
	if alpha <= 0 || alpha >= 1 {
		return 0.05
	}
	return alpha
}

// Result is the comparison family plus anything skipped along the way
type Result struct {
	Method      domainstats.PostHocMethod
	Comparisons []domainstats.ComparisonRecord
	Advisories  []domainstats.Advisory
}

type sample struct {
	label string
	n     int
	mean  float64
	vari  float64
}

func describe(label string, values []float64) sample {
	s := sample{label: label, n: len(values)}
	if s.n == 0 {
		return s
	}
	s.mean, _ = stats.Mean(values)
	if s.n > 1 {
		s.vari, _ = stats.SampleVariance(values)
	}
	return s
}

func skipped(a, b, reason string) domainstats.Advisory {
	return domainstats.Advisory{
		Code:    domainstats.AdvisoryPairSkipped,
		Subject: a + " vs " + b,
		Detail:  reason,
	}
}

// Independent compares every pair of groups
func Independent(groups []anova.Group, term ErrorTerm, opts Options) (*Result, error) {
	samples := make([]sample, 0, len(groups))
	for _, g := range groups {
		values := validValues(g.Values)
		if len(values) == 0 {
			continue
		}
		samples = append(samples, describe(g.Label, values))
	}

	res := &Result{Method: opts.Method}
	switch opts.Method {
	case domainstats.PostHocNone:
		return res, nil
	case domainstats.PostHocTukey:
		if err := term.validate(); err != nil {
			return nil, err
		}
		tukey(res, samples, term, len(samples))
	case domainstats.PostHocHolm, domainstats.PostHocBonferroni:
		for i := 0; i < len(samples); i++ {
			for j := i + 1; j < len(samples); j++ {
				welch(res, samples[i], samples[j])
			}
		}
		adjust(res)
	default:
		return nil, core.NewUnknownMethodError("post-hoc method", opts.Method.String())
	}

	markSignificant(res, alphaOr(opts.Alpha))
	return res, nil
}

// Repeated compares every pair of conditions. columns[j] holds condition j
// across subjects and may contain NaN. Tukey uses subjects complete on all
// conditions; paired t-tests use subjects complete on each pair.
func Repeated(conditions []string, columns [][]float64, term ErrorTerm, opts Options) (*Result, error) {
	if len(columns) != len(conditions) {
		return nil, core.NewValidationError("conditions", "column count does not match condition count", float64(len(columns)), float64(len(conditions)))
	}

	res := &Result{Method: opts.Method}
	switch opts.Method {
	case domainstats.PostHocNone:
		return res, nil
	case domainstats.PostHocTukey:
		if err := term.validate(); err != nil {
			return nil, err
		}
		complete := completeRows(columns)
		samples := make([]sample, len(conditions))
		for j, label := range conditions {
			samples[j] = describe(label, complete[j])
		}
		tukey(res, samples, term, len(conditions))
	case domainstats.PostHocHolm, domainstats.PostHocBonferroni:
		for i := 0; i < len(conditions); i++ {
			for j := i + 1; j < len(conditions); j++ {
				paired(res, conditions[i], conditions[j], columns[i], columns[j])
			}
		}
		adjust(res)
	default:
		return nil, core.NewUnknownMethodError("post-hoc method", opts.Method.String())
	}

	markSignificant(res, alphaOr(opts.Alpha))
	return res, nil
}

func (t ErrorTerm) validate() error {
	if t.DF <= 0 {
		return core.NewValidationError("df_error", "error degrees of freedom must be positive", float64(t.DF), 1)
	}
	if t.MS < 0 || math.IsNaN(t.MS) {
		return core.NewValidationError("ms_error", "error mean square must be non-negative", t.MS, 0)
	}
	return nil
}

// tukey fills q-statistics for all pairs; k is the family size used by the
// studentized range.
func tukey(res *Result, samples []sample, term ErrorTerm, k int) {
	for i := 0; i < len(samples); i++ {
		for j := i + 1; j < len(samples); j++ {
			a, b := samples[i], samples[j]
			if a.n < MinPairObservations || b.n < MinPairObservations {
				res.Advisories = append(res.Advisories, skipped(a.label, b.label, "fewer than two valid observations"))
				continue
			}
			se := math.Sqrt(term.MS * (1/float64(a.n) + 1/float64(b.n)) / 2)
			if se == 0 {
				res.Advisories = append(res.Advisories, skipped(a.label, b.label, "zero standard error"))
				continue
			}
			q := math.Abs(a.mean-b.mean) / se
			p := distributions.StudentizedRangeP(q, float64(k), float64(term.DF))
			res.Comparisons = append(res.Comparisons, domainstats.ComparisonRecord{
				ItemA:         a.label,
				ItemB:         b.label,
				MeanA:         a.mean,
				MeanB:         b.mean,
				MeanDiff:      a.mean - b.mean,
				Statistic:     q,
				StatisticKind: domainstats.StatisticQ,
				DF:            float64(term.DF),
				PRaw:          p,
				PAdjusted:     p,
				NA:            a.n,
				NB:            b.n,
			})
		}
	}
}

// welch appends a Welch t comparison with Welch-Satterthwaite df
func welch(res *Result, a, b sample) {
	rec, reason := welchRecord(a, b)
	if reason != "" {
		res.Advisories = append(res.Advisories, skipped(a.label, b.label, reason))
		return
	}
	res.Comparisons = append(res.Comparisons, rec)
}

func welchRecord(a, b sample) (domainstats.ComparisonRecord, string) {
	if a.n < MinPairObservations || b.n < MinPairObservations {
		return domainstats.ComparisonRecord{}, "fewer than two valid observations"
	}
	va := a.vari / float64(a.n)
	vb := b.vari / float64(b.n)
	se := math.Sqrt(va + vb)
	if se == 0 {
		return domainstats.ComparisonRecord{}, "zero variance in both groups"
	}
	df := (va + vb) * (va + vb) / (va*va/float64(a.n-1) + vb*vb/float64(b.n-1))
	return tRecord(a, b, (a.mean-b.mean)/se, df), ""
}

// studentRecord is the pooled-variance t comparison
func studentRecord(a, b sample) (domainstats.ComparisonRecord, string) {
	if a.n < MinPairObservations || b.n < MinPairObservations {
		return domainstats.ComparisonRecord{}, "fewer than two valid observations"
	}
	df := float64(a.n + b.n - 2)
	se := math.Sqrt(pooledVariance(a, b) * (1/float64(a.n) + 1/float64(b.n)))
	if se == 0 {
		return domainstats.ComparisonRecord{}, "zero variance in both groups"
	}
	return tRecord(a, b, (a.mean-b.mean)/se, df), ""
}

func pooledVariance(a, b sample) float64 {
	return (float64(a.n-1)*a.vari + float64(b.n-1)*b.vari) / float64(a.n+b.n-2)
}

func tRecord(a, b sample, t, df float64) domainstats.ComparisonRecord {
	p := distributions.TTwoSided(t, df)
	return domainstats.ComparisonRecord{
		ItemA:         a.label,
		ItemB:         b.label,
		MeanA:         a.mean,
		MeanB:         b.mean,
		MeanDiff:      a.mean - b.mean,
		Statistic:     t,
		StatisticKind: domainstats.StatisticT,
		DF:            df,
		PRaw:          p,
		NA:            a.n,
		NB:            b.n,
	}
}

// paired appends a paired t comparison over subjects observed in both conditions
func paired(res *Result, labelA, labelB string, colA, colB []float64) {
	rec, _, reason := pairedRecord(labelA, labelB, colA, colB)
	if reason != "" {
		res.Advisories = append(res.Advisories, skipped(labelA, labelB, reason))
		return
	}
	res.Comparisons = append(res.Comparisons, rec)
}

// pairedRecord also returns the complete pairs as two samples
func pairedRecord(labelA, labelB string, colA, colB []float64) (domainstats.ComparisonRecord, [2]sample, string) {
	var xs, ys, diffs []float64
	for i := range colA {
		if i >= len(colB) || !valid(colA[i]) || !valid(colB[i]) {
			continue
		}
		xs = append(xs, colA[i])
		ys = append(ys, colB[i])
		diffs = append(diffs, colA[i]-colB[i])
	}
	pair := [2]sample{describe(labelA, xs), describe(labelB, ys)}
	n := len(diffs)
	if n < MinPairObservations {
		return domainstats.ComparisonRecord{}, pair, "fewer than two paired observations"
	}
	meanDiff, _ := stats.Mean(diffs)
	sd, _ := stats.StandardDeviationSample(diffs)
	se := sd / math.Sqrt(float64(n))
	if se == 0 {
		return domainstats.ComparisonRecord{}, pair, "differences have zero variance"
	}
	rec := tRecord(pair[0], pair[1], meanDiff/se, float64(n-1))
	rec.MeanDiff = meanDiff
	return rec, pair, ""
}

// adjust corrects raw p-values over the realized comparisons only
func adjust(res *Result) {
	raw := make([]float64, len(res.Comparisons))
	for i, c := range res.Comparisons {
		raw[i] = c.PRaw
	}
	var adjusted []float64
	if res.Method == domainstats.PostHocHolm {
		adjusted = correction.Holm(raw)
	} else {
		adjusted = correction.Bonferroni(raw, len(raw))
	}
	for i := range res.Comparisons {
		res.Comparisons[i].PAdjusted = adjusted[i]
	}
}

func markSignificant(res *Result, alpha float64) {
	for i := range res.Comparisons {
		res.Comparisons[i].Significant = res.Comparisons[i].PAdjusted < alpha
	}
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if valid(v) {
			out = append(out, v)
		}
	}
	return out
}

// completeRows keeps the subjects observed on every condition
func completeRows(columns [][]float64) [][]float64 {
	out := make([][]float64, len(columns))
	if len(columns) == 0 {
		return out
	}
	for i := range columns[0] {
		ok := true
		for _, col := range columns {
			if i >= len(col) || !valid(col[i]) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for j, col := range columns {
			out[j] = append(out[j], col[i])
		}
	}
	return out
}

// String renders a compact one-line description used in logs
func (r *Result) String() string {
	sig := 0
	for _, c := range r.Comparisons {
		if c.Significant {
			sig++
		}
	}
	return fmt.Sprintf("%s: %d comparisons, %d significant, %d skipped", r.Method, len(r.Comparisons), sig, len(r.Advisories))
}
