package posthoc

import (
	"fmt"
	"math"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
	"statcore/internal/anova"
)

// VarianceAssumption selects the independent-samples t-test
type VarianceAssumption string

const (
	// VarianceAuto runs Student when Brown-Forsythe does not reject equal
	// variances at alpha and Welch otherwise.
	VarianceAuto    VarianceAssumption = "auto"
	VarianceEqual   VarianceAssumption = "equal"
	VarianceUnequal VarianceAssumption = "unequal"
)

// TTestOptions configures a two-sample t-test
type TTestOptions struct {
	// Paired compares a and b row by row over the rows valid in both.
	Paired   bool
	Variance VarianceAssumption
	Alpha    float64
}

// TTest compares two samples with a two-sided t-test. Independent samples
// ignore non-finite values; paired samples drop incomplete pairs. Cohen's d
// uses the pooled standard deviation of the two samples in both cases.
func TTest(labelA, labelB string, a, b []float64, opts TTestOptions) (*domainstats.TTestResult, error) {
	alpha := alphaOr(opts.Alpha)
	variance := opts.Variance
	if variance == "" {
		variance = VarianceAuto
	}
	switch variance {
	case VarianceAuto, VarianceEqual, VarianceUnequal:
	default:
		return nil, core.NewUnknownMethodError("variance assumption", string(variance))
	}

	res := &domainstats.TTestResult{}
	var (
		rec    domainstats.ComparisonRecord
		pair   [2]sample
		reason string
	)
	if opts.Paired {
		res.Kind = domainstats.TTestPaired
		rec, pair, reason = pairedRecord(labelA, labelB, a, b)
		if n := pair[0].n; n < MinPairObservations {
			return nil, core.NewInsufficientDataError("pairs", n, MinPairObservations)
		}
	} else {
		pair = [2]sample{describe(labelA, validValues(a)), describe(labelB, validValues(b))}
		for _, s := range pair {
			if s.n < MinPairObservations {
				return nil, core.NewInsufficientDataError(s.label, s.n, MinPairObservations)
			}
		}
		levene, err := anova.Levene([]anova.Group{
			{Label: labelA, Values: validValues(a)},
			{Label: labelB, Values: validValues(b)},
		}, anova.CenterMedian)
		if err != nil {
			return nil, err
		}
		res.Levene = levene

		equal := variance == VarianceEqual || (variance == VarianceAuto && levene.P >= alpha)
		if equal {
			res.Kind = domainstats.TTestStudent
			rec, reason = studentRecord(pair[0], pair[1])
		} else {
			res.Kind = domainstats.TTestWelch
			rec, reason = welchRecord(pair[0], pair[1])
		}
		if variance == VarianceEqual && levene.P < alpha {
			res.Advisories = append(res.Advisories, domainstats.Advisory{
				Code:    domainstats.AdvisoryHeterogeneousVariance,
				Subject: labelA + " vs " + labelB,
				Detail:  fmt.Sprintf("equal variances assumed although Brown-Forsythe p = %.4f", levene.P),
			})
		}
	}
	if reason != "" {
		return nil, core.NewValidationError(labelA+" vs "+labelB, reason, 0, 0)
	}

	rec.PAdjusted = rec.PRaw
	rec.Significant = rec.PRaw < alpha
	res.Comparison = rec
	if sd := math.Sqrt(pooledVariance(pair[0], pair[1])); sd > 0 {
		res.CohensD = (pair[0].mean - pair[1].mean) / sd
	}
	return res, nil
}
