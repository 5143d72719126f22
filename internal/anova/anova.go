// Package anova implements one-way independent and repeated-measures analysis
// of variance with effect sizes, Greenhouse-Geisser sphericity correction and
// the Brown-Forsythe homogeneity-of-variance test.
package anova

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
	"statcore/internal/distributions"
)

// Group is one level of a between-subjects factor
type Group struct {
	Label  string
	Values []float64
}

// Options tunes the omnibus tests
type Options struct {
	// Alpha is the rejection level used for the homogeneity advisory.
	Alpha float64
	// LeveneCenter selects the Levene location; median gives Brown-Forsythe.
	LeveneCenter Center
}

// DefaultOptions returns alpha 0.05 with a median-centered Levene test
func DefaultOptions() Options {
	return Options{Alpha: 0.05, LeveneCenter: CenterMedian}
}

func (o Options) normalized() Options {
	if o.Alpha <= 0 || o.Alpha >= 1 {
		o.Alpha = 0.05
	}
	if o.LeveneCenter == "" {
		o.LeveneCenter = CenterMedian
	}
	return o
}

// finite drops NaN and infinite values
func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// summarize computes n, mean, sample SD and SE. SD and SE are 0 for a
// single observation.
func summarize(label string, values []float64) domainstats.GroupSummary {
	s := domainstats.GroupSummary{Label: label, N: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Mean, _ = stats.Mean(values)
	if len(values) > 1 {
		s.SD, _ = stats.StandardDeviationSample(values)
		s.SE = s.SD / math.Sqrt(float64(len(values)))
	}
	return s
}

// fTest returns F and its upper-tail p. A zero error term with a non-zero
// effect yields F=+Inf and p=0.
func fTest(msEffect, msError float64, dfEffect, dfError float64) (float64, float64) {
	if msError == 0 {
		if msEffect == 0 {
			return 0, 1
		}
		return math.Inf(1), 0
	}
	f := msEffect / msError
	return f, distributions.FUpperTail(f, dfEffect, dfError)
}

// omegaSquared applies (SSeffect - dfEffect*MSerror) / (SStotal + MSerror)
// and clamps negative estimates to 0.
func omegaSquared(ssEffect, ssTotal, msError float64, dfEffect int) (raw, clipped float64, wasClipped bool) {
	denom := ssTotal + msError
	if denom == 0 {
		return 0, 0, false
	}
	raw = (ssEffect - float64(dfEffect)*msError) / denom
	if raw < 0 {
		return raw, 0, true
	}
	return raw, raw, false
}

func omegaAdvisory(subject string, raw float64) domainstats.Advisory {
	return domainstats.Advisory{
		Code:    domainstats.AdvisoryOmegaClipped,
		Subject: subject,
		Detail:  fmt.Sprintf("raw omega-squared %.4f was negative and is reported as 0", raw),
	}
}

func zeroVarianceError(field string) error {
	return core.NewValidationError(field, "total variance is zero", 0, 0)
}
