package anova

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
)

// Independent runs a one-way between-subjects ANOVA. Non-finite values are
// ignored; groups left without observations are dropped with an advisory.
// Fewer than two remaining groups or N-k <= 0 is a validation error.
func Independent(dependent string, groups []Group, opts Options) (*domainstats.ANOVAResult, error) {
	opts = opts.normalized()
	if opts.LeveneCenter != CenterMedian && opts.LeveneCenter != CenterMean {
		return nil, core.NewUnknownMethodError("levene center", string(opts.LeveneCenter))
	}
	result := &domainstats.ANOVAResult{
		Design:    domainstats.DesignIndependent,
		Dependent: dependent,
	}

	kept := make([]Group, 0, len(groups))
	var all []float64
	for _, g := range groups {
		values := finite(g.Values)
		if len(values) == 0 {
			result.Advisories = append(result.Advisories, domainstats.Advisory{
				Code:    domainstats.AdvisoryGroupDropped,
				Subject: g.Label,
				Detail:  "group has no valid observations",
			})
			continue
		}
		kept = append(kept, Group{Label: g.Label, Values: values})
		all = append(all, values...)
	}

	k := len(kept)
	n := len(all)
	if k < 2 {
		return nil, core.NewValidationError("groups", "at least two non-empty groups are required", float64(k), 2)
	}
	if n-k <= 0 {
		return nil, core.NewValidationError("df_within", "within-groups degrees of freedom must be positive", float64(n-k), 1)
	}

	grandMean, _ := stats.Mean(all)

	var ssBetween, ssWithin, ssTotal float64
	result.Groups = make([]domainstats.GroupSummary, 0, k)
	for _, g := range kept {
		summary := summarize(g.Label, g.Values)
		result.Groups = append(result.Groups, summary)

		d := summary.Mean - grandMean
		ssBetween += float64(summary.N) * d * d
		for _, x := range g.Values {
			w := x - summary.Mean
			ssWithin += w * w
			t := x - grandMean
			ssTotal += t * t
		}
	}
	if ssTotal == 0 {
		return nil, zeroVarianceError(dependent)
	}

	dfBetween := k - 1
	dfWithin := n - k
	msBetween := ssBetween / float64(dfBetween)
	msWithin := ssWithin / float64(dfWithin)
	f, p := fTest(msBetween, msWithin, float64(dfBetween), float64(dfWithin))

	result.SS = domainstats.SumsOfSquares{
		Between:   ssBetween,
		Within:    ssWithin,
		Total:     ssTotal,
		DFBetween: dfBetween,
		DFWithin:  dfWithin,
		MSBetween: msBetween,
		MSWithin:  msWithin,
		F:         f,
		P:         p,
	}

	raw, omega, clipped := omegaSquared(ssBetween, ssTotal, msWithin, dfBetween)
	result.Effects = domainstats.EffectSizes{
		EtaSquared:        ssBetween / ssTotal,
		PartialEtaSquared: ssBetween / (ssBetween + ssWithin),
		OmegaSquared:      omega,
		RawOmegaSquared:   raw,
		OmegaClipped:      clipped,
	}
	if clipped {
		result.Advisories = append(result.Advisories, omegaAdvisory(dependent, raw))
	}

	// Homogeneity is reported, never enforced.
	if levene, err := Levene(kept, opts.LeveneCenter); err == nil {
		result.Levene = levene
		if levene.P < opts.Alpha {
			result.Advisories = append(result.Advisories, domainstats.Advisory{
				Code:    domainstats.AdvisoryHeterogeneousVariance,
				Subject: dependent,
				Detail:  fmt.Sprintf("Levene (%s) F(%d, %d) = %.3f, p = %.4f", levene.Center, levene.DF1, levene.DF2, levene.F, levene.P),
			})
		}
	}

	return result, nil
}
