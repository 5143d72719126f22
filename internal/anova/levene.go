package anova

import (
	"math"

	"github.com/montanaflynn/stats"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
)

// Center is the location the Levene test measures deviations from
type Center string

const (
	CenterMedian Center = "median"
	CenterMean   Center = "mean"
)

// Levene tests equality of variances with a one-way ANOVA on absolute
// deviations from each group's center. The median center is the
// Brown-Forsythe variant.
func Levene(groups []Group, center Center) (*domainstats.LeveneResult, error) {
	if center == "" {
		center = CenterMedian
	}
	if center != CenterMedian && center != CenterMean {
		return nil, core.NewUnknownMethodError("levene center", string(center))
	}

	deviations := make([][]float64, 0, len(groups))
	var all []float64
	for _, g := range groups {
		values := finite(g.Values)
		if len(values) == 0 {
			continue
		}
		var c float64
		if center == CenterMedian {
			c, _ = stats.Median(values)
		} else {
			c, _ = stats.Mean(values)
		}
		z := make([]float64, len(values))
		for i, x := range values {
			z[i] = math.Abs(x - c)
		}
		deviations = append(deviations, z)
		all = append(all, z...)
	}

	k := len(deviations)
	n := len(all)
	if k < 2 {
		return nil, core.NewValidationError("groups", "at least two non-empty groups are required", float64(k), 2)
	}
	if n-k <= 0 {
		return nil, core.NewValidationError("df_within", "within-groups degrees of freedom must be positive", float64(n-k), 1)
	}

	grand, _ := stats.Mean(all)
	var between, within float64
	for _, z := range deviations {
		m, _ := stats.Mean(z)
		d := m - grand
		between += float64(len(z)) * d * d
		for _, v := range z {
			w := v - m
			within += w * w
		}
	}

	df1, df2 := k-1, n-k
	f, p := fTest(between/float64(df1), within/float64(df2), float64(df1), float64(df2))
	return &domainstats.LeveneResult{
		Center: string(center),
		F:      f,
		DF1:    df1,
		DF2:    df2,
		P:      p,
	}, nil
}
