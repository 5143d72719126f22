// Package distributions provides the probability functions used by the ANOVA
// and post-hoc engines: standard normal, log-gamma, F and Student t tails, and
// a numerically integrated studentized range distribution.
package distributions

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"statcore/domain/core"
)

// NormalPDF is the standard normal density
func NormalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// NormalCDF is the standard normal distribution function
func NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// LogGamma returns ln|Γ(x)| for x > 0.
func LogGamma(x float64) (float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return math.NaN(), core.NewDomainError("LogGamma", "x", x)
	}
	lg, _ := math.Lgamma(x)
	return lg, nil
}

// FUpperTail returns P(F > f) for an F distribution with (d1, d2) degrees of
// freedom. Degrees of freedom may be fractional (sphericity-corrected).
func FUpperTail(f, d1, d2 float64) float64 {
	if d1 <= 0 || d2 <= 0 || math.IsNaN(f) {
		return math.NaN()
	}
	if f <= 0 {
		return 1
	}
	if math.IsInf(f, 1) {
		return 0
	}
	dist := distuv.F{D1: d1, D2: d2}
	return clamp01(dist.Survival(f))
}

// TTwoSided returns the two-sided p-value of a t statistic with df degrees of freedom.
func TTwoSided(t, df float64) float64 {
	if df <= 0 || math.IsNaN(t) {
		return math.NaN()
	}
	if math.IsInf(t, 0) {
		return 0
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return clamp01(2 * dist.Survival(math.Abs(t)))
}

func clamp01(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
