package factor

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	domainstats "statcore/domain/stats"
)

// SalientLoading is the absolute loading at which an item counts toward a
// factor's reliability
const SalientLoading = 0.4

// Communalities returns the row sums of squared loadings
func Communalities(loadings mat.Matrix) []float64 {
	p, k := loadings.Dims()
	out := make([]float64, p)
	for i := 0; i < p; i++ {
		for j := 0; j < k; j++ {
			v := loadings.At(i, j)
			out[i] += v * v
		}
	}
	return out
}

// VarianceExplained returns the sum of squared loadings per factor with its
// proportion of the total variance of p standardized variables.
func VarianceExplained(loadings mat.Matrix) []domainstats.FactorVariance {
	p, k := loadings.Dims()
	out := make([]domainstats.FactorVariance, k)
	var cumulative float64
	for j := 0; j < k; j++ {
		var ss float64
		for i := 0; i < p; i++ {
			v := loadings.At(i, j)
			ss += v * v
		}
		prop := ss / float64(p)
		cumulative += prop
		out[j] = domainstats.FactorVariance{SSLoadings: ss, Proportion: prop, Cumulative: cumulative}
	}
	return out
}

// SalientItems lists, per factor, the row indices with |loading| >= SalientLoading
func SalientItems(loadings mat.Matrix) [][]int {
	p, k := loadings.Dims()
	out := make([][]int, k)
	for j := 0; j < k; j++ {
		for i := 0; i < p; i++ {
			if math.Abs(loadings.At(i, j)) >= SalientLoading {
				out[j] = append(out[j], i)
			}
		}
	}
	return out
}

// CronbachAlpha computes alpha over the given item columns of raw data using
// sample variances. It returns false for fewer than two items or a constant
// total score.
func CronbachAlpha(data [][]float64, items []int) (float64, bool) {
	k := len(items)
	if k < 2 || len(data) < 2 {
		return 0, false
	}
	totals := make([]float64, len(data))
	var sumItemVar float64
	col := make([]float64, len(data))
	for _, item := range items {
		for i, row := range data {
			col[i] = row[item]
			totals[i] += row[item]
		}
		sumItemVar += stat.Variance(col, nil)
	}
	totalVar := stat.Variance(totals, nil)
	if totalVar == 0 {
		return 0, false
	}
	kf := float64(k)
	return kf / (kf - 1) * (1 - sumItemVar/totalVar), true
}
