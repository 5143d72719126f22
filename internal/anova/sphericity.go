package anova

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	domainstats "statcore/domain/stats"
	"statcore/internal/distributions"
)

// GreenhouseGeisser computes epsilon from a k x k covariance matrix of
// conditions. The matrix is double-centered and
//
//	epsilon = tr(S)^2 / ((k-1) * sum(S_ij^2))
//
// clamped to [1/(k-1), 1]. A zero denominator gives 1.
func GreenhouseGeisser(cov mat.Matrix) float64 {
	k, c := cov.Dims()
	if k != c || k < 2 {
		return 1
	}

	rowMeans := make([]float64, k)
	colMeans := make([]float64, k)
	var grand float64
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			v := cov.At(i, j)
			rowMeans[i] += v
			colMeans[j] += v
			grand += v
		}
	}
	kf := float64(k)
	for i := range rowMeans {
		rowMeans[i] /= kf
		colMeans[i] /= kf
	}
	grand /= kf * kf

	var trace, sumSq float64
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			s := cov.At(i, j) - rowMeans[i] - colMeans[j] + grand
			sumSq += s * s
			if i == j {
				trace += s
			}
		}
	}

	lower := 1 / (kf - 1)
	if sumSq == 0 || math.IsNaN(sumSq) {
		return 1
	}
	eps := trace * trace / ((kf - 1) * sumSq)
	return math.Max(lower, math.Min(1, eps))
}

// GreenhouseGeisserFromData builds the sample covariance matrix of the given
// condition columns (equal length) and returns its epsilon.
func GreenhouseGeisserFromData(columns [][]float64) float64 {
	k := len(columns)
	if k < 2 || len(columns[0]) < 2 {
		return 1
	}
	n := len(columns[0])
	data := mat.NewDense(n, k, nil)
	for j, col := range columns {
		for i, v := range col {
			data.Set(i, j, v)
		}
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)
	return GreenhouseGeisser(&cov)
}

// helmert returns k-1 orthonormal contrast rows over k levels
func helmert(k int) *mat.Dense {
	h := mat.NewDense(k-1, k, nil)
	for r := 1; r < k; r++ {
		norm := math.Sqrt(float64(r * (r + 1)))
		for j := 0; j < r; j++ {
			h.Set(r-1, j, 1/norm)
		}
		h.Set(r-1, r, -float64(r)/norm)
	}
	return h
}

// averaging returns the single row 1/sqrt(k) over k levels
func averaging(k int) *mat.Dense {
	row := make([]float64, k)
	for j := range row {
		row[j] = 1 / math.Sqrt(float64(k))
	}
	return mat.NewDense(1, k, row)
}

// contrastEpsilon is the Greenhouse-Geisser epsilon of an m x m covariance
// of orthonormal contrast scores, tr(S)^2 / (m * sum(S_ij^2)), clamped to
// [1/m, 1].
func contrastEpsilon(cov mat.Matrix) float64 {
	m, _ := cov.Dims()
	if m < 2 {
		return 1
	}
	var trace, sumSq float64
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			v := cov.At(i, j)
			sumSq += v * v
			if i == j {
				trace += v
			}
		}
	}
	if sumSq == 0 || math.IsNaN(sumSq) {
		return 1
	}
	mf := float64(m)
	return math.Max(1/mf, math.Min(1, trace*trace/(mf*sumSq)))
}

// scores projects each subject row of data onto the contrast rows
func scores(data, contrast mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(data, contrast.T())
	return &out
}

// ggCorrection scales both df by eps and recomputes the upper-tail p of f
func ggCorrection(eps, f, p float64, dfEffect, dfError int) *domainstats.GGCorrection {
	gg := &domainstats.GGCorrection{
		Epsilon:         eps,
		DFConditionsAdj: eps * float64(dfEffect),
		DFErrorAdj:      eps * float64(dfError),
		PAdjusted:       p,
	}
	if !math.IsInf(f, 1) && f > 0 {
		gg.PAdjusted = distributions.FUpperTail(f, gg.DFConditionsAdj, gg.DFErrorAdj)
	}
	return gg
}

func sphericityAdvisory(subject string, gg *domainstats.GGCorrection) domainstats.Advisory {
	return domainstats.Advisory{
		Code:    domainstats.AdvisorySphericityCorrected,
		Subject: subject,
		Detail:  fmt.Sprintf("Greenhouse-Geisser epsilon %.4f applied to df (%.2f, %.2f)", gg.Epsilon, gg.DFConditionsAdj, gg.DFErrorAdj),
	}
}
