// Package regression fits ordinary least squares models with an intercept
// and reports collinearity through variance inflation factors.
package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
	"statcore/internal/distributions"
	"statcore/internal/linalg"
)

// InterceptTerm names the constant term in results
const InterceptTerm = "(intercept)"

// exactFitTol is the residual share below which an auxiliary fit is exact
const exactFitTol = 1e-12

// fit is the bare least-squares solution of y on [1 X]
type fit struct {
	coef []float64
	inv  *mat.Dense // (X'X)^-1
	sse  float64
	sst  float64
}

func leastSquares(x [][]float64, y []float64) (*fit, error) {
	n := len(y)
	p := 0
	if n > 0 {
		p = len(x[0])
	}
	design := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			design.Set(i, j+1, x[i][j])
		}
	}
	yv := mat.NewVecDense(n, append([]float64(nil), y...))

	xt := linalg.Transpose(design)
	inv, err := linalg.Invert(linalg.Multiply(xt, design))
	if err != nil {
		return nil, err
	}
	var xty mat.VecDense
	xty.MulVec(xt, yv)
	var coef mat.VecDense
	coef.MulVec(inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(design, &coef)
	mean := stat.Mean(y, nil)
	out := &fit{coef: make([]float64, p+1), inv: inv}
	for j := range out.coef {
		out.coef[j] = coef.AtVec(j)
	}
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		out.sse += r * r
		d := y[i] - mean
		out.sst += d * d
	}
	return out, nil
}

// Fit regresses y on the predictor columns of x (rows are complete
// observations). It needs at least len(predictors)+2 rows. Perfectly
// collinear predictors make the fit fail with a SingularMatrixError.
func Fit(dependent string, predictors []string, y []float64, x [][]float64) (*domainstats.RegressionResult, error) {
	p := len(predictors)
	n := len(y)
	if p < 1 {
		return nil, core.NewValidationError("predictors", "at least one predictor is required", 0, 1)
	}
	if len(x) != n {
		return nil, core.NewValidationError("observations", "predictor rows do not match outcome length", float64(len(x)), float64(n))
	}
	if n < p+2 {
		return nil, core.NewInsufficientDataError("observations", n, p+2)
	}
	for _, row := range x {
		if len(row) != p {
			return nil, core.NewValidationError("predictors", "row width does not match predictor count", float64(len(row)), float64(p))
		}
	}

	f, err := leastSquares(x, y)
	if err != nil {
		return nil, err
	}
	if f.sst == 0 {
		return nil, core.NewValidationError(dependent, "outcome has zero variance", 0, 0)
	}

	dfModel := p
	dfResidual := n - p - 1
	mse := f.sse / float64(dfResidual)
	ssr := f.sst - f.sse
	r2 := ssr / f.sst

	res := &domainstats.RegressionResult{
		Dependent:  dependent,
		Predictors: append([]string(nil), predictors...),
		N:          n,
		R2:         r2,
		AdjustedR2: 1 - (1-r2)*float64(n-1)/float64(dfResidual),
		ResidualSE: math.Sqrt(mse),
		DFModel:    dfModel,
		DFResidual: dfResidual,
	}
	if mse == 0 {
		res.F, res.P = math.Inf(1), 0
	} else {
		res.F = (ssr / float64(dfModel)) / mse
		res.P = distributions.FUpperTail(res.F, float64(dfModel), float64(dfResidual))
	}

	_, sdY := stat.MeanStdDev(y, nil)
	vifs, advisories := varianceInflation(predictors, x)
	res.Advisories = advisories

	res.Coefficients = make([]domainstats.Coefficient, p+1)
	for j := 0; j <= p; j++ {
		c := domainstats.Coefficient{Term: InterceptTerm, Estimate: f.coef[j]}
		if j > 0 {
			c.Term = predictors[j-1]
			_, sdX := stat.MeanStdDev(column(x, j-1), nil)
			if sdY > 0 {
				c.Beta = c.Estimate * sdX / sdY
			}
			c.VIF = vifs[j-1]
		}
		c.SE = math.Sqrt(mse * f.inv.At(j, j))
		switch {
		case c.SE > 0:
			c.T = c.Estimate / c.SE
			c.P = distributions.TTwoSided(c.T, float64(dfResidual))
		case c.Estimate == 0:
			c.T, c.P = 0, 1
		default:
			c.T, c.P = math.Copysign(math.Inf(1), c.Estimate), 0
		}
		res.Coefficients[j] = c
	}
	return res, nil
}

// VIF returns 1/(1-R²_j) for every predictor column of x, where R²_j comes
// from regressing column j on the others.
func VIF(predictors []string, x [][]float64) ([]float64, []domainstats.Advisory) {
	return varianceInflation(predictors, x)
}

func varianceInflation(predictors []string, x [][]float64) ([]float64, []domainstats.Advisory) {
	p := len(predictors)
	out := make([]float64, p)
	var advisories []domainstats.Advisory
	if p == 1 {
		out[0] = 1
		return out, nil
	}
	for j := 0; j < p; j++ {
		others := make([][]float64, len(x))
		for i, row := range x {
			others[i] = make([]float64, 0, p-1)
			others[i] = append(others[i], row[:j]...)
			others[i] = append(others[i], row[j+1:]...)
		}
		aux, err := leastSquares(others, column(x, j))
		if err != nil || aux.sst == 0 {
			out[j] = math.Inf(1)
			advisories = append(advisories, domainstats.Advisory{
				Code:    domainstats.AdvisorySingularFallback,
				Subject: predictors[j],
				Detail:  fmt.Sprintf("auxiliary regression for %s is singular; VIF reported as +Inf", predictors[j]),
			})
			continue
		}
		if aux.sse <= exactFitTol*aux.sst {
			out[j] = math.Inf(1)
			continue
		}
		out[j] = aux.sst / aux.sse
	}
	return out, advisories
}

func column(x [][]float64, j int) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = row[j]
	}
	return out
}
