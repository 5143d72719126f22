// Package factor extracts principal-component factors from a correlation
// matrix and rotates them. Varimax is solved pairwise in closed form; the
// oblique methods share one gradient-projection solver parameterized by a
// Criterion.
package factor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"statcore/domain/core"
	"statcore/internal/linalg"
)

// Extraction is an unrotated solution
type Extraction struct {
	Variables []string
	// Loadings is variables x factors
	Loadings *mat.Dense
	// Eigenvalues of the correlation matrix, descending, one per variable
	Eigenvalues []float64
	Correlation *mat.SymDense
}

// CorrelationMatrix computes the Pearson correlation matrix of the columns of
// data (rows are complete observations).
func CorrelationMatrix(data [][]float64) (*mat.SymDense, error) {
	n := len(data)
	if n < 3 {
		return nil, core.NewInsufficientDataError("observations", n, 3)
	}
	p := len(data[0])
	x := mat.NewDense(n, p, nil)
	for i, row := range data {
		if len(row) != p {
			return nil, core.NewValidationError("observations", "ragged data row", float64(len(row)), float64(p))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, core.NewValidationError("observations", "non-finite value in listwise data", v, 0)
			}
			x.Set(i, j, v)
		}
	}

	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, x)
		if stat.Variance(col, nil) == 0 {
			return nil, core.NewValidationError("variables", "variable has zero variance", float64(j), 0)
		}
	}

	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, x, nil)
	return &corr, nil
}

// KaiserCount is the number of eigenvalues greater than 1, at least 1
func KaiserCount(eigenvalues []float64) int {
	n := 0
	for _, v := range eigenvalues {
		if v > 1 {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// Extract computes principal-component loadings from listwise-complete data.
// nFactors <= 0 selects the Kaiser criterion.
func Extract(variables []string, data [][]float64, nFactors int) (*Extraction, error) {
	p := len(variables)
	if p < 2 {
		return nil, core.NewValidationError("variables", "at least two variables are required", float64(p), 2)
	}
	if len(data) > 0 && len(data[0]) != p {
		return nil, core.NewValidationError("variables", "data width does not match variable count", float64(len(data[0])), float64(p))
	}
	if nFactors > p {
		return nil, core.NewValidationError("factors", "more factors than variables", float64(nFactors), float64(p))
	}

	corr, err := CorrelationMatrix(data)
	if err != nil {
		return nil, err
	}

	values, vectors, err := linalg.Eigendecompose(corr)
	if err != nil {
		return nil, err
	}

	order := make([]int, p)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	eigenvalues := make([]float64, p)
	for i, idx := range order {
		eigenvalues[i] = values[idx]
	}
	if nFactors <= 0 {
		nFactors = KaiserCount(eigenvalues)
	}

	loadings := mat.NewDense(p, nFactors, nil)
	for f := 0; f < nFactors; f++ {
		idx := order[f]
		scale := math.Sqrt(math.Max(0, values[idx]))
		// eigenvector sign is arbitrary; orient each so its loadings sum >= 0
		sign := 1.0
		var sum float64
		for i := 0; i < p; i++ {
			sum += vectors.At(i, idx)
		}
		if sum < 0 {
			sign = -1
		}
		for i := 0; i < p; i++ {
			loadings.Set(i, f, sign*vectors.At(i, idx)*scale)
		}
	}

	return &Extraction{
		Variables:   append([]string(nil), variables...),
		Loadings:    loadings,
		Eigenvalues: eigenvalues,
		Correlation: corr,
	}, nil
}
