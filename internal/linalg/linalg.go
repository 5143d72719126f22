// Package linalg wraps gonum/mat with the small set of dense matrix operations
// the analysis engine needs. Every function returns a fresh allocation and
// leaves its arguments untouched.
package linalg

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"statcore/domain/core"
)

// SingularRatio is the relative-determinant threshold below which a matrix is
// treated as singular. The ratio is |det A| / prod_i ||row_i||, which lies in
// [0, 1] by Hadamard's inequality and does not depend on row scaling.
const SingularRatio = 1e-12

// symmetryTol is the relative tolerance for accepting a matrix as symmetric.
const symmetryTol = 1e-9

// FromRows copies a row-major slice of slices into a dense matrix.
func FromRows(rows [][]float64) *mat.Dense {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return &mat.Dense{}
	}
	r, c := len(rows), len(rows[0])
	data := make([]float64, 0, r*c)
	for _, row := range rows {
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data)
}

// ToRows copies a matrix into a row-major slice of slices.
func ToRows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// Identity returns the n x n identity matrix.
func Identity(n int) *mat.Dense {
	id := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		id.Set(i, i, 1)
	}
	return id
}

// Multiply returns A*B.
func Multiply(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(a, b)
	return &out
}

// Transpose returns a materialized copy of A^T.
func Transpose(a mat.Matrix) *mat.Dense {
	return mat.DenseCopyOf(a.T())
}

// Diag extracts the main diagonal.
func Diag(a mat.Matrix) []float64 {
	r, c := a.Dims()
	n := min(r, c)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = a.At(i, i)
	}
	return out
}

// DiagMatrix builds a square matrix with v on its diagonal.
func DiagMatrix(v []float64) *mat.Dense {
	d := mat.NewDense(len(v), len(v), nil)
	for i, x := range v {
		d.Set(i, i, x)
	}
	return d
}

// DeterminantRatio returns |det A| / prod_i ||row_i||_2 for a square matrix.
// A zero row gives 0.
func DeterminantRatio(a mat.Matrix) float64 {
	r, c := a.Dims()
	if r != c || r == 0 {
		return 0
	}
	logNorms := 0.0
	for i := 0; i < r; i++ {
		ss := 0.0
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			ss += v * v
		}
		if ss == 0 {
			return 0
		}
		logNorms += 0.5 * math.Log(ss)
	}
	logDet, sign := mat.LogDet(a)
	if sign == 0 || math.IsInf(logDet, -1) || math.IsNaN(logDet) {
		return 0
	}
	return math.Min(1, math.Exp(logDet-logNorms))
}

// Invert returns A^-1. It fails with a *core.SingularMatrixError when the
// determinant ratio is below SingularRatio or gonum reports the matrix as
// numerically singular.
func Invert(a mat.Matrix) (*mat.Dense, error) {
	r, c := a.Dims()
	if r != c {
		return nil, core.NewDomainError("Invert", "columns", float64(c))
	}
	ratio := DeterminantRatio(a)
	if ratio < SingularRatio {
		return nil, &core.SingularMatrixError{Op: "invert", Size: r, Ratio: ratio}
	}
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, &core.SingularMatrixError{Op: "invert", Size: r, Ratio: ratio}
		}
		return nil, err
	}
	return &inv, nil
}

// InvertOrIdentity returns A^-1, or the identity and true when A is singular.
// Callers surface the fallback as an advisory.
func InvertOrIdentity(a mat.Matrix) (*mat.Dense, bool) {
	inv, err := Invert(a)
	if err != nil {
		r, _ := a.Dims()
		return Identity(r), true
	}
	return inv, false
}

// Eigendecompose factorizes a symmetric matrix. Eigenpairs come back in the
// order gonum produces them (ascending); callers must sort. Column j of the
// returned matrix is the eigenvector of values[j].
func Eigendecompose(a mat.Matrix) ([]float64, *mat.Dense, error) {
	r, c := a.Dims()
	if r != c || r == 0 {
		return nil, nil, core.NewDomainError("Eigendecompose", "columns", float64(c))
	}
	if !IsSymmetric(a) {
		return nil, nil, core.NewValidationError("matrix", "eigendecomposition requires a symmetric matrix", 0, 0)
	}

	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, nil, core.NewValidationError("matrix", "eigendecomposition did not converge", 0, 0)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	return values, &vectors, nil
}

// IsSymmetric reports whether A equals its transpose within a relative tolerance.
func IsSymmetric(a mat.Matrix) bool {
	r, c := a.Dims()
	if r != c {
		return false
	}
	scale := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			scale = math.Max(scale, math.Abs(a.At(i, j)))
		}
	}
	tol := symmetryTol * math.Max(scale, 1)
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			if math.Abs(a.At(i, j)-a.At(j, i)) > tol {
				return false
			}
		}
	}
	return true
}

// NormalizeColumns scales every column of A to unit Euclidean length. Zero
// columns are left as zero.
func NormalizeColumns(a mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(a)
	r, c := out.Dims()
	for j := 0; j < c; j++ {
		norm := mat.Norm(out.ColView(j), 2)
		if norm == 0 {
			continue
		}
		for i := 0; i < r; i++ {
			out.Set(i, j, out.At(i, j)/norm)
		}
	}
	return out
}

// Trace returns the sum of the diagonal.
func Trace(a mat.Matrix) float64 {
	sum := 0.0
	for _, v := range Diag(a) {
		sum += v
	}
	return sum
}

// FrobeniusSquared returns the sum of squared entries.
func FrobeniusSquared(a mat.Matrix) float64 {
	n := mat.Norm(a, 2)
	return n * n
}
