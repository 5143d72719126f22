package factor

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"statcore/internal/linalg"
)

// Promax fits a transformation by least squares from the varimax solution V
// to the target H = |V|^(kappa-1) * V, normalizes its columns and derives
// the factor correlations from (T'T)^-1. Singular inverses fall back to the
// identity and are reported as advisories.
func Promax(loadings mat.Matrix, kappa float64, varimaxIter int, varimaxEps float64) *Rotation {
	rot := Varimax(loadings, varimaxIter, varimaxEps)
	v := rot.Loadings
	p, k := v.Dims()

	h := mat.NewDense(p, k, nil)
	h.Apply(func(_, _ int, x float64) float64 {
		return math.Pow(math.Abs(x), kappa-1) * x
	}, v)

	vt := linalg.Transpose(v)
	vtvInv, singular := linalg.InvertOrIdentity(linalg.Multiply(vt, v))
	if singular {
		rot.Advisories = append(rot.Advisories, singularAdvisory("promax", "V'V"))
	}
	m := linalg.Multiply(vtvInv, linalg.Multiply(vt, h))
	t := linalg.NormalizeColumns(m)

	phiInv, singular := linalg.InvertOrIdentity(linalg.Multiply(linalg.Transpose(t), t))
	if singular {
		rot.Advisories = append(rot.Advisories, singularAdvisory("promax", "T'T"))
	}

	rot.Loadings = linalg.Multiply(v, t)
	rot.Phi = unitDiagonal(phiInv)
	return rot
}
