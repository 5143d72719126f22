package factor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// kaiserFloor is the smallest row norm that gets Kaiser-normalized
const kaiserFloor = 1e-9

// Varimax rotates loadings orthogonally by successive pairwise plane
// rotations on Kaiser-normalized rows. It stops when the summed |theta| of
// a sweep drops below eps or after maxIter sweeps. Columns are reflected so
// each sums to a non-negative value.
func Varimax(loadings mat.Matrix, maxIter int, eps float64) *Rotation {
	p, k := loadings.Dims()
	r := mat.DenseCopyOf(loadings)
	rot := &Rotation{Loadings: r, Converged: true}
	if k < 2 {
		reflect(r)
		return rot
	}

	h := make([]float64, p)
	for i := 0; i < p; i++ {
		h[i] = mat.Norm(r.RowView(i), 2)
		if h[i] > kaiserFloor {
			for j := 0; j < k; j++ {
				r.Set(i, j, r.At(i, j)/h[i])
			}
		}
	}

	pf := float64(p)
	rot.Converged = false
	for iter := 0; iter < maxIter; iter++ {
		rot.Iterations = iter + 1
		var sweep float64
		for a := 0; a < k-1; a++ {
			for b := a + 1; b < k; b++ {
				var sumU, sumV, sumU2V2, sum2UV float64
				for i := 0; i < p; i++ {
					x, y := r.At(i, a), r.At(i, b)
					u := x*x - y*y
					v := 2 * x * y
					sumU += u
					sumV += v
					sumU2V2 += u*u - v*v
					sum2UV += 2 * u * v
				}
				numer := pf*sum2UV - 2*sumU*sumV
				denom := pf*sumU2V2 - (sumU*sumU - sumV*sumV)
				theta := math.Atan2(numer, denom) / 4
				if math.Abs(theta) <= eps {
					continue
				}
				sweep += math.Abs(theta)
				cos, sin := math.Cos(theta), math.Sin(theta)
				for i := 0; i < p; i++ {
					x, y := r.At(i, a), r.At(i, b)
					r.Set(i, a, x*cos+y*sin)
					r.Set(i, b, -x*sin+y*cos)
				}
			}
		}
		if sweep < eps {
			rot.Converged = true
			break
		}
	}

	for i := 0; i < p; i++ {
		if h[i] > kaiserFloor {
			for j := 0; j < k; j++ {
				r.Set(i, j, r.At(i, j)*h[i])
			}
		}
	}
	reflect(r)
	return rot
}

// reflect flips the sign of every column whose sum is negative
func reflect(m *mat.Dense) {
	p, k := m.Dims()
	for j := 0; j < k; j++ {
		var sum float64
		for i := 0; i < p; i++ {
			sum += m.At(i, j)
		}
		if sum >= 0 {
			continue
		}
		for i := 0; i < p; i++ {
			m.Set(i, j, -m.At(i, j))
		}
	}
}
