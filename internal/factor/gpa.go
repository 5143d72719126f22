package factor

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"statcore/internal/linalg"
)

// Criterion supplies the gradient of a rotation criterion with respect to
// the current loadings L (variables x factors).
type Criterion interface {
	Gradient(l *mat.Dense) *mat.Dense
}

// Valuer is implemented by criteria that can also report their value. The
// solver then halves the step until the criterion decreases sufficiently.
type Valuer interface {
	Value(l *mat.Dense) float64
}

// maxHalvings bounds the backtracking line search per iteration
const maxHalvings = 10

// GPAConfig bounds the gradient-projection iteration. Step is the initial
// step length of every iteration.
type GPAConfig struct {
	MaxIter int
	Epsilon float64
	Step    float64
}

// GradientProjection rotates A obliquely by minimizing the criterion over
// transformation matrices T with unit-norm columns. Each iteration computes
// L = A (T^-1)', the criterion gradient G(L), the T-gradient
// -(L' G T^-1)', projects it onto the tangent space of the unit-column
// constraint and steps against it. It stops when the projected gradient
// norm drops below Epsilon or after MaxIter iterations.
func GradientProjection(a mat.Matrix, c Criterion, cfg GPAConfig) *Rotation {
	_, k := a.Dims()
	t := linalg.Identity(k)
	rot := &Rotation{}
	singular := false
	valuer, canValue := c.(Valuer)

	for iter := 0; iter < cfg.MaxIter; iter++ {
		tInv, fallback := linalg.InvertOrIdentity(t)
		if fallback {
			singular = true
			t = linalg.Identity(k)
		}
		l := linalg.Multiply(a, linalg.Transpose(tInv))
		g := c.Gradient(l)

		gradT := linalg.Transpose(linalg.Multiply(linalg.Multiply(linalg.Transpose(l), g), tInv))
		gradT.Scale(-1, gradT)

		proj := project(t, gradT)
		s2 := linalg.FrobeniusSquared(proj)
		if math.Sqrt(s2) < cfg.Epsilon {
			rot.Converged = true
			break
		}
		rot.Iterations = iter + 1

		step := cfg.Step
		next := descend(t, proj, step)
		if canValue {
			f := valuer.Value(l)
			for h := 0; h < maxHalvings; h++ {
				if nextInv, err := linalg.Invert(next); err == nil {
					candidate := linalg.Multiply(a, linalg.Transpose(nextInv))
					if f-valuer.Value(candidate) > 0.5*s2*step {
						break
					}
				}
				step /= 2
				next = descend(t, proj, step)
			}
		}
		t = next
	}

	tInv, fallback := linalg.InvertOrIdentity(t)
	if fallback {
		singular = true
		t = linalg.Identity(k)
	}
	if singular {
		rot.Advisories = append(rot.Advisories, singularAdvisory("gradient projection", "T"))
	}

	rot.Loadings = linalg.Multiply(a, linalg.Transpose(tInv))
	rot.Phi = unitDiagonal(linalg.Multiply(linalg.Transpose(t), t))
	return rot
}

// descend takes one step against the projected gradient and renormalizes
// the columns of T.
func descend(t, proj *mat.Dense, step float64) *mat.Dense {
	var next mat.Dense
	next.Scale(step, proj)
	next.Sub(t, &next)
	return linalg.NormalizeColumns(&next)
}

// project removes the component of X that changes column norms of T:
// X - T diag(T'X)
func project(t, x *mat.Dense) *mat.Dense {
	d := linalg.Diag(linalg.Multiply(linalg.Transpose(t), x))
	correction := linalg.Multiply(t, linalg.DiagMatrix(d))
	var out mat.Dense
	out.Sub(x, correction)
	return &out
}

// Oblimin is the direct oblimin family; Gamma 0 is quartimin
type Oblimin struct {
	Gamma float64
}

// Value returns 1/2 sum_is L_is^2 sum_{f!=s} X_if with
// X = L^2 - gamma/p colSS.
func (o Oblimin) Value(l *mat.Dense) float64 {
	p, k := l.Dims()
	colSS := make([]float64, k)
	for j := 0; j < k; j++ {
		for i := 0; i < p; i++ {
			v := l.At(i, j)
			colSS[j] += v * v
		}
	}
	scale := o.Gamma / float64(p)
	var f float64
	x := make([]float64, k)
	for i := 0; i < p; i++ {
		var rowX float64
		for j := 0; j < k; j++ {
			v := l.At(i, j)
			x[j] = v*v - scale*colSS[j]
			rowX += x[j]
		}
		for s := 0; s < k; s++ {
			v := l.At(i, s)
			f += v * v * (rowX - x[s])
		}
	}
	return f / 2
}

// Gradient returns 2 L_is (sum_{f!=s} L_if^2 - gamma/p sum_{f!=s} colSS_f)
func (o Oblimin) Gradient(l *mat.Dense) *mat.Dense {
	p, k := l.Dims()
	colSS := make([]float64, k)
	var totalSS float64
	for j := 0; j < k; j++ {
		for i := 0; i < p; i++ {
			v := l.At(i, j)
			colSS[j] += v * v
		}
		totalSS += colSS[j]
	}

	g := mat.NewDense(p, k, nil)
	for i := 0; i < p; i++ {
		var rowSS float64
		for j := 0; j < k; j++ {
			v := l.At(i, j)
			rowSS += v * v
		}
		for s := 0; s < k; s++ {
			v := l.At(i, s)
			cross := rowSS - v*v
			others := totalSS - colSS[s]
			g.Set(i, s, 2*v*(cross-(o.Gamma/float64(p))*others))
		}
	}
	return g
}

// Geomin minimizes the geometric mean of squared loadings per row,
// regularized by Epsilon.
type Geomin struct {
	Epsilon float64
}

// Value returns sum_i prod_j(L_ij^2+eps)^(1/k)
func (gm Geomin) Value(l *mat.Dense) float64 {
	p, k := l.Dims()
	var f float64
	for i := 0; i < p; i++ {
		var logSum float64
		for j := 0; j < k; j++ {
			v := l.At(i, j)
			logSum += math.Log(v*v + gm.Epsilon)
		}
		f += math.Exp(logSum / float64(k))
	}
	return f
}

// Gradient returns (2/k) L/(L^2+eps) * prod_j(L_ij^2+eps)^(1/k)
func (gm Geomin) Gradient(l *mat.Dense) *mat.Dense {
	p, k := l.Dims()
	g := mat.NewDense(p, k, nil)
	kf := float64(k)
	for i := 0; i < p; i++ {
		var logSum float64
		for j := 0; j < k; j++ {
			v := l.At(i, j)
			logSum += math.Log(v*v + gm.Epsilon)
		}
		pro := math.Exp(logSum / kf)
		for s := 0; s < k; s++ {
			v := l.At(i, s)
			g.Set(i, s, (2/kf)*v/(v*v+gm.Epsilon)*pro)
		}
	}
	return g
}
