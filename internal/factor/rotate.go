package factor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
)

// Config holds the rotation tuning parameters
type Config struct {
	VarimaxMaxIter int
	VarimaxEpsilon float64
	GPAMaxIter     int
	GPAEpsilon     float64
	GPAStep        float64
	PromaxKappa    float64
	ObliminGamma   float64
	GeominEpsilon  float64
}

// DefaultConfig returns the conventional defaults
func DefaultConfig() Config {
	return Config{
		VarimaxMaxIter: 50,
		VarimaxEpsilon: 1e-6,
		GPAMaxIter:     500,
		GPAEpsilon:     1e-5,
		GPAStep:        0.5,
		PromaxKappa:    4,
		ObliminGamma:   0,
		GeominEpsilon:  0.01,
	}
}

func (c Config) gpa() GPAConfig {
	return GPAConfig{MaxIter: c.GPAMaxIter, Epsilon: c.GPAEpsilon, Step: c.GPAStep}
}

// Rotation is a rotated loading matrix. Phi is nil for orthogonal rotations
// and has an exact unit diagonal otherwise.
type Rotation struct {
	Loadings   *mat.Dense
	Phi        *mat.Dense
	Iterations int
	Converged  bool
	Advisories []domainstats.Advisory
}

// Rotate applies the requested rotation to unrotated loadings. The input is
// never modified.
func Rotate(loadings mat.Matrix, method domainstats.RotationMethod, cfg Config) (*Rotation, error) {
	var rot *Rotation
	switch method {
	case domainstats.RotationNone:
		rot = &Rotation{Loadings: mat.DenseCopyOf(loadings), Converged: true}
	case domainstats.RotationVarimax:
		rot = Varimax(loadings, cfg.VarimaxMaxIter, cfg.VarimaxEpsilon)
	case domainstats.RotationPromax:
		rot = Promax(loadings, cfg.PromaxKappa, cfg.VarimaxMaxIter, cfg.VarimaxEpsilon)
	case domainstats.RotationOblimin:
		rot = GradientProjection(loadings, Oblimin{Gamma: cfg.ObliminGamma}, cfg.gpa())
	case domainstats.RotationGeomin:
		rot = GradientProjection(loadings, Geomin{Epsilon: cfg.GeominEpsilon}, cfg.gpa())
	default:
		return nil, core.NewUnknownMethodError("rotation", method.String())
	}

	if method.Oblique() {
		orient(rot)
	}
	if !rot.Converged {
		rot.Advisories = append(rot.Advisories, domainstats.Advisory{
			Code:    domainstats.AdvisoryNotConverged,
			Subject: method.String(),
			Detail:  fmt.Sprintf("stopped after %d iterations", rot.Iterations),
		})
	}
	return rot, nil
}

// orient flips factors whose loadings sum negative. Flipping factor j also
// flips row and column j of Phi so L Phi L' is unchanged.
func orient(rot *Rotation) {
	p, k := rot.Loadings.Dims()
	for j := 0; j < k; j++ {
		var sum float64
		for i := 0; i < p; i++ {
			sum += rot.Loadings.At(i, j)
		}
		if sum >= 0 {
			continue
		}
		for i := 0; i < p; i++ {
			rot.Loadings.Set(i, j, -rot.Loadings.At(i, j))
		}
		if rot.Phi == nil {
			continue
		}
		for i := 0; i < k; i++ {
			if i == j {
				continue
			}
			rot.Phi.Set(i, j, -rot.Phi.At(i, j))
			rot.Phi.Set(j, i, -rot.Phi.At(j, i))
		}
	}
}

// unitDiagonal rescales a symmetric positive matrix to a correlation matrix
// and pins the diagonal to exactly 1.
func unitDiagonal(m mat.Matrix) *mat.Dense {
	n, _ := m.Dims()
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				out.Set(i, j, 1)
				continue
			}
			d := math.Sqrt(m.At(i, i) * m.At(j, j))
			if d == 0 || math.IsNaN(d) {
				continue
			}
			out.Set(i, j, m.At(i, j)/d)
		}
	}
	return out
}

func singularAdvisory(op, what string) domainstats.Advisory {
	return domainstats.Advisory{
		Code:    domainstats.AdvisorySingularFallback,
		Subject: op,
		Detail:  what + " was not invertible; identity substituted",
	}
}
