package factor

import (
	domainstats "statcore/domain/stats"
	"statcore/internal/linalg"
)

// Analyze extracts nFactors (Kaiser criterion when <= 0) from listwise
// complete data, rotates them and attaches communalities, explained variance
// and per-factor reliability.
func Analyze(variables []string, data [][]float64, nFactors int, method domainstats.RotationMethod, cfg Config) (*domainstats.FactorSolution, error) {
	ext, err := Extract(variables, data, nFactors)
	if err != nil {
		return nil, err
	}
	rot, err := Rotate(ext.Loadings, method, cfg)
	if err != nil {
		return nil, err
	}

	sol := &domainstats.FactorSolution{
		Variables:     ext.Variables,
		Rotation:      method,
		Loadings:      linalg.ToRows(rot.Loadings),
		Eigenvalues:   ext.Eigenvalues,
		Communalities: Communalities(rot.Loadings),
		Variance:      VarianceExplained(rot.Loadings),
		Iterations:    rot.Iterations,
		Converged:     rot.Converged,
		Advisories:    rot.Advisories,
	}
	if rot.Phi != nil {
		sol.FactorCorrelations = linalg.ToRows(rot.Phi)
	}

	salient := SalientItems(rot.Loadings)
	sol.Items = make([][]string, len(salient))
	sol.Reliability = make([]*float64, len(salient))
	for j, idx := range salient {
		for _, i := range idx {
			sol.Items[j] = append(sol.Items[j], variables[i])
		}
		if alpha, ok := CronbachAlpha(data, idx); ok {
			sol.Reliability[j] = &alpha
		}
	}
	return sol, nil
}
