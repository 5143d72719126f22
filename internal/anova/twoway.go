package anova

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
	"statcore/internal/linalg"
)

// MinLevels is the fewest levels either factor of a two-way design may have
const MinLevels = 2

const errorSource = "Error"

// Observation is one between-subjects measurement labelled by both factors
type Observation struct {
	A     string
	B     string
	Value float64
}

// SubjectGroup holds the subjects of one between-subjects level; each row
// has one value per within-subjects condition.
type SubjectGroup struct {
	Label    string
	Subjects [][]float64
}

func interactionName(a, b string) string {
	return a + " x " + b
}

func effectRow(source string, ss float64, df int, errorTerm string, ssError float64, dfError int) domainstats.SourceRow {
	row := domainstats.SourceRow{Source: source, SS: ss, DF: df, ErrorTerm: errorTerm}
	row.MS = ss / float64(df)
	row.F, row.P = fTest(row.MS, ssError/float64(dfError), float64(df), float64(dfError))
	if ss+ssError > 0 {
		row.PartialEtaSquared = ss / (ss + ssError)
	}
	return row
}

func errorRow(source string, ss float64, df int) domainstats.SourceRow {
	return domainstats.SourceRow{Source: source, SS: ss, DF: df, MS: ss / float64(df), IsError: true}
}

// nonNegative absorbs rounding residue from subtractive decompositions
func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func levelIndex(levels []string) map[string]int {
	idx := make(map[string]int, len(levels))
	for i, l := range levels {
		idx[l] = i
	}
	return idx
}

// TwoWayIndependent runs a two-factor between-subjects ANOVA. Sums of squares
// are Type III, each effect being the loss in fit when its effect-coded
// columns leave the full model, so unbalanced cells are handled exactly.
// Every cell needs an observation and N must exceed the number of cells.
func TwoWayIndependent(dependent, factorA, factorB string, observations []Observation) (*domainstats.TwoWayResult, error) {
	kept := make([]Observation, 0, len(observations))
	seenA, seenB := map[string]bool{}, map[string]bool{}
	var levelsA, levelsB []string
	for _, o := range observations {
		if o.A == "" || o.B == "" || math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			continue
		}
		kept = append(kept, o)
		if !seenA[o.A] {
			seenA[o.A] = true
			levelsA = append(levelsA, o.A)
		}
		if !seenB[o.B] {
			seenB[o.B] = true
			levelsB = append(levelsB, o.B)
		}
	}
	sort.Strings(levelsA)
	sort.Strings(levelsB)
	a, b := len(levelsA), len(levelsB)
	if a < MinLevels {
		return nil, core.NewValidationError(factorA, "factor needs at least two levels", float64(a), MinLevels)
	}
	if b < MinLevels {
		return nil, core.NewValidationError(factorB, "factor needs at least two levels", float64(b), MinLevels)
	}

	idxA, idxB := levelIndex(levelsA), levelIndex(levelsB)
	cells := make([][]float64, a*b)
	for _, o := range kept {
		c := idxA[o.A]*b + idxB[o.B]
		cells[c] = append(cells[c], o.Value)
	}
	result := &domainstats.TwoWayResult{
		Design:    domainstats.DesignIndependent,
		Dependent: dependent,
		FactorA:   factorA,
		FactorB:   factorB,
		LevelsA:   levelsA,
		LevelsB:   levelsB,
		Cells:     make([]domainstats.CellSummary, 0, a*b),
	}
	for i, la := range levelsA {
		for j, lb := range levelsB {
			values := cells[i*b+j]
			if len(values) == 0 {
				return nil, core.NewValidationError("cells", fmt.Sprintf("cell %s=%s, %s=%s has no observations", factorA, la, factorB, lb), 0, 1)
			}
			s := summarize("", values)
			result.Cells = append(result.Cells, domainstats.CellSummary{A: la, B: lb, N: s.N, Mean: s.Mean, SD: s.SD})
		}
	}

	n := len(kept)
	dfA, dfB := a-1, b-1
	dfAB := dfA * dfB
	dfError := n - a*b
	if dfError <= 0 {
		return nil, core.NewValidationError("df_error", "error degrees of freedom must be positive", float64(dfError), 1)
	}

	// columns: intercept | A (a-1) | B (b-1) | AxB ((a-1)(b-1))
	x := mat.NewDense(n, 1+dfA+dfB+dfAB, nil)
	y := mat.NewVecDense(n, nil)
	for r, o := range kept {
		ea := effectCode(idxA[o.A], a)
		eb := effectCode(idxB[o.B], b)
		x.Set(r, 0, 1)
		for i, v := range ea {
			x.Set(r, 1+i, v)
		}
		for j, v := range eb {
			x.Set(r, 1+dfA+j, v)
		}
		for i, va := range ea {
			for j, vb := range eb {
				x.Set(r, 1+dfA+dfB+i*dfB+j, va*vb)
			}
		}
		y.SetVec(r, o.Value)
	}

	mean := stat.Mean(y.RawVector().Data, nil)
	var ssTotal float64
	for _, v := range y.RawVector().Data {
		ssTotal += (v - mean) * (v - mean)
	}
	if ssTotal == 0 {
		return nil, zeroVarianceError(dependent)
	}

	blockA := span(1, dfA)
	blockB := span(1+dfA, dfB)
	blockAB := span(1+dfA+dfB, dfAB)
	full := append(append(append([]int{0}, blockA...), blockB...), blockAB...)
	ssError, err := residualSS(x, full, y)
	if err != nil {
		return nil, err
	}
	typeIII := func(drop []int) (float64, error) {
		reduced, err := residualSS(x, without(full, drop), y)
		if err != nil {
			return 0, err
		}
		return nonNegative(reduced - ssError), nil
	}
	ssA, err := typeIII(blockA)
	if err != nil {
		return nil, err
	}
	ssB, err := typeIII(blockB)
	if err != nil {
		return nil, err
	}
	ssAB, err := typeIII(blockAB)
	if err != nil {
		return nil, err
	}

	result.Sources = []domainstats.SourceRow{
		effectRow(factorA, ssA, dfA, errorSource, ssError, dfError),
		effectRow(factorB, ssB, dfB, errorSource, ssError, dfError),
		effectRow(interactionName(factorA, factorB), ssAB, dfAB, errorSource, ssError, dfError),
		errorRow(errorSource, ssError, dfError),
	}
	return result, nil
}

// effectCode codes level i of k as k-1 sum-to-zero indicators; the last level
// is -1 throughout.
func effectCode(i, k int) []float64 {
	out := make([]float64, k-1)
	if i == k-1 {
		for j := range out {
			out[j] = -1
		}
		return out
	}
	out[i] = 1
	return out
}

func span(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func without(cols, drop []int) []int {
	skip := make(map[int]bool, len(drop))
	for _, c := range drop {
		skip[c] = true
	}
	out := make([]int, 0, len(cols))
	for _, c := range cols {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}

// residualSS fits y on the selected columns of x by the normal equations and
// returns the residual sum of squares.
func residualSS(x *mat.Dense, cols []int, y *mat.VecDense) (float64, error) {
	n, _ := x.Dims()
	sub := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		for i := 0; i < n; i++ {
			sub.Set(i, j, x.At(i, c))
		}
	}
	var xtx mat.Dense
	xtx.Mul(sub.T(), sub)
	inv, err := linalg.Invert(&xtx)
	if err != nil {
		return 0, err
	}
	var xty, beta, fitted mat.VecDense
	xty.MulVec(sub.T(), y)
	beta.MulVec(inv, &xty)
	fitted.MulVec(sub, &beta)
	fitted.SubVec(y, &fitted)
	return mat.Dot(&fitted, &fitted), nil
}

// TwoWayRepeated runs a two-factor within-subjects ANOVA. Each subject row
// holds a*b values ordered A-major: column i*b+j is (levelsA[i], levelsB[j]).
// Rows with a non-finite value are excluded listwise. Each effect is tested
// against its own effect x subject error term and carries a
// Greenhouse-Geisser correction.
func TwoWayRepeated(factorA, factorB string, levelsA, levelsB []string, subjects [][]float64) (*domainstats.TwoWayResult, error) {
	a, b := len(levelsA), len(levelsB)
	if a < MinLevels {
		return nil, core.NewValidationError(factorA, "factor needs at least two levels", float64(a), MinLevels)
	}
	if b < MinLevels {
		return nil, core.NewValidationError(factorB, "factor needs at least two levels", float64(b), MinLevels)
	}
	width := a * b
	complete := make([][]float64, 0, len(subjects))
	for _, row := range subjects {
		if len(row) != width {
			return nil, core.NewValidationError("subjects", "row width does not match the number of cells", float64(len(row)), float64(width))
		}
		if len(finite(row)) == width {
			complete = append(complete, row)
		}
	}
	n := len(complete)
	if n < 2 {
		return nil, core.NewInsufficientDataError("subjects", n, 2)
	}
	nf, af, bf := float64(n), float64(a), float64(b)

	data := linalg.FromRows(complete)
	var grand float64
	for _, row := range complete {
		for _, v := range row {
			grand += v
		}
	}
	grand /= nf * float64(width)

	cellMean := make([]float64, width)
	meanA := make([]float64, a)
	meanB := make([]float64, b)
	var ssTotal, ssS, ssAS, ssBS float64
	for _, row := range complete {
		var subj float64
		perA := make([]float64, a)
		perB := make([]float64, b)
		for i := 0; i < a; i++ {
			for j := 0; j < b; j++ {
				v := row[i*b+j]
				d := v - grand
				ssTotal += d * d
				subj += v
				perA[i] += v
				perB[j] += v
				cellMean[i*b+j] += v / nf
			}
		}
		subj /= float64(width)
		ssS += (subj - grand) * (subj - grand)
		for i := range perA {
			m := perA[i] / bf
			meanA[i] += m / nf
			ssAS += (m - grand) * (m - grand)
		}
		for j := range perB {
			m := perB[j] / af
			meanB[j] += m / nf
			ssBS += (m - grand) * (m - grand)
		}
	}
	if ssTotal == 0 {
		return nil, zeroVarianceError(interactionName(factorA, factorB))
	}
	ssS *= float64(width)

	var ssA, ssB, ssCells float64
	for _, m := range meanA {
		ssA += (m - grand) * (m - grand)
	}
	ssA *= bf * nf
	for _, m := range meanB {
		ssB += (m - grand) * (m - grand)
	}
	ssB *= af * nf
	for _, m := range cellMean {
		ssCells += (m - grand) * (m - grand)
	}
	ssCells *= nf
	ssAB := nonNegative(ssCells - ssA - ssB)
	ssAS = nonNegative(bf*ssAS - ssS - ssA)
	ssBS = nonNegative(af*ssBS - ssS - ssB)
	ssABS := nonNegative(ssTotal - ssS - ssA - ssB - ssAB - ssAS - ssBS)

	dfA, dfB := a-1, b-1
	dfAB := dfA * dfB
	dfS := n - 1

	result := &domainstats.TwoWayResult{
		Design:    domainstats.DesignRepeated,
		Dependent: interactionName(factorA, factorB),
		FactorA:   factorA,
		FactorB:   factorB,
		LevelsA:   levelsA,
		LevelsB:   levelsB,
		Cells:     make([]domainstats.CellSummary, 0, width),
	}
	for i, la := range levelsA {
		for j, lb := range levelsB {
			s := summarize("", mat.Col(nil, i*b+j, data))
			result.Cells = append(result.Cells, domainstats.CellSummary{A: la, B: lb, N: s.N, Mean: s.Mean, SD: s.SD})
		}
	}

	ab := interactionName(factorA, factorB)
	errA := interactionName(factorA, "Subject")
	errB := interactionName(factorB, "Subject")
	errAB := interactionName(ab, "Subject")
	rowA := effectRow(factorA, ssA, dfA, errA, ssAS, dfA*dfS)
	rowB := effectRow(factorB, ssB, dfB, errB, ssBS, dfB*dfS)
	rowAB := effectRow(ab, ssAB, dfAB, errAB, ssABS, dfAB*dfS)

	contrasts := []*mat.Dense{
		kronecker(helmert(a), averaging(b)),
		kronecker(averaging(a), helmert(b)),
		kronecker(helmert(a), helmert(b)),
	}
	for k, row := range []*domainstats.SourceRow{&rowA, &rowB, &rowAB} {
		var cov mat.SymDense
		stat.CovarianceMatrix(&cov, scores(data, contrasts[k]), nil)
		eps := contrastEpsilon(&cov)
		row.Sphericity = ggCorrection(eps, row.F, row.P, row.DF, row.DF*dfS)
		if eps < 1 {
			result.Advisories = append(result.Advisories, sphericityAdvisory(row.Source, row.Sphericity))
		}
	}

	result.Sources = []domainstats.SourceRow{
		rowA, errorRow(errA, ssAS, dfA*dfS),
		rowB, errorRow(errB, ssBS, dfB*dfS),
		rowAB, errorRow(errAB, ssABS, dfAB*dfS),
	}
	return result, nil
}

func kronecker(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Kronecker(a, b)
	return &out
}

// TwoWayMixed runs a split-plot ANOVA with one between-subjects factor (the
// groups) and one within-subjects factor (the conditions). The between
// effect is tested against subjects within groups; the within effect and the
// interaction against the pooled condition x subject term, with a
// Greenhouse-Geisser correction from the pooled within-group covariance.
func TwoWayMixed(between, within string, conditions []string, groups []SubjectGroup) (*domainstats.TwoWayResult, error) {
	k := len(conditions)
	if k < MinLevels {
		return nil, core.NewValidationError(within, "factor needs at least two levels", float64(k), MinLevels)
	}

	result := &domainstats.TwoWayResult{
		Design:    domainstats.DesignMixed,
		Dependent: interactionName(between, within),
		FactorA:   between,
		FactorB:   within,
		LevelsB:   conditions,
	}
	kept := make([]SubjectGroup, 0, len(groups))
	for _, g := range groups {
		var rows [][]float64
		for _, row := range g.Subjects {
			if len(row) != k {
				return nil, core.NewValidationError("subjects", "row width does not match condition count", float64(len(row)), float64(k))
			}
			if len(finite(row)) == k {
				rows = append(rows, row)
			}
		}
		if len(rows) == 0 {
			result.Advisories = append(result.Advisories, domainstats.Advisory{
				Code:    domainstats.AdvisoryGroupDropped,
				Subject: g.Label,
				Detail:  "group has no complete subjects",
			})
			continue
		}
		kept = append(kept, SubjectGroup{Label: g.Label, Subjects: rows})
		result.LevelsA = append(result.LevelsA, g.Label)
	}
	g := len(kept)
	if g < MinLevels {
		return nil, core.NewValidationError(between, "factor needs at least two non-empty levels", float64(g), MinLevels)
	}
	var n int
	for _, grp := range kept {
		n += len(grp.Subjects)
	}
	dfBetween := g - 1
	dfErrorBetween := n - g
	if dfErrorBetween <= 0 {
		return nil, core.NewValidationError("df_error", "between-subjects error degrees of freedom must be positive", float64(dfErrorBetween), 1)
	}
	dfWithin := k - 1
	dfInteraction := dfBetween * dfWithin
	dfErrorWithin := dfErrorBetween * dfWithin
	kf, nf := float64(k), float64(n)

	var grand float64
	for _, grp := range kept {
		for _, row := range grp.Subjects {
			for _, v := range row {
				grand += v
			}
		}
	}
	grand /= nf * kf

	condMean := make([]float64, k)
	var ssTotal, ssSubjects, ssBetween, ssCells float64
	for _, grp := range kept {
		ng := float64(len(grp.Subjects))
		columns := make([][]float64, k)
		var groupSum float64
		for _, row := range grp.Subjects {
			var subj float64
			for j, v := range row {
				d := v - grand
				ssTotal += d * d
				subj += v
				condMean[j] += v / nf
				columns[j] = append(columns[j], v)
			}
			groupSum += subj
			subj /= kf
			ssSubjects += (subj - grand) * (subj - grand)
		}
		gm := groupSum / (ng * kf)
		ssBetween += ng * kf * (gm - grand) * (gm - grand)
		for j, col := range columns {
			s := summarize("", col)
			ssCells += ng * (s.Mean - grand) * (s.Mean - grand)
			result.Cells = append(result.Cells, domainstats.CellSummary{A: grp.Label, B: conditions[j], N: s.N, Mean: s.Mean, SD: s.SD})
		}
	}
	if ssTotal == 0 {
		return nil, zeroVarianceError(result.Dependent)
	}
	ssSubjects *= kf
	var ssWithin float64
	for _, m := range condMean {
		ssWithin += (m - grand) * (m - grand)
	}
	ssWithin *= nf
	ssErrorBetween := nonNegative(ssSubjects - ssBetween)
	ssInteraction := nonNegative(ssCells - ssBetween - ssWithin)
	ssErrorWithin := nonNegative(ssTotal - ssSubjects - ssWithin - ssInteraction)

	errBetween := interactionName("Subject", between)
	errWithin := interactionName(within, "Subject")
	rowBetween := effectRow(between, ssBetween, dfBetween, errBetween, ssErrorBetween, dfErrorBetween)
	rowWithin := effectRow(within, ssWithin, dfWithin, errWithin, ssErrorWithin, dfErrorWithin)
	rowInteraction := effectRow(interactionName(between, within), ssInteraction, dfInteraction, errWithin, ssErrorWithin, dfErrorWithin)

	eps := contrastEpsilon(pooledContrastCovariance(kept, helmert(k), dfErrorBetween))
	for _, row := range []*domainstats.SourceRow{&rowWithin, &rowInteraction} {
		row.Sphericity = ggCorrection(eps, row.F, row.P, row.DF, dfErrorWithin)
		if eps < 1 {
			result.Advisories = append(result.Advisories, sphericityAdvisory(row.Source, row.Sphericity))
		}
	}

	result.Sources = []domainstats.SourceRow{
		rowBetween, errorRow(errBetween, ssErrorBetween, dfErrorBetween),
		rowWithin, rowInteraction, errorRow(errWithin, ssErrorWithin, dfErrorWithin),
	}
	return result, nil
}

// pooledContrastCovariance centers the contrast scores of each group on the
// group mean and pools the cross-products over df.
func pooledContrastCovariance(groups []SubjectGroup, contrast *mat.Dense, df int) *mat.Dense {
	m, _ := contrast.Dims()
	pooled := mat.NewDense(m, m, nil)
	for _, grp := range groups {
		s := scores(linalg.FromRows(grp.Subjects), contrast)
		rows, _ := s.Dims()
		for j := 0; j < m; j++ {
			col := mat.Col(nil, j, s)
			mean := stat.Mean(col, nil)
			for i := 0; i < rows; i++ {
				s.Set(i, j, col[i]-mean)
			}
		}
		var cp mat.Dense
		cp.Mul(s.T(), s)
		pooled.Add(pooled, &cp)
	}
	pooled.Scale(1/float64(df), pooled)
	return pooled
}
