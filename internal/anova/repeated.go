package anova

import (
	"strings"

	"github.com/montanaflynn/stats"

	"statcore/domain/core"
	domainstats "statcore/domain/stats"
)

// MinConditions is the smallest number of conditions a repeated design accepts
const MinConditions = 3

// Repeated runs a one-way repeated-measures ANOVA. subjects holds one row
// per subject with one column per condition; rows with any non-finite value
// are excluded listwise. The result carries the Greenhouse-Geisser correction.
func Repeated(conditions []string, subjects [][]float64) (*domainstats.ANOVAResult, error) {
	k := len(conditions)
	if k < MinConditions {
		return nil, core.NewValidationError("conditions", "repeated measures needs at least three conditions", float64(k), MinConditions)
	}

	complete := make([][]float64, 0, len(subjects))
	for _, row := range subjects {
		if len(row) != k {
			return nil, core.NewValidationError("subjects", "row width does not match condition count", float64(len(row)), float64(k))
		}
		if len(finite(row)) == k {
			complete = append(complete, row)
		}
	}
	n := len(complete)
	if n < 2 {
		return nil, core.NewInsufficientDataError("subjects", n, 2)
	}

	dfConditions := k - 1
	dfError := (n - 1) * (k - 1)
	if dfError <= 0 {
		return nil, core.NewValidationError("df_error", "error degrees of freedom must be positive", float64(dfError), 1)
	}

	columns := make([][]float64, k)
	for j := range columns {
		columns[j] = make([]float64, n)
		for i, row := range complete {
			columns[j][i] = row[j]
		}
	}

	var sum float64
	for _, row := range complete {
		for _, v := range row {
			sum += v
		}
	}
	grandMean := sum / float64(n*k)

	var ssTotal, ssSubjects, ssConditions float64
	for _, row := range complete {
		m, _ := stats.Mean(row)
		d := m - grandMean
		ssSubjects += d * d
		for _, v := range row {
			t := v - grandMean
			ssTotal += t * t
		}
	}
	ssSubjects *= float64(k)

	result := &domainstats.ANOVAResult{
		Design:    domainstats.DesignRepeated,
		Dependent: strings.Join(conditions, " vs "),
		Groups:    make([]domainstats.GroupSummary, k),
	}
	for j, col := range columns {
		result.Groups[j] = summarize(conditions[j], col)
		d := result.Groups[j].Mean - grandMean
		ssConditions += d * d
	}
	ssConditions *= float64(n)
	if ssTotal == 0 {
		return nil, zeroVarianceError(result.Dependent)
	}

	ssError := ssTotal - ssSubjects - ssConditions
	if ssError < 0 {
		// rounding residue on perfectly additive data
		ssError = 0
	}

	msConditions := ssConditions / float64(dfConditions)
	msError := ssError / float64(dfError)
	f, p := fTest(msConditions, msError, float64(dfConditions), float64(dfError))

	result.SS = domainstats.SumsOfSquares{
		Between:   ssConditions,
		Within:    ssError,
		Subjects:  ssSubjects,
		Total:     ssTotal,
		DFBetween: dfConditions,
		DFWithin:  dfError,
		MSBetween: msConditions,
		MSWithin:  msError,
		F:         f,
		P:         p,
	}

	raw, omega, clipped := omegaSquared(ssConditions, ssTotal, msError, dfConditions)
	partial := 0.0
	if ssConditions+ssError > 0 {
		partial = ssConditions / (ssConditions + ssError)
	}
	result.Effects = domainstats.EffectSizes{
		EtaSquared:        ssConditions / ssTotal,
		PartialEtaSquared: partial,
		OmegaSquared:      omega,
		RawOmegaSquared:   raw,
		OmegaClipped:      clipped,
	}
	if clipped {
		result.Advisories = append(result.Advisories, omegaAdvisory(result.Dependent, raw))
	}

	eps := GreenhouseGeisserFromData(columns)
	result.Sphericity = ggCorrection(eps, f, p, dfConditions, dfError)
	if eps < 1 {
		result.Advisories = append(result.Advisories, sphericityAdvisory(result.Dependent, result.Sphericity))
	}

	return result, nil
}
