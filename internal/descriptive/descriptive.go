// Package descriptive summarizes variables, groups and conditions.
package descriptive

import (
	"math"

	"github.com/montanaflynn/stats"

	"statcore/domain/core"
	"statcore/domain/dataset"
	domainstats "statcore/domain/stats"
)

// Summarize describes one sample. Non-finite values count as missing. SD
// and SE use n-1 and are 0 for a single observation.
func Summarize(name string, values []float64) (domainstats.Summary, error) {
	s := domainstats.Summary{Variable: name}
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.Missing++
			continue
		}
		valid = append(valid, v)
	}
	s.N = len(valid)
	if s.N == 0 {
		return s, core.NewInsufficientDataError(name, 0, 1)
	}

	var err error
	if s.Mean, err = stats.Mean(valid); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(valid); err != nil {
		return s, err
	}
	if s.Min, err = stats.Min(valid); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(valid); err != nil {
		return s, err
	}
	if s.N > 1 {
		if s.Variance, err = stats.SampleVariance(valid); err != nil {
			return s, err
		}
		s.SD = math.Sqrt(s.Variance)
		s.SE = s.SD / math.Sqrt(float64(s.N))
	}
	return s, nil
}

// Variables summarizes each named column of a dataset. Missing cells are
// counted per variable rather than removed listwise.
func Variables(ds *dataset.Dataset, names []string) ([]domainstats.Summary, error) {
	out := make([]domainstats.Summary, 0, len(names))
	for _, name := range names {
		if !ds.HasColumn(name) {
			return nil, core.NewValidationError(name, "unknown variable", 0, 0)
		}
		s, err := Summarize(name, ds.Column(name))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Groups summarizes dependent within each level of a grouping column
func Groups(ds *dataset.Dataset, dependent, factor string) ([]domainstats.Summary, error) {
	for _, name := range []string{dependent, factor} {
		if !ds.HasColumn(name) {
			return nil, core.NewValidationError(name, "unknown variable", 0, 0)
		}
	}
	levels, data := ds.Split(dependent, ds.GroupBy(factor))
	out := make([]domainstats.Summary, 0, len(levels))
	for i, level := range levels {
		s, err := Summarize(level, data[i])
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
