package stats

import (
	"math"

	"github.com/goccy/go-json"
)

// JSON has no encoding for infinities, so statistics that can legitimately
// diverge (F with a zero error term, VIF under exact collinearity) are
// written as null.

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func (s SumsOfSquares) MarshalJSON() ([]byte, error) {
	type plain SumsOfSquares
	return json.Marshal(struct {
		plain
		F *float64 `json:"f"`
	}{plain(s), finiteOrNil(s.F)})
}

func (c Coefficient) MarshalJSON() ([]byte, error) {
	type plain Coefficient
	return json.Marshal(struct {
		plain
		VIF *float64 `json:"vif"`
		T   *float64 `json:"t"`
	}{plain(c), finiteOrNil(c.VIF), finiteOrNil(c.T)})
}

func (r RegressionResult) MarshalJSON() ([]byte, error) {
	type plain RegressionResult
	return json.Marshal(struct {
		plain
		F *float64 `json:"f"`
	}{plain(r), finiteOrNil(r.F)})
}

func (l LeveneResult) MarshalJSON() ([]byte, error) {
	type plain LeveneResult
	return json.Marshal(struct {
		plain
		F *float64 `json:"f"`
		P *float64 `json:"p"`
	}{plain(l), finiteOrNil(l.F), finiteOrNil(l.P)})
}

func (g GGCorrection) MarshalJSON() ([]byte, error) {
	type plain GGCorrection
	return json.Marshal(struct {
		plain
		Epsilon         *float64 `json:"epsilon"`
		DFConditionsAdj *float64 `json:"df_conditions_adj"`
		DFErrorAdj      *float64 `json:"df_error_adj"`
		PAdjusted       *float64 `json:"p_adjusted"`
	}{plain(g), finiteOrNil(g.Epsilon), finiteOrNil(g.DFConditionsAdj), finiteOrNil(g.DFErrorAdj), finiteOrNil(g.PAdjusted)})
}

// a zero standard error gives an infinite statistic and, for Welch, a NaN df
func (c ComparisonRecord) MarshalJSON() ([]byte, error) {
	type plain ComparisonRecord
	return json.Marshal(struct {
		plain
		Statistic *float64 `json:"statistic"`
		DF        *float64 `json:"df"`
		PRaw      *float64 `json:"p_raw"`
		PAdjusted *float64 `json:"p_adjusted"`
	}{plain(c), finiteOrNil(c.Statistic), finiteOrNil(c.DF), finiteOrNil(c.PRaw), finiteOrNil(c.PAdjusted)})
}

// error rows carry no test and write f, p and partial eta-squared as null
func (r SourceRow) MarshalJSON() ([]byte, error) {
	type plain SourceRow
	f, p, eta := finiteOrNil(r.F), finiteOrNil(r.P), finiteOrNil(r.PartialEtaSquared)
	if r.IsError {
		f, p, eta = nil, nil, nil
	}
	return json.Marshal(struct {
		plain
		F                 *float64 `json:"f"`
		P                 *float64 `json:"p"`
		PartialEtaSquared *float64 `json:"partial_eta_squared"`
	}{plain(r), f, p, eta})
}
