package stats

// ============================================================================
// ADVISORIES
// ============================================================================

// AdvisoryCode represents structured warning types attached to results
type AdvisoryCode string

const (
	AdvisoryOmegaClipped          AdvisoryCode = "OMEGA_SQUARED_CLIPPED"    // raw omega-squared was negative and clamped to 0
	AdvisorySingularFallback      AdvisoryCode = "SINGULAR_MATRIX_FALLBACK" // identity substituted for a singular inverse
	AdvisoryHeterogeneousVariance AdvisoryCode = "HETEROGENEOUS_VARIANCE"   // Levene/Brown-Forsythe rejected equal variances
	AdvisoryGroupDropped          AdvisoryCode = "GROUP_DROPPED"            // group had no valid observations
	AdvisoryPairSkipped           AdvisoryCode = "PAIR_SKIPPED"             // comparison skipped for < 2 observations
	AdvisoryNotConverged          AdvisoryCode = "NOT_CONVERGED"            // iterative solver hit its iteration cap
	AdvisorySphericityCorrected   AdvisoryCode = "SPHERICITY_CORRECTED"     // Greenhouse-Geisser epsilon < 1
)

// Advisory is a non-fatal condition the caller must be able to see
type Advisory struct {
	Code    AdvisoryCode `json:"code"`
	Subject string       `json:"subject,omitempty"`
	Detail  string       `json:"detail"`
}

// ============================================================================
// ANOVA RECORDS
// ============================================================================

// SumsOfSquares is the variance decomposition of a one-way design. For a
// repeated-measures design Between holds the conditions term, Within the
// error term and Subjects the between-subjects term.
// INVARIANT: Between + Within (+ Subjects) == Total within floating tolerance.
type SumsOfSquares struct {
	Between   float64 `json:"between_ss"`
	Within    float64 `json:"within_ss"`
	Subjects  float64 `json:"subjects_ss,omitempty"`
	Total     float64 `json:"total_ss"`
	DFBetween int     `json:"df_between"`
	DFWithin  int     `json:"df_within"`
	MSBetween float64 `json:"ms_between"`
	MSWithin  float64 `json:"ms_within"`
	F         float64 `json:"f"`
	P         float64 `json:"p"`
}

// EffectSizes holds eta/omega squared. OmegaClipped is set when the raw
// omega-squared estimator was negative and reported as 0.
type EffectSizes struct {
	EtaSquared        float64 `json:"eta_squared"`
	OmegaSquared      float64 `json:"omega_squared"`
	PartialEtaSquared float64 `json:"partial_eta_squared,omitempty"`
	RawOmegaSquared   float64 `json:"raw_omega_squared"`
	OmegaClipped      bool    `json:"omega_clipped"`
}

// GGCorrection is the Greenhouse-Geisser sphericity correction.
// INVARIANT: 1/(k-1) <= Epsilon <= 1
type GGCorrection struct {
	Epsilon         float64 `json:"epsilon"`
	DFConditionsAdj float64 `json:"df_conditions_adj"`
	DFErrorAdj      float64 `json:"df_error_adj"`
	PAdjusted       float64 `json:"p_adjusted"`
}

// GroupSummary describes one group or condition
type GroupSummary struct {
	Label string  `json:"label"`
	N     int     `json:"n"`
	Mean  float64 `json:"mean"`
	SD    float64 `json:"sd"`
	SE    float64 `json:"se"`
}

// LeveneResult is a homogeneity-of-variance test on absolute deviations
type LeveneResult struct {
	Center string  `json:"center"`
	F      float64 `json:"f"`
	DF1    int     `json:"df1"`
	DF2    int     `json:"df2"`
	P      float64 `json:"p"`
}

// Design distinguishes between-subjects, within-subjects and mixed layouts
type Design string

const (
	DesignIndependent Design = "independent"
	DesignRepeated    Design = "repeated"
	DesignMixed       Design = "mixed"
)

// ANOVAResult is the full output of a one-way analysis. Sphericity is only
// set for repeated designs, Levene only for independent ones.
type ANOVAResult struct {
	Design        Design             `json:"design"`
	Dependent     string             `json:"dependent"`
	Factor        string             `json:"factor,omitempty"`
	Groups        []GroupSummary     `json:"groups"`
	SS            SumsOfSquares      `json:"ss"`
	Effects       EffectSizes        `json:"effects"`
	Sphericity    *GGCorrection      `json:"sphericity,omitempty"`
	Levene        *LeveneResult      `json:"levene,omitempty"`
	PostHocMethod PostHocMethod      `json:"posthoc_method"`
	PostHoc       []ComparisonRecord `json:"posthoc,omitempty"`
	Advisories    []Advisory         `json:"advisories,omitempty"`
}

// Significant reports whether the omnibus test rejects at alpha, using the
// sphericity-corrected p-value when one exists.
func (r *ANOVAResult) Significant(alpha float64) bool {
	if r == nil {
		return false
	}
	p := r.SS.P
	if r.Sphericity != nil {
		p = r.Sphericity.PAdjusted
	}
	return p < alpha
}

// ============================================================================
// FACTORIAL RECORDS
// ============================================================================

// SourceRow is one line of a two-way source table. Error rows carry no test;
// effect rows name the error row that tested them.
type SourceRow struct {
	Source            string        `json:"source"`
	SS                float64       `json:"ss"`
	DF                int           `json:"df"`
	MS                float64       `json:"ms"`
	F                 float64       `json:"f"`
	P                 float64       `json:"p"`
	PartialEtaSquared float64       `json:"partial_eta_squared"`
	ErrorTerm         string        `json:"error_term,omitempty"`
	IsError           bool          `json:"is_error"`
	Sphericity        *GGCorrection `json:"sphericity,omitempty"`
}

// CellSummary describes one factor-level combination
type CellSummary struct {
	A    string  `json:"a"`
	B    string  `json:"b"`
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
}

// TwoWayResult is a two-factor ANOVA. For a mixed design FactorA is the
// between-subjects factor and FactorB the within-subjects one.
type TwoWayResult struct {
	Design     Design        `json:"design"`
	Dependent  string        `json:"dependent"`
	FactorA    string        `json:"factor_a"`
	FactorB    string        `json:"factor_b"`
	LevelsA    []string      `json:"levels_a"`
	LevelsB    []string      `json:"levels_b"`
	Cells      []CellSummary `json:"cells"`
	Sources    []SourceRow   `json:"sources"`
	Advisories []Advisory    `json:"advisories,omitempty"`
}

// Effect returns the tested row named source, or nil
func (r *TwoWayResult) Effect(source string) *SourceRow {
	for i := range r.Sources {
		if r.Sources[i].Source == source && !r.Sources[i].IsError {
			return &r.Sources[i]
		}
	}
	return nil
}

// ============================================================================
// POST-HOC RECORDS
// ============================================================================

// StatisticKind names the test statistic of a comparison
type StatisticKind string

const (
	StatisticQ StatisticKind = "q"
	StatisticT StatisticKind = "t"
)

// ComparisonRecord is one unordered pairwise comparison. Records are never
// mutated after the post-hoc engine returns them.
type ComparisonRecord struct {
	ItemA         string        `json:"item_a"`
	ItemB         string        `json:"item_b"`
	MeanA         float64       `json:"mean_a"`
	MeanB         float64       `json:"mean_b"`
	MeanDiff      float64       `json:"mean_diff"`
	Statistic     float64       `json:"statistic"`
	StatisticKind StatisticKind `json:"statistic_kind"`
	DF            float64       `json:"df"`
	PRaw          float64       `json:"p_raw"`
	PAdjusted     float64       `json:"p_adjusted"`
	NA            int           `json:"n_a"`
	NB            int           `json:"n_b"`
	Significant   bool          `json:"significant"`
}

// ============================================================================
// FACTOR RECORDS
// ============================================================================

// FactorVariance is the variance accounted for by one factor
type FactorVariance struct {
	SSLoadings float64 `json:"ss_loadings"`
	Proportion float64 `json:"proportion"`
	Cumulative float64 `json:"cumulative"`
}

// FactorSolution is an extracted, possibly rotated, loading matrix.
// Items lists the variables loading saliently on each factor and
// Reliability their Cronbach alpha (nil with fewer than two items).
// Loadings is variables x factors. FactorCorrelations is nil for orthogonal
// solutions and has an exact unit diagonal for oblique ones.
type FactorSolution struct {
	Variables          []string         `json:"variables"`
	Rotation           RotationMethod   `json:"rotation"`
	Loadings           [][]float64      `json:"loadings"`
	Eigenvalues        []float64        `json:"eigenvalues"`
	FactorCorrelations [][]float64      `json:"factor_correlations,omitempty"`
	Communalities      []float64        `json:"communalities"`
	Variance           []FactorVariance `json:"variance"`
	Items              [][]string       `json:"items"`
	Reliability        []*float64       `json:"reliability"`
	Iterations         int              `json:"iterations"`
	Converged          bool             `json:"converged"`
	Advisories         []Advisory       `json:"advisories,omitempty"`
}

// NumFactors returns the number of factor columns
func (s *FactorSolution) NumFactors() int {
	if s == nil || len(s.Loadings) == 0 {
		return 0
	}
	return len(s.Loadings[0])
}

// ============================================================================
// DESCRIPTIVES
// ============================================================================

// Summary holds descriptive statistics of one variable
type Summary struct {
	Variable string  `json:"variable"`
	N        int     `json:"n"`
	Missing  int     `json:"missing"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	SD       float64 `json:"sd"`
	Variance float64 `json:"variance"`
	SE       float64 `json:"se"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// ============================================================================
// REGRESSION
// ============================================================================

// Coefficient is one term of a fitted linear model. Beta and VIF are zero for
// the intercept; VIF is +Inf when the predictor is a linear combination of
// the others.
type Coefficient struct {
	Term     string  `json:"term"`
	Estimate float64 `json:"estimate"`
	SE       float64 `json:"se"`
	T        float64 `json:"t"`
	P        float64 `json:"p"`
	Beta     float64 `json:"beta"`
	VIF      float64 `json:"vif"`
}

// RegressionResult is an ordinary least squares fit with intercept
type RegressionResult struct {
	Dependent    string        `json:"dependent"`
	Predictors   []string      `json:"predictors"`
	N            int           `json:"n"`
	Coefficients []Coefficient `json:"coefficients"`
	R2           float64       `json:"r2"`
	AdjustedR2   float64       `json:"adjusted_r2"`
	ResidualSE   float64       `json:"residual_se"`
	F            float64       `json:"f"`
	DFModel      int           `json:"df_model"`
	DFResidual   int           `json:"df_residual"`
	P            float64       `json:"p"`
	Advisories   []Advisory    `json:"advisories,omitempty"`
}

// ============================================================================
// T-TEST RECORDS
// ============================================================================

// TTestKind names the two-sample t-test variant that was run
type TTestKind string

const (
	TTestStudent TTestKind = "student"
	TTestWelch   TTestKind = "welch"
	TTestPaired  TTestKind = "paired"
)

// TTestResult is a single two-sample comparison. Comparison.PAdjusted equals
// PRaw. Levene is set for independent samples and drove the choice between
// Student and Welch unless the variance assumption was fixed by the caller.
type TTestResult struct {
	Kind       TTestKind        `json:"kind"`
	Comparison ComparisonRecord `json:"comparison"`
	CohensD    float64          `json:"cohens_d"`
	Levene     *LeveneResult    `json:"levene,omitempty"`
	Advisories []Advisory       `json:"advisories,omitempty"`
}
