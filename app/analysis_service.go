package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"statcore/domain/core"
	"statcore/domain/dataset"
	domainstats "statcore/domain/stats"
	"statcore/internal/anova"
	"statcore/internal/config"
	"statcore/internal/descriptive"
	"statcore/internal/factor"
	"statcore/internal/posthoc"
	"statcore/internal/regression"
)

// Kind names the analysis a report holds
type Kind string

const (
	KindDescriptives Kind = "descriptives"
	KindIndependent  Kind = "anova_independent"
	KindRepeated     Kind = "anova_repeated"
	KindTwoWay       Kind = "anova_two_way"
	KindTTest        Kind = "ttest"
	KindFactor       Kind = "factor"
	KindRegression   Kind = "regression"
)

// Observer receives one call per finished analysis. The HTTP adapter uses it
// for metrics.
type Observer interface {
	ObserveAnalysis(kind Kind, duration time.Duration, err error)
}

// Report wraps one analysis result with its identity. Exactly one of the
// result fields is set, according to Kind.
type Report struct {
	ID           core.ReportID                 `json:"id"`
	Kind         Kind                          `json:"kind"`
	CreatedAt    time.Time                     `json:"created_at"`
	DurationMs   int64                         `json:"duration_ms"`
	Descriptives []domainstats.Summary         `json:"descriptives,omitempty"`
	ANOVA        *domainstats.ANOVAResult      `json:"anova,omitempty"`
	TwoWay       *domainstats.TwoWayResult     `json:"two_way,omitempty"`
	TTest        *domainstats.TTestResult      `json:"ttest,omitempty"`
	Factor       *domainstats.FactorSolution   `json:"factor,omitempty"`
	Regression   *domainstats.RegressionResult `json:"regression,omitempty"`
}

// Advisories returns the advisories of whichever result the report holds
func (r *Report) Advisories() []domainstats.Advisory {
	switch {
	case r.ANOVA != nil:
		return r.ANOVA.Advisories
	case r.TwoWay != nil:
		return r.TwoWay.Advisories
	case r.TTest != nil:
		return r.TTest.Advisories
	case r.Factor != nil:
		return r.Factor.Advisories
	case r.Regression != nil:
		return r.Regression.Advisories
	}
	return nil
}

// DescriptivesRequest summarizes variables, optionally split by a grouping column
type DescriptivesRequest struct {
	Variables []string `json:"variables" binding:"required,min=1"`
	GroupBy   string   `json:"group_by,omitempty"`
}

// IndependentRequest is a one-way between-subjects ANOVA
type IndependentRequest struct {
	Dependent    string                    `json:"dependent" binding:"required"`
	Factor       string                    `json:"factor" binding:"required"`
	PostHoc      domainstats.PostHocMethod `json:"posthoc"`
	Force        bool                      `json:"force,omitempty"`
	LeveneCenter anova.Center              `json:"levene_center,omitempty"`
}

// RepeatedRequest is a one-way within-subjects ANOVA over condition columns
type RepeatedRequest struct {
	Conditions []string                  `json:"conditions" binding:"required,min=3"`
	PostHoc    domainstats.PostHocMethod `json:"posthoc"`
	Force      bool                      `json:"force,omitempty"`
}

// TwoWayRequest is a two-factor ANOVA. Independent designs split Dependent
// by the FactorA and FactorB columns. Repeated designs read Conditions as the
// LevelsA x LevelsB cells in A-major order, naming the factors FactorA and
// FactorB. Mixed designs split subjects by the FactorA column and treat
// Conditions as the levels of the within factor FactorB.
type TwoWayRequest struct {
	Design     domainstats.Design `json:"design" binding:"required,oneof=independent repeated mixed"`
	Dependent  string             `json:"dependent,omitempty"`
	FactorA    string             `json:"factor_a" binding:"required"`
	FactorB    string             `json:"factor_b" binding:"required"`
	LevelsA    []string           `json:"levels_a,omitempty"`
	LevelsB    []string           `json:"levels_b,omitempty"`
	Conditions []string           `json:"conditions,omitempty"`
}

// TTestRequest compares columns A and B, or the two levels of Factor on
// Dependent. Paired tests need columns.
type TTestRequest struct {
	A         string                     `json:"a,omitempty"`
	B         string                     `json:"b,omitempty"`
	Dependent string                     `json:"dependent,omitempty"`
	Factor    string                     `json:"factor,omitempty"`
	Paired    bool                       `json:"paired,omitempty"`
	Variance  posthoc.VarianceAssumption `json:"variance,omitempty"`
}

// FactorRequest extracts and rotates principal components. Factors <= 0
// keeps components with eigenvalue above 1.
type FactorRequest struct {
	Variables []string                   `json:"variables" binding:"required,min=2"`
	Factors   int                        `json:"factors"`
	Rotation  domainstats.RotationMethod `json:"rotation"`
}

// RegressionRequest fits an OLS model with intercept
type RegressionRequest struct {
	Dependent  string   `json:"dependent" binding:"required"`
	Predictors []string `json:"predictors" binding:"required,min=1"`
}

// BatchRequest runs the same independent ANOVA over several dependents
type BatchRequest struct {
	Dependents   []string                  `json:"dependents" binding:"required,min=1"`
	Factor       string                    `json:"factor" binding:"required"`
	PostHoc      domainstats.PostHocMethod `json:"posthoc"`
	Force        bool                      `json:"force,omitempty"`
	LeveneCenter anova.Center              `json:"levene_center,omitempty"`
}

// BatchItem is one dependent of a batch. A failed dependent carries its
// error and does not affect the others.
type BatchItem struct {
	Dependent string  `json:"dependent"`
	Report    *Report `json:"report,omitempty"`
	Err       error   `json:"-"`
	Error     string  `json:"error,omitempty"`
}

// AnalysisService runs analyses over in-memory datasets
type AnalysisService struct {
	cfg      *config.Config
	log      zerolog.Logger
	observer Observer
}

// NewAnalysisService creates an analysis service. A nil cfg uses the defaults.
func NewAnalysisService(cfg *config.Config, log zerolog.Logger) *AnalysisService {
	if cfg == nil {
		cfg = config.Default()
	}
	return &AnalysisService{cfg: cfg, log: log.With().Str("component", "analysis").Logger()}
}

// WithObserver attaches an observer and returns the service
func (s *AnalysisService) WithObserver(o Observer) *AnalysisService {
	s.observer = o
	return s
}

// Descriptives summarizes variables
func (s *AnalysisService) Descriptives(ctx context.Context, ds *dataset.Dataset, req DescriptivesRequest) (*Report, error) {
	return s.run(ctx, KindDescriptives, req.Variables, func(r *Report) error {
		if len(req.Variables) == 0 {
			return core.NewValidationError("variables", "at least one variable is required", 0, 1)
		}
		if req.GroupBy == "" {
			summaries, err := descriptive.Variables(ds, req.Variables)
			r.Descriptives = summaries
			return err
		}
		for _, v := range req.Variables {
			groups, err := descriptive.Groups(ds, v, req.GroupBy)
			if err != nil {
				return err
			}
			for _, g := range groups {
				g.Variable = fmt.Sprintf("%s | %s=%s", v, req.GroupBy, g.Variable)
				r.Descriptives = append(r.Descriptives, g)
			}
		}
		return nil
	})
}

// Independent runs a between-subjects ANOVA of dependent by factor and, when
// the omnibus gate opens, the requested post-hoc comparisons.
func (s *AnalysisService) Independent(ctx context.Context, ds *dataset.Dataset, req IndependentRequest) (*Report, error) {
	return s.run(ctx, KindIndependent, []string{req.Dependent, req.Factor}, func(r *Report) error {
		groups, err := splitGroups(ds, req.Dependent, req.Factor)
		if err != nil {
			return err
		}
		result, err := anova.Independent(req.Dependent, groups, anova.Options{Alpha: s.cfg.Alpha, LeveneCenter: req.LeveneCenter})
		if err != nil {
			return err
		}
		result.Factor = req.Factor

		opts := posthoc.Options{Method: req.PostHoc, Alpha: s.cfg.Alpha, Force: req.Force}
		if posthoc.ShouldRun(result, opts) {
			ph, err := posthoc.Independent(groups, posthoc.ErrorTermOf(result), opts)
			if err != nil {
				return err
			}
			s.attachPostHoc(result, ph)
		}
		r.ANOVA = result
		return nil
	})
}

// Repeated runs a within-subjects ANOVA over condition columns; each row is a subject
func (s *AnalysisService) Repeated(ctx context.Context, ds *dataset.Dataset, req RepeatedRequest) (*Report, error) {
	return s.run(ctx, KindRepeated, req.Conditions, func(r *Report) error {
		if err := requireColumns(ds, req.Conditions...); err != nil {
			return err
		}
		columns := make([][]float64, len(req.Conditions))
		for j, c := range req.Conditions {
			columns[j] = ds.Column(c)
		}
		subjects := subjectRows(ds, req.Conditions)

		result, err := anova.Repeated(req.Conditions, subjects)
		if err != nil {
			return err
		}
		opts := posthoc.Options{Method: req.PostHoc, Alpha: s.cfg.Alpha, Force: req.Force}
		if posthoc.ShouldRun(result, opts) {
			ph, err := posthoc.Repeated(req.Conditions, columns, posthoc.ErrorTermOf(result), opts)
			if err != nil {
				return err
			}
			s.attachPostHoc(result, ph)
		}
		r.ANOVA = result
		return nil
	})
}

// TwoWay runs a two-factor ANOVA in the requested design
func (s *AnalysisService) TwoWay(ctx context.Context, ds *dataset.Dataset, req TwoWayRequest) (*Report, error) {
	vars := append([]string{req.FactorA, req.FactorB}, req.Conditions...)
	return s.run(ctx, KindTwoWay, vars, func(r *Report) error {
		var (
			result *domainstats.TwoWayResult
			err    error
		)
		switch req.Design {
		case domainstats.DesignIndependent:
			result, err = s.twoWayIndependent(ds, req)
		case domainstats.DesignRepeated:
			result, err = s.twoWayRepeated(ds, req)
		case domainstats.DesignMixed:
			result, err = s.twoWayMixed(ds, req)
		default:
			err = core.NewUnknownMethodError("design", string(req.Design))
		}
		r.TwoWay = result
		return err
	})
}

func (s *AnalysisService) twoWayIndependent(ds *dataset.Dataset, req TwoWayRequest) (*domainstats.TwoWayResult, error) {
	if err := requireColumns(ds, req.Dependent, req.FactorA, req.FactorB); err != nil {
		return nil, err
	}
	labelsA, labelsB := ds.GroupBy(req.FactorA), ds.GroupBy(req.FactorB)
	values := ds.Column(req.Dependent)
	obs := make([]anova.Observation, len(values))
	for i, v := range values {
		obs[i] = anova.Observation{A: labelsA[i], B: labelsB[i], Value: v}
	}
	return anova.TwoWayIndependent(req.Dependent, req.FactorA, req.FactorB, obs)
}

func (s *AnalysisService) twoWayRepeated(ds *dataset.Dataset, req TwoWayRequest) (*domainstats.TwoWayResult, error) {
	if want := len(req.LevelsA) * len(req.LevelsB); want == 0 || len(req.Conditions) != want {
		return nil, core.NewValidationError("conditions", "need one column per levels_a x levels_b cell", float64(len(req.Conditions)), float64(want))
	}
	if err := requireColumns(ds, req.Conditions...); err != nil {
		return nil, err
	}
	return anova.TwoWayRepeated(req.FactorA, req.FactorB, req.LevelsA, req.LevelsB, subjectRows(ds, req.Conditions))
}

func (s *AnalysisService) twoWayMixed(ds *dataset.Dataset, req TwoWayRequest) (*domainstats.TwoWayResult, error) {
	if err := requireColumns(ds, append([]string{req.FactorA}, req.Conditions...)...); err != nil {
		return nil, err
	}
	assignment := ds.GroupBy(req.FactorA)
	rows := subjectRows(ds, req.Conditions)
	byLevel := make(map[string][][]float64)
	for i, label := range assignment {
		if label != "" {
			byLevel[label] = append(byLevel[label], rows[i])
		}
	}
	levels := assignment.Levels()
	groups := make([]anova.SubjectGroup, len(levels))
	for i, l := range levels {
		groups[i] = anova.SubjectGroup{Label: l, Subjects: byLevel[l]}
	}
	conditions := req.Conditions
	if len(req.LevelsB) == len(conditions) {
		conditions = req.LevelsB
	}
	return anova.TwoWayMixed(req.FactorA, req.FactorB, conditions, groups)
}

// TTest runs a two-sample t-test between columns or between two factor levels
func (s *AnalysisService) TTest(ctx context.Context, ds *dataset.Dataset, req TTestRequest) (*Report, error) {
	vars := []string{req.A, req.B}
	if req.Factor != "" {
		vars = []string{req.Dependent, req.Factor}
	}
	return s.run(ctx, KindTTest, vars, func(r *Report) error {
		opts := posthoc.TTestOptions{Paired: req.Paired, Variance: req.Variance, Alpha: s.cfg.Alpha}
		if req.Factor != "" {
			if req.Paired {
				return core.NewValidationError("paired", "paired tests compare two columns, not factor levels", 1, 0)
			}
			groups, err := splitGroups(ds, req.Dependent, req.Factor)
			if err != nil {
				return err
			}
			if len(groups) != 2 {
				return core.NewValidationError(req.Factor, "t-test needs exactly two levels", float64(len(groups)), 2)
			}
			r.TTest, err = posthoc.TTest(groups[0].Label, groups[1].Label, groups[0].Values, groups[1].Values, opts)
			return err
		}
		if err := requireColumns(ds, req.A, req.B); err != nil {
			return err
		}
		var err error
		r.TTest, err = posthoc.TTest(req.A, req.B, ds.Column(req.A), ds.Column(req.B), opts)
		return err
	})
}

// Factor extracts and rotates factors from the listwise-complete rows
func (s *AnalysisService) Factor(ctx context.Context, ds *dataset.Dataset, req FactorRequest) (*Report, error) {
	return s.run(ctx, KindFactor, req.Variables, func(r *Report) error {
		if err := requireColumns(ds, req.Variables...); err != nil {
			return err
		}
		data, _ := ds.Listwise(req.Variables...)
		solution, err := factor.Analyze(req.Variables, data, req.Factors, req.Rotation, s.cfg.Factor())
		if err != nil {
			return err
		}
		r.Factor = solution
		return nil
	})
}

// Regression fits dependent on predictors over the listwise-complete rows
func (s *AnalysisService) Regression(ctx context.Context, ds *dataset.Dataset, req RegressionRequest) (*Report, error) {
	vars := append([]string{req.Dependent}, req.Predictors...)
	return s.run(ctx, KindRegression, vars, func(r *Report) error {
		if err := requireColumns(ds, vars...); err != nil {
			return err
		}
		data, _ := ds.Listwise(vars...)
		y := make([]float64, len(data))
		x := make([][]float64, len(data))
		for i, row := range data {
			y[i] = row[0]
			x[i] = row[1:]
		}
		result, err := regression.Fit(req.Dependent, req.Predictors, y, x)
		if err != nil {
			return err
		}
		r.Regression = result
		return nil
	})
}

// Batch runs an independent ANOVA per dependent with at most cfg.Workers in
// flight. Items come back in request order. Only cancellation fails the batch.
func (s *AnalysisService) Batch(ctx context.Context, ds *dataset.Dataset, req BatchRequest) ([]BatchItem, error) {
	items := make([]BatchItem, len(req.Dependents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.Workers))

	for i, dep := range req.Dependents {
		i, dep := i, dep
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := s.Independent(gctx, ds, IndependentRequest{
				Dependent:    dep,
				Factor:       req.Factor,
				PostHoc:      req.PostHoc,
				Force:        req.Force,
				LeveneCenter: req.LeveneCenter,
			})
			items[i] = BatchItem{Dependent: dep, Report: report, Err: err}
			if err != nil {
				items[i].Error = err.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// run wraps an analysis with identity, timing, logging and observation
func (s *AnalysisService) run(ctx context.Context, kind Kind, vars []string, analyze func(*Report) error) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	report := &Report{ID: core.NewReportID(), Kind: kind, CreatedAt: start.UTC()}

	err := analyze(report)
	elapsed := time.Since(start)
	report.DurationMs = elapsed.Milliseconds()
	if s.observer != nil {
		s.observer.ObserveAnalysis(kind, elapsed, err)
	}

	if err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Strs("variables", vars).Msg("analysis failed")
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	log := s.log.With().Str("report_id", report.ID.String()).Str("kind", string(kind)).Logger()
	for _, a := range report.Advisories() {
		log.Warn().Str("code", string(a.Code)).Str("subject", a.Subject).Msg(a.Detail)
	}
	log.Info().Strs("variables", vars).Dur("duration", elapsed).Msg("analysis complete")
	return report, nil
}

func splitGroups(ds *dataset.Dataset, dependent, factor string) ([]anova.Group, error) {
	if err := requireColumns(ds, dependent, factor); err != nil {
		return nil, err
	}
	levels, data := ds.Split(dependent, ds.GroupBy(factor))
	groups := make([]anova.Group, len(levels))
	for i, l := range levels {
		groups[i] = anova.Group{Label: l, Values: data[i]}
	}
	return groups, nil
}

// subjectRows returns one row per observation with the named columns in
// order; missing cells are NaN.
func subjectRows(ds *dataset.Dataset, columns []string) [][]float64 {
	cols := make([][]float64, len(columns))
	for j, c := range columns {
		cols[j] = ds.Column(c)
	}
	rows := make([][]float64, ds.Len())
	for i := range rows {
		rows[i] = make([]float64, len(cols))
		for j := range cols {
			rows[i][j] = cols[j][i]
		}
	}
	return rows
}

func requireColumns(ds *dataset.Dataset, names ...string) error {
	if ds == nil {
		return core.NewInsufficientDataError("dataset", 0, 1)
	}
	for _, name := range names {
		if name == "" {
			return core.NewValidationError("variable", "empty variable name", 0, 0)
		}
		if !ds.HasColumn(name) {
			return core.NewValidationError(name, "unknown variable", 0, 0)
		}
	}
	return nil
}

func (s *AnalysisService) attachPostHoc(result *domainstats.ANOVAResult, ph *posthoc.Result) {
	s.log.Debug().Str("dependent", result.Dependent).Msg(ph.String())
	result.PostHocMethod = ph.Method
	result.PostHoc = ph.Comparisons
	result.Advisories = append(result.Advisories, ph.Advisories...)
}
