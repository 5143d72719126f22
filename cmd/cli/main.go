package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"statcore/adapters/excel"
	"statcore/app"
	"statcore/domain/dataset"
	"statcore/domain/stats"
	"statcore/internal/anova"
	"statcore/internal/config"
	"statcore/internal/logging"
	"statcore/internal/posthoc"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options shared by every subcommand
type rootOptions struct {
	alpha    float64
	sheet    string
	logLevel string
	compact  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "statcore",
		Short:         "Statistical inference over CSV and XLSX files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Float64Var(&opts.alpha, "alpha", 0.05, "Significance level")
	rootCmd.PersistentFlags().StringVar(&opts.sheet, "sheet", "", "Worksheet to read from XLSX files (default: first sheet)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")
	rootCmd.PersistentFlags().BoolVar(&opts.compact, "compact", false, "Print JSON on one line")

	rootCmd.AddCommand(
		newDescribeCmd(opts),
		newAnovaCmd(opts),
		newRepeatedCmd(opts),
		newTwoWayCmd(opts),
		newTTestCmd(opts),
		newFactorCmd(opts),
		newRegressCmd(opts),
	)
	return rootCmd
}

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	var groupBy string
	cmd := &cobra.Command{
		Use:   "describe [file] [variables...]",
		Short: "Descriptive statistics per variable",
		Long: `Summarize numeric variables: n, missing, mean, median, SD, variance, SE, min and max.

Example: statcore describe survey.csv age income --group-by region`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0], func(ctx context.Context, svc *app.AnalysisService, ds *dataset.Dataset) (any, error) {
				return svc.Descriptives(ctx, ds, app.DescriptivesRequest{Variables: args[1:], GroupBy: groupBy})
			})
		},
	}
	cmd.Flags().StringVar(&groupBy, "group-by", "", "Categorical column to split by")
	return cmd
}

func newAnovaCmd(opts *rootOptions) *cobra.Command {
	var (
		factor  string
		posthoc string
		center  string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "anova [file] [dependents...]",
		Short: "One-way between-subjects ANOVA",
		Long: `Run a one-way ANOVA of each dependent variable across the levels of --factor.
Several dependents run as a batch.

Example: statcore anova trial.csv score --factor arm --posthoc tukey`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := stats.ParsePostHocMethod(posthoc)
			if err != nil {
				return err
			}
			return run(cmd, opts, args[0], func(ctx context.Context, svc *app.AnalysisService, ds *dataset.Dataset) (any, error) {
				if len(args) == 2 {
					return svc.Independent(ctx, ds, app.IndependentRequest{
						Dependent: args[1], Factor: factor, PostHoc: method, Force: force, LeveneCenter: anova.Center(center),
					})
				}
				return svc.Batch(ctx, ds, app.BatchRequest{
					Dependents: args[1:], Factor: factor, PostHoc: method, Force: force, LeveneCenter: anova.Center(center),
				})
			})
		},
	}
	cmd.Flags().StringVar(&factor, "factor", "", "Grouping column")
	cmd.Flags().StringVar(&posthoc, "posthoc", "none", "Post-hoc method: none|tukey|holm|bonferroni")
	cmd.Flags().StringVar(&center, "levene-center", "median", "Levene center: median|mean")
	cmd.Flags().BoolVar(&force, "force", false, "Run post-hoc comparisons even when the omnibus test is not significant")
	_ = cmd.MarkFlagRequired("factor")
	return cmd
}

func newRepeatedCmd(opts *rootOptions) *cobra.Command {
	var (
		posthoc string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "repeated [file] [conditions...]",
		Short: "One-way repeated-measures ANOVA",
		Long: `Run a within-subjects ANOVA where each row is a subject and each condition a column.
Greenhouse-Geisser corrected p-values are reported alongside the uncorrected test.

Example: statcore repeated rt.xlsx pre mid post --posthoc holm`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := stats.ParsePostHocMethod(posthoc)
			if err != nil {
				return err
			}
			return run(cmd, opts, args[0], func(ctx context.Context, svc *app.AnalysisService, ds *dataset.Dataset) (any, error) {
				return svc.Repeated(ctx, ds, app.RepeatedRequest{Conditions: args[1:], PostHoc: method, Force: force})
			})
		},
	}
	cmd.Flags().StringVar(&posthoc, "posthoc", "none", "Post-hoc method: none|tukey|holm|bonferroni")
	cmd.Flags().BoolVar(&force, "force", false, "Run post-hoc comparisons even when the omnibus test is not significant")
	return cmd
}

func newTwoWayCmd(opts *rootOptions) *cobra.Command {
	var (
		design  string
		levelsA []string
		levelsB []string
	)
	cmd := &cobra.Command{
		Use:   "twoway [file] [factor-a] [factor-b] [dependent | conditions...]",
		Short: "Two-way ANOVA: independent, repeated or mixed",
		Long: `Run a two-factor ANOVA.

independent: factor-a and factor-b are grouping columns, followed by one dependent column.
repeated:    factor-a and factor-b are names; the conditions are the levels-a x levels-b
             cell columns in A-major order.
mixed:       factor-a is the grouping column, factor-b names the within factor and the
             conditions are its level columns.

Example: statcore twoway trial.csv dose sex score
         statcore twoway rt.csv task load a1b1 a1b2 a2b1 a2b2 --design repeated --levels-a easy,hard --levels-b low,high`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.TwoWayRequest{
				Design:  stats.Design(design),
				FactorA: args[1],
				FactorB: args[2],
				LevelsA: levelsA,
				LevelsB: levelsB,
			}
			if req.Design == stats.DesignIndependent {
				req.Dependent = args[3]
			} else {
				req.Conditions = args[3:]
			}
			return run(cmd, opts, args[0], func(ctx context.Context, svc *app.AnalysisService, ds *dataset.Dataset) (any, error) {
				return svc.TwoWay(ctx, ds, req)
			})
		},
	}
	cmd.Flags().StringVar(&design, "design", "independent", "Design: independent|repeated|mixed")
	cmd.Flags().StringSliceVar(&levelsA, "levels-a", nil, "Level labels of factor A (repeated designs)")
	cmd.Flags().StringSliceVar(&levelsB, "levels-b", nil, "Level labels of factor B (repeated designs)")
	return cmd
}

func newTTestCmd(opts *rootOptions) *cobra.Command {
	var (
		factor   string
		paired   bool
		variance string
	)
	cmd := &cobra.Command{
		Use:   "ttest [file] [a] [b] | ttest [file] [dependent] --factor [column]",
		Short: "Two-sample t-test",
		Long: `Compare two columns, or the two levels of --factor on a dependent column.
Independent samples use Student or Welch as decided by a Brown-Forsythe test
unless --variance fixes the assumption.

Example: statcore ttest trial.csv score --factor arm
         statcore ttest rt.csv pre post --paired`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.TTestRequest{Paired: paired, Variance: posthoc.VarianceAssumption(variance)}
			switch {
			case factor != "" && len(args) == 2:
				req.Dependent, req.Factor = args[1], factor
			case factor == "" && len(args) == 3:
				req.A, req.B = args[1], args[2]
			default:
				return fmt.Errorf("give either two columns or one dependent with --factor")
			}
			return run(cmd, opts, args[0], func(ctx context.Context, svc *app.AnalysisService, ds *dataset.Dataset) (any, error) {
				return svc.TTest(ctx, ds, req)
			})
		},
	}
	cmd.Flags().StringVar(&factor, "factor", "", "Two-level grouping column")
	cmd.Flags().BoolVar(&paired, "paired", false, "Paired t-test over rows valid in both columns")
	cmd.Flags().StringVar(&variance, "variance", "auto", "Variance assumption: auto|equal|unequal")
	return cmd
}

func newFactorCmd(opts *rootOptions) *cobra.Command {
	var (
		factors  int
		rotation string
	)
	cmd := &cobra.Command{
		Use:   "factor [file] [variables...]",
		Short: "Principal component extraction with rotation",
		Long: `Extract factors from the correlation matrix of the listed variables and rotate them.
With --factors 0 the number of eigenvalues above 1 is used.

Example: statcore factor items.csv q1 q2 q3 q4 q5 q6 --factors 2 --rotation oblimin`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := stats.ParseRotationMethod(rotation)
			if err != nil {
				return err
			}
			return run(cmd, opts, args[0], func(ctx context.Context, svc *app.AnalysisService, ds *dataset.Dataset) (any, error) {
				return svc.Factor(ctx, ds, app.FactorRequest{Variables: args[1:], Factors: factors, Rotation: method})
			})
		},
	}
	cmd.Flags().IntVar(&factors, "factors", 0, "Number of factors (0: Kaiser criterion)")
	cmd.Flags().StringVar(&rotation, "rotation", "varimax", "Rotation: none|varimax|promax|oblimin|geomin")
	return cmd
}

func newRegressCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regress [file] [dependent] [predictors...]",
		Short: "Multiple linear regression with VIF",
		Long: `Fit an ordinary least squares model with intercept over the complete rows.

Example: statcore regress sales.csv revenue price ads`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0], func(ctx context.Context, svc *app.AnalysisService, ds *dataset.Dataset) (any, error) {
				return svc.Regression(ctx, ds, app.RegressionRequest{Dependent: args[1], Predictors: args[2:]})
			})
		},
	}
	return cmd
}

type analysis func(ctx context.Context, svc *app.AnalysisService, ds *dataset.Dataset) (any, error)

func run(cmd *cobra.Command, opts *rootOptions, path string, fn analysis) error {
	cfg := config.Default()
	cfg.Alpha = opts.alpha
	cfg.Log = config.LogConfig{Level: opts.logLevel, Pretty: true}
	if err := cfg.Validate(); err != nil {
		return err
	}

	readerCfg := excel.DefaultReaderConfig()
	readerCfg.Sheet = opts.sheet
	ds, err := excel.NewDataReader(path, readerCfg).Read(cmd.Context())
	if err != nil {
		return err
	}

	log := logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	svc := app.NewAnalysisService(cfg, log)
	result, err := fn(cmd.Context(), svc, ds)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result, opts.compact)
}

func writeJSON(w io.Writer, v any, compact bool) error {
	var (
		out []byte
		err error
	)
	if compact {
		out, err = json.Marshal(v)
	} else {
		out, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.TrimSpace(string(out)))
	return err
}
