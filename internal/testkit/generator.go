// Package testkit generates seeded synthetic datasets for tests.
package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"statcore/domain/dataset"
)

// SurveyGeneratorConfig configures a latent-factor questionnaire
type SurveyGeneratorConfig struct {
	Respondents    int     `json:"respondents"`
	Factors        int     `json:"factors"`
	ItemsPerFactor int     `json:"items_per_factor"`
	Loading        float64 `json:"loading"`      // loading of each item on its own factor
	FactorCorr     float64 `json:"factor_corr"`  // correlation between latent factors
	MissingRate    float64 `json:"missing_rate"` // probability a cell is left out
	Seed           int64   `json:"seed"`
}

// DefaultSurveyConfig returns a clean two-factor, six-item design
func DefaultSurveyConfig() SurveyGeneratorConfig {
	return SurveyGeneratorConfig{
		Respondents:    300,
		Factors:        2,
		ItemsPerFactor: 3,
		Loading:        0.8,
		FactorCorr:     0,
		Seed:           42,
	}
}

// SurveyGenerator draws item responses from a simple-structure factor model
type SurveyGenerator struct {
	config SurveyGeneratorConfig
	rng    *rand.Rand
}

// NewSurveyGenerator creates a new survey generator
func NewSurveyGenerator(config SurveyGeneratorConfig) *SurveyGenerator {
	return &SurveyGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// ItemName names item j of factor f, e.g. "f1_q2"
func ItemName(f, j int) string {
	return fmt.Sprintf("f%d_q%d", f+1, j+1)
}

// Items returns the item names grouped by their true factor
func (g *SurveyGenerator) Items() [][]string {
	out := make([][]string, g.config.Factors)
	for f := range out {
		for j := 0; j < g.config.ItemsPerFactor; j++ {
			out[f] = append(out[f], ItemName(f, j))
		}
	}
	return out
}

// Variables returns all item names in column order
func (g *SurveyGenerator) Variables() []string {
	var out []string
	for _, items := range g.Items() {
		out = append(out, items...)
	}
	return out
}

// Matrix returns respondents x items responses with no missing cells
func (g *SurveyGenerator) Matrix() [][]float64 {
	c := g.config
	uniq := math.Sqrt(math.Max(0, 1-c.Loading*c.Loading))
	shared := math.Sqrt(math.Max(0, c.FactorCorr))
	own := math.Sqrt(math.Max(0, 1-c.FactorCorr))

	rows := make([][]float64, c.Respondents)
	latent := make([]float64, c.Factors)
	for i := range rows {
		general := g.rng.NormFloat64()
		for f := range latent {
			latent[f] = shared*general + own*g.rng.NormFloat64()
		}
		row := make([]float64, 0, c.Factors*c.ItemsPerFactor)
		for f := 0; f < c.Factors; f++ {
			for j := 0; j < c.ItemsPerFactor; j++ {
				row = append(row, c.Loading*latent[f]+uniq*g.rng.NormFloat64())
			}
		}
		rows[i] = row
	}
	return rows
}

// Dataset wraps Matrix as a dataset, dropping cells at MissingRate
func (g *SurveyGenerator) Dataset() *dataset.Dataset {
	vars := g.Variables()
	matrix := g.Matrix()
	rows := make([]dataset.Row, len(matrix))
	for i, values := range matrix {
		cells := make(map[string]float64, len(vars))
		for j, name := range vars {
			if g.config.MissingRate > 0 && g.rng.Float64() < g.config.MissingRate {
				continue
			}
			cells[name] = values[j]
		}
		rows[i] = dataset.NewRow(cells)
	}
	return dataset.New(vars, rows)
}

// GroupGeneratorConfig configures a between-subjects experiment
type GroupGeneratorConfig struct {
	Means []float64 `json:"means"`
	SDs   []float64 `json:"sds"` // one per group; a single value applies to all
	N     int       `json:"n"`   // observations per group
	Seed  int64     `json:"seed"`
}

// Groups draws normal samples per group
func Groups(config GroupGeneratorConfig) [][]float64 {
	rng := rand.New(rand.NewSource(config.Seed))
	out := make([][]float64, len(config.Means))
	for g, mean := range config.Means {
		sd := 1.0
		switch {
		case len(config.SDs) > g:
			sd = config.SDs[g]
		case len(config.SDs) == 1:
			sd = config.SDs[0]
		}
		out[g] = make([]float64, config.N)
		for i := range out[g] {
			out[g][i] = mean + sd*rng.NormFloat64()
		}
	}
	return out
}

// GroupDataset lays groups out long-form with a label column
func GroupDataset(dependent, factor string, labels []string, groups [][]float64) *dataset.Dataset {
	var rows []dataset.Row
	for g, values := range groups {
		for _, v := range values {
			row := dataset.NewRow(map[string]float64{dependent: v})
			row.Labels = map[string]string{factor: labels[g]}
			rows = append(rows, row)
		}
	}
	return dataset.New([]string{dependent, factor}, rows)
}

// RepeatedGeneratorConfig configures a within-subjects design. Each
// subject has a random intercept with SD SubjectSD.
type RepeatedGeneratorConfig struct {
	Means     []float64 `json:"means"`
	Subjects  int       `json:"subjects"`
	SubjectSD float64   `json:"subject_sd"`
	ErrorSD   float64   `json:"error_sd"`
	Seed      int64     `json:"seed"`
}

// Repeated returns subjects x conditions observations
func Repeated(config RepeatedGeneratorConfig) [][]float64 {
	rng := rand.New(rand.NewSource(config.Seed))
	rows := make([][]float64, config.Subjects)
	for i := range rows {
		intercept := config.SubjectSD * rng.NormFloat64()
		rows[i] = make([]float64, len(config.Means))
		for j, mean := range config.Means {
			rows[i][j] = mean + intercept + config.ErrorSD*rng.NormFloat64()
		}
	}
	return rows
}
