package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"statcore/internal/errors"
	"statcore/internal/factor"
)

// Prefix is prepended to every variable name. The unprefixed name is read
// when the prefixed one is unset, so ALPHA and STATCORE_ALPHA both work.
const Prefix = "STATCORE"

// Config represents the complete application configuration
type Config struct {
	// Alpha is the significance level used for the omnibus gate, post-hoc
	// significance flags and the Levene advisory.
	Alpha float64 `envconfig:"ALPHA" default:"0.05" validate:"gt=0,lt=1"`

	VarimaxMaxIter int     `envconfig:"VARIMAX_MAX_ITER" default:"50" validate:"gte=1"`
	VarimaxEpsilon float64 `envconfig:"VARIMAX_EPSILON" default:"1e-6" validate:"gt=0"`
	GPAMaxIter     int     `envconfig:"GPA_MAX_ITER" default:"500" validate:"gte=1"`
	GPAEpsilon     float64 `envconfig:"GPA_EPSILON" default:"1e-5" validate:"gt=0"`
	GPAStep        float64 `envconfig:"GPA_STEP" default:"0.5" validate:"gt=0"`
	PromaxKappa    float64 `envconfig:"PROMAX_KAPPA" default:"4" validate:"gt=1"`
	ObliminGamma   float64 `envconfig:"OBLIMIN_GAMMA" default:"0" validate:"gte=0,lte=1"`
	GeominEpsilon  float64 `envconfig:"GEOMIN_EPSILON" default:"0.01" validate:"gt=0"`

	// Workers bounds how many analyses of a batch run at once.
	Workers int `envconfig:"WORKERS" default:"4" validate:"gte=1,lte=64"`

	Server ServerConfig
	Log    LogConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	GinMode string `envconfig:"GIN_MODE" default:"release" validate:"oneof=debug release test"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load reads configuration from environment variables and validates it.
// Callers load any .env file first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to parse configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the defaults without reading the environment
func Default() *Config {
	fc := factor.DefaultConfig()
	return &Config{
		Alpha:          0.05,
		VarimaxMaxIter: fc.VarimaxMaxIter,
		VarimaxEpsilon: fc.VarimaxEpsilon,
		GPAMaxIter:     fc.GPAMaxIter,
		GPAEpsilon:     fc.GPAEpsilon,
		GPAStep:        fc.GPAStep,
		PromaxKappa:    fc.PromaxKappa,
		ObliminGamma:   fc.ObliminGamma,
		GeominEpsilon:  fc.GeominEpsilon,
		Workers:        4,
		Server:         ServerConfig{Port: "8080", GinMode: "release"},
		Log:            LogConfig{Level: "info"},
	}
}

// Validate checks the struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &errors.AppError{
			Code:    errors.CodeConfigInvalid,
			Message: "configuration validation failed",
			Cause:   err,
		}
	}
	return nil
}

// Factor returns the rotation settings
func (c *Config) Factor() factor.Config {
	return factor.Config{
		VarimaxMaxIter: c.VarimaxMaxIter,
		VarimaxEpsilon: c.VarimaxEpsilon,
		GPAMaxIter:     c.GPAMaxIter,
		GPAEpsilon:     c.GPAEpsilon,
		GPAStep:        c.GPAStep,
		PromaxKappa:    c.PromaxKappa,
		ObliminGamma:   c.ObliminGamma,
		GeominEpsilon:  c.GeominEpsilon,
	}
}
