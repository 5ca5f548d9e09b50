package config

import (
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/gaviz/internal/errors"
	"github.com/copyleftdev/gaviz/internal/optimization"
)

// Display modes for the command line driver
const (
	DisplayLog      = "log"
	DisplayTerminal = "terminal"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	GA struct {
		TMax         int           `env:"GA_TMAX" envDefault:"200"`
		PopSize      int           `env:"GA_POPSIZE" envDefault:"200"`
		CrossRate    float64       `env:"GA_CROSS_RATE" envDefault:"0.3"`
		MutRate      float64       `env:"GA_MUT_RATE" envDefault:"0.05"`
		Seed         int64         `env:"GA_SEED" envDefault:"0"`
		StepInterval time.Duration `env:"GA_STEP_INTERVAL" envDefault:"200ms"`
		ReportPath   string        `env:"GA_REPORT_PATH" envDefault:"ga_convergence.png"`
		Display      string        `env:"GA_DISPLAY" envDefault:"log"`
		MaxRuns      int           `env:"GA_MAX_RUNS" envDefault:"16"`
		MaxTMax      int           `env:"GA_MAX_TMAX" envDefault:"100000"`
		MaxPopSize   int           `env:"GA_MAX_POPSIZE" envDefault:"10000"`
		RetainRuns   int           `env:"GA_RETAIN_RUNS" envDefault:"64"`
	}
}

// Load parses the environment and validates the genetic algorithm settings.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment").WithComponent("config")
	}

	// Debug logging by default in development, info elsewhere
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.CheckLimits(cfg.Optimizer()); err != nil {
		return nil, errors.Wrap(err, "invalid GA settings").WithComponent("config")
	}

	switch cfg.GA.Display {
	case DisplayLog, DisplayTerminal:
	default:
		return nil, errors.Errorf("unknown display mode %q", cfg.GA.Display).WithComponent("config")
	}

	if cfg.GA.StepInterval < 0 {
		return nil, errors.Errorf("negative step interval %s", cfg.GA.StepInterval).WithComponent("config")
	}

	return cfg, nil
}

// Optimizer returns the engine configuration described by the GA settings
func (c *Config) Optimizer() optimization.Config {
	return optimization.Config{
		TMax:      c.GA.TMax,
		PopSize:   c.GA.PopSize,
		CrossRate: c.GA.CrossRate,
		MutRate:   c.GA.MutRate,
		Seed:      c.GA.Seed,
	}
}

// CheckLimits validates o and rejects runs larger than GA_MAX_TMAX
// generations or GA_MAX_POPSIZE individuals. A non-positive limit is not
// enforced.
func (c *Config) CheckLimits(o optimization.Config) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if c.GA.MaxTMax > 0 && o.TMax > c.GA.MaxTMax {
		return optimization.WrapErrorf(optimization.ErrInvalidConfig,
			"tmax %d exceeds limit %d", o.TMax, c.GA.MaxTMax).WithOperation("limits")
	}
	if c.GA.MaxPopSize > 0 && o.PopSize > c.GA.MaxPopSize {
		return optimization.WrapErrorf(optimization.ErrInvalidConfig,
			"popsize %d exceeds limit %d", o.PopSize, c.GA.MaxPopSize).WithOperation("limits")
	}
	return nil
}
