// Package config loads run settings from SHOPSCHED_* environment variables or YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"shopsched/dispatch"
	"shopsched/kpi"
	"shopsched/logging"
	"shopsched/model"
	"shopsched/sched"
)

const Prefix = "SHOPSCHED_"

type Config struct {
	Rule      string  `env:"RULE" envDefault:"SPT" yaml:"rule" validate:"rule"`
	Lookahead float64 `env:"LOOKAHEAD" envDefault:"2.0" yaml:"lookahead" validate:"gt=0"`
	Seed      int64   `env:"SEED" envDefault:"1" yaml:"seed"`
	// Horizon bounds schedules; 0 means unbounded.
	Horizon int64 `env:"HORIZON" envDefault:"0" yaml:"horizon" validate:"gte=0"`
	// Scope names the candidate set of the greedy scheduler, see sched.Scope.
	Scope     string `env:"SCOPE" envDefault:"contended" yaml:"scope" validate:"oneof=contended ready"`
	Objective string `env:"OBJECTIVE" envDefault:"makespan" yaml:"objective" validate:"objective"`
	Log       struct {
		Level  string `env:"LEVEL" envDefault:"info" yaml:"level" validate:"oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
		Format string `env:"FORMAT" envDefault:"text" yaml:"format" validate:"oneof=text json"`
	} `envPrefix:"LOG_" yaml:"log"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("rule", func(fl validator.FieldLevel) bool {
		_, err := dispatch.ParseRule(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("objective", func(fl validator.FieldLevel) bool {
		_, err := kpi.ParseObjective(fl.Field().String())
		return err == nil
	}))
	return v
}

// Default returns the envDefault values.
func Default() *Config {
	cfg, err := FromEnvironment(map[string]string{})
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// FromEnvironment reads the given variables instead of the process environment.
func FromEnvironment(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		aggErr := env.AggregateError{}
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return nil, fmt.Errorf("config: %w", aggErr.Errors[0])
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads YAML over the defaults. Unknown keys are rejected; an empty document yields
// the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Rand is a fresh source seeded with Seed.
func (c *Config) Rand() *rand.Rand {
	return rand.New(rand.NewSource(c.Seed))
}

// Engine builds the dispatching engine; RANDOM draws from Rand.
func (c *Config) Engine() (*dispatch.Engine, error) {
	rule, err := dispatch.ParseRule(c.Rule)
	if err != nil {
		return nil, err
	}
	return dispatch.New(rule, dispatch.WithLookahead(c.Lookahead), dispatch.WithRand(c.Rand()))
}

func (c *Config) ObjectiveKind() (kpi.Objective, error) {
	return kpi.ParseObjective(c.Objective)
}

func (c *Config) Logger() *slog.Logger {
	return logging.NewLogger(logging.ParseLevel(c.Log.Level), c.Log.Format)
}

// Options builds scheduler options logging to logger.
func (c *Config) Options(logger *slog.Logger) sched.Options {
	scope, _ := sched.ParseScope(c.Scope)
	return sched.Options{Horizon: model.Time(c.Horizon), Scope: scope, Logger: logger}
}

// Schedule runs the greedy scheduler as configured and scores the result under Objective.
func (c *Config) Schedule(p *model.Problem, logger *slog.Logger) (*model.Schedule, float64, error) {
	e, err := c.Engine()
	if err != nil {
		return nil, 0, err
	}
	o, err := c.ObjectiveKind()
	if err != nil {
		return nil, 0, err
	}
	s, err := sched.Greedy(p, e, c.Options(logger))
	if err != nil {
		return nil, 0, err
	}
	return s, kpi.Evaluate(p, s).Objective(o), nil
}
