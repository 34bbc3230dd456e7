// Package config loads the configuration of the synth binaries from YAML,
// environment overrides and defaults, and validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/snow-ghost/synth/pkg/limiter"
	"github.com/snow-ghost/synth/pkg/logging"
	"github.com/snow-ghost/synth/pkg/tracing"
	"github.com/snow-ghost/synth/worker"
)

// DefaultPath is read when no path is given and SYNTH_CONFIG is unset.
const DefaultPath = "synth.yaml"

var validate = validator.New()

// Config is the full configuration of the synth binaries.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Search   SearchConfig   `yaml:"search"`
	Parallel ParallelConfig `yaml:"parallel"`
	Logging  logging.Config `yaml:"logging"`
	Tracing  tracing.Config `yaml:"tracing"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr           string             `yaml:"addr" validate:"required"`
	ReadTimeout    time.Duration      `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout   time.Duration      `yaml:"write_timeout" validate:"gte=0"`
	RequestTimeout time.Duration      `yaml:"request_timeout" validate:"gte=0"`
	RateLimit      limiter.RateConfig `yaml:"rate_limit"`
}

// SearchConfig holds the defaults of a synthesis run. Request fields win
// over these.
type SearchConfig struct {
	Solver       string  `yaml:"solver" validate:"oneof=hillclimb smc random"`
	BeamSize     int     `yaml:"beam_size" validate:"gte=0"`
	Budget       int     `yaml:"budget" validate:"gte=1"`
	Bound        int     `yaml:"bound" validate:"gte=1"`
	Threshold    float64 `yaml:"threshold" validate:"gte=0,lte=1"`
	Componentize bool    `yaml:"componentize"`
	Seed         int64   `yaml:"seed"`
}

// Apply fills the fields req leaves at their zero value. Componentize is
// on when either side asks for it.
func (s SearchConfig) Apply(req *worker.Request) {
	o := &req.Options
	if o.Solver == "" {
		o.Solver = worker.Kind(s.Solver)
	}
	if o.BeamSize == 0 {
		o.BeamSize = s.BeamSize
	}
	if o.Seed == 0 {
		o.Seed = s.Seed
	}
	o.Componentize = o.Componentize || s.Componentize
	p := &req.Problem
	if p.Budget == 0 {
		p.Budget = s.Budget
	}
	if p.Bound == 0 {
		p.Bound = s.Bound
	}
	if p.Threshold == 0 {
		p.Threshold = s.Threshold
	}
}

// ParallelConfig configures rounds of concurrent searches, either local
// goroutines or remote synthesis servers.
type ParallelConfig struct {
	Workers    int            `yaml:"workers" validate:"gte=1"`
	Rounds     int            `yaml:"rounds" validate:"gte=1"`
	Servers    []string       `yaml:"servers" validate:"dive,url"`
	Timeout    time.Duration  `yaml:"timeout" validate:"gte=0"`
	Protection limiter.Config `yaml:"protection"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   10 * time.Minute,
			RequestTimeout: 5 * time.Minute,
			RateLimit:      limiter.DefaultRateConfig(),
		},
		Search: SearchConfig{
			Solver:    "hillclimb",
			Budget:    10000,
			Bound:     4,
			Threshold: 0.001,
		},
		Parallel: ParallelConfig{
			Workers:    4,
			Rounds:     15,
			Timeout:    10 * time.Minute,
			Protection: limiter.DefaultConfig(),
		},
		Logging: logging.DefaultConfig(),
		Tracing: tracing.Config{ServiceName: "synth", Environment: "development"},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	if env := os.Getenv("SYNTH_CONFIG"); path == "" && env != "" {
		path = env
	}
	if path == "" {
		path = DefaultPath
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SYNTH_* environment variables.
func (c *Config) ApplyEnv() {
	c.Server.Addr = getEnv("SYNTH_ADDR", c.Server.Addr)
	c.Server.RequestTimeout = getEnvDuration("SYNTH_REQUEST_TIMEOUT", c.Server.RequestTimeout)
	c.Search.Solver = getEnv("SYNTH_SOLVER", c.Search.Solver)
	c.Search.BeamSize = getEnvInt("SYNTH_BEAM_SIZE", c.Search.BeamSize)
	c.Search.Budget = getEnvInt("SYNTH_BUDGET", c.Search.Budget)
	c.Parallel.Workers = getEnvInt("SYNTH_WORKERS", c.Parallel.Workers)
	if servers := parseCommaSeparated(os.Getenv("SYNTH_SERVERS")); len(servers) > 0 {
		c.Parallel.Servers = servers
	}
	c.Logging.Level = getEnv("SYNTH_LOG_LEVEL", c.Logging.Level)
	c.Tracing.JaegerEndpoint = getEnv("SYNTH_JAEGER_ENDPOINT", c.Tracing.JaegerEndpoint)
}

// Validate checks the struct tags of the whole configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
