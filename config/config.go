// Package config loads the tickworker daemon configuration from YAML and
// watches the file for changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Swind/go-tickworker/core"
	"github.com/rs/zerolog"
	yaml "go.yaml.in/yaml/v3"
)

// Config is the on-disk configuration.
type Config struct {
	// TickInterval is how often every queue is drained.
	TickInterval Duration `yaml:"tick_interval"`

	// DefaultBudget is the per-tick budget of queues created without one.
	// It is the only field applied on hot reload.
	DefaultBudget Duration `yaml:"default_budget"`

	// Workers is the size of the worker pool behind the worker affinity.
	Workers int `yaml:"workers"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig selects the log sink.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Namespace    string   `yaml:"namespace"`
	Listen       string   `yaml:"listen"`
	PollInterval Duration `yaml:"poll_interval"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		TickInterval:  Duration(core.DefaultTickInterval),
		DefaultBudget: Duration(core.DefaultBudget),
		Workers:       4,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Namespace:    "tickworker",
			Listen:       ":9090",
			PollInterval: Duration(5 * time.Second),
		},
	}
}

// Validate checks value ranges. Zero durations are allowed and mean the
// core defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers: must be >= 1, got %d", c.Workers))
	}
	if c.DefaultBudget > 0 && c.TickInterval > 0 && c.DefaultBudget > c.TickInterval {
		errs = append(errs, fmt.Errorf("default_budget: %s exceeds tick_interval %s", c.DefaultBudget, c.TickInterval))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, errors.New("metrics.listen: required when metrics are enabled"))
	}
	return errors.Join(errs...)
}

// SchedulerConfig converts c to a core.Config using logger and metrics.
func (c *Config) SchedulerConfig(logger core.Logger, metrics core.Metrics) core.Config {
	return core.Config{
		TickInterval:  c.TickInterval.Std(),
		DefaultBudget: c.DefaultBudget.Std(),
		Logger:        logger,
		Metrics:       metrics,
	}
}

// NewLogger builds the configured zerolog-backed logger writing to out.
func (c LogConfig) NewLogger(out io.Writer) *core.DefaultLogger {
	if strings.EqualFold(c.Format, "json") {
		zl := zerolog.New(out).Level(core.ParseLogLevel(c.Level)).With().Timestamp().Logger()
		return core.NewZerologLogger(zl)
	}
	return core.NewConsoleLogger(out, c.Level)
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
