// Package config loads proctop settings from defaults, a YAML file and PROCTOP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v9"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/srodi/proctop/pkg/types"
)

// ErrInvalidConfiguration is wrapped by every validation failure.
var ErrInvalidConfiguration = errors.New("invalid configuration")

const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputNone  = "none"
)

type Config struct {
	// Period between the start of two consecutive ticks.
	Period time.Duration `yaml:"period" env:"PROCTOP_PERIOD"`
	// TopN is the number of processes kept in each ranked view.
	TopN int `yaml:"top_n" env:"PROCTOP_TOP_N"`

	HideKernel bool   `yaml:"hide_kernel" env:"PROCTOP_HIDE_KERNEL"`
	NameFilter string `yaml:"name_filter" env:"PROCTOP_NAME_FILTER"`

	// Output selects the terminal sink: table, json or none.
	Output   string `yaml:"output" env:"PROCTOP_OUTPUT"`
	LogLevel string `yaml:"log_level" env:"PROCTOP_LOG_LEVEL"`

	Prometheus PrometheusConfig `yaml:"prometheus"`
}

type PrometheusConfig struct {
	// Port of the scrape endpoint. Zero disables the exporter.
	Port int    `yaml:"port" env:"PROCTOP_PROMETHEUS_PORT"`
	Path string `yaml:"path" env:"PROCTOP_PROMETHEUS_PATH"`
}

func DefaultConfig() *Config {
	return &Config{
		Period:   types.DefaultPeriod,
		TopN:     types.DefaultTopK,
		Output:   OutputTable,
		LogLevel: "info",
		Prometheus: PrometheusConfig{
			Path: "/metrics",
		},
	}
}

// LoadConfig overrides configuration in the following order (from less to most priority)
// 1 - Default configuration
// 2 - Contents of the provided file reader (nillable)
// 3 - Environment variables
func LoadConfig(file io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if file != nil {
		cfgBuf, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("reading YAML configuration: %w", err)
		}
		if err := yaml.Unmarshal(cfgBuf, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML configuration: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("reading env vars: %w", err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot run, wrapping ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("%w: period must be positive, got %v", ErrInvalidConfiguration, c.Period)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalidConfiguration, c.TopN)
	}
	switch c.Output {
	case OutputTable, OutputJSON, OutputNone:
	default:
		return fmt.Errorf("%w: unknown output %q", ErrInvalidConfiguration, c.Output)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if c.Prometheus.Port < 0 || c.Prometheus.Port > 65535 {
		return fmt.Errorf("%w: prometheus port out of range: %d", ErrInvalidConfiguration, c.Prometheus.Port)
	}
	if c.Prometheus.Port != 0 && (c.Prometheus.Path == "" || c.Prometheus.Path[0] != '/') {
		return fmt.Errorf("%w: prometheus path must start with '/', got %q", ErrInvalidConfiguration, c.Prometheus.Path)
	}
	return nil
}
