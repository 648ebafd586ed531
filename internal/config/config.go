// Package config loads the YAML configuration of the PNM tools.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/docsis-pnm/internal/analysis"
	"github.com/roman-kulish/docsis-pnm/internal/index"
	"github.com/roman-kulish/docsis-pnm/internal/timeseries"
)

const (
	defaultLogLevel  = "info"
	defaultNamespace = "pnm"
	defaultTable     = "pnm_captures"
)

// Config represents the main application configuration
type Config struct {
	Settings   Settings          `yaml:"settings"`
	Decoder    DecoderConfig     `yaml:"decoder"`
	Analysis   analysis.Config   `yaml:"analysis"`
	Index      index.Config      `yaml:"index"`
	Storage    StorageConfig     `yaml:"storage"`
	Timeseries timeseries.Config `yaml:"timeseries"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses LogLevel.
func (s Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, err
	}
	return level, nil
}

type DecoderConfig struct {
	Concurrency int `yaml:"concurrency"` // 0 means GOMAXPROCS
}

// StorageConfig represents storage settings. An empty Path disables persistence.
type StorageConfig struct {
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig represents the PostgreSQL export. An empty ConnString disables it.
type PostgresConfig struct {
	ConnString string `yaml:"connString"`
	Table      string `yaml:"table"`
}

// MetricsConfig represents metrics settings. An empty Listen address disables
// the HTTP endpoint; the collectors are registered regardless.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Listen    string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Settings: Settings{LogLevel: defaultLogLevel},
		Analysis: analysis.DefaultConfig(),
		Index:    index.DefaultConfig(),
		Storage:  StorageConfig{Postgres: PostgresConfig{Table: defaultTable}},
		Metrics:  MetricsConfig{Namespace: defaultNamespace},
	}
}

// Load reads the file at path over the defaults. Sections and fields missing
// from the file keep their default values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err = cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaultLogLevel
	}
	if c.Index.Eviction == "" {
		c.Index.Eviction = index.EvictionNone
	}
	if c.Storage.Postgres.Table == "" {
		c.Storage.Postgres.Table = defaultTable
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = defaultNamespace
	}
}

func (c *Config) validate() error {
	var errs []error
	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, fmt.Errorf("settings.logLevel: %w", err))
	}
	if c.Decoder.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("decoder.concurrency must not be negative, got %d", c.Decoder.Concurrency))
	}
	if err := c.Analysis.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analysis config: %w", err))
	}
	if err := c.Index.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("index config: %w", err))
	}
	if c.Timeseries.Enabled() && c.Timeseries.Database == "" {
		errs = append(errs, errors.New("timeseries.database is required when timeseries.host is set"))
	}
	return errors.Join(errs...)
}
