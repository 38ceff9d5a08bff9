// Package config loads the dfnls configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/uox3/dfn"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level configuration.
type Config struct {
	Source            string       `yaml:"source"`
	Extensions        []string     `yaml:"extensions"`
	LegacyCommentTrim bool         `yaml:"legacy_comment_trim"`
	HistoryLimit      int          `yaml:"history_limit"`
	Concurrency       int          `yaml:"concurrency"`
	Log               Log          `yaml:"log"`
	Completion        []Completion `yaml:"completion"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Completion is one keyword offered by the completion provider.
type Completion struct {
	Label  string `yaml:"label"`
	Detail string `yaml:"detail"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Source:     dfn.DefaultSource,
		Extensions: []string{".dfn"},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
		Completion: []Completion{
			{Label: "GET", Detail: "Reference another entry"},
			{Label: "PORT", Detail: "Numeric port"},
			{Label: "ENABLED", Detail: "Boolean flag"},
		},
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DFNLS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DFNLS_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks the configuration for values the server cannot use.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("%w: source must not be empty", ErrInvalidConfig)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("%w: at least one extension is required", ErrInvalidConfig)
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: extension %q must start with a dot", ErrInvalidConfig, ext)
		}
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("%w: history_limit must not be negative", ErrInvalidConfig)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	for i, item := range c.Completion {
		if item.Label == "" {
			return fmt.Errorf("%w: completion %d has no label", ErrInvalidConfig, i)
		}
	}
	return nil
}

// ParserOptions returns the parser options described by the configuration.
func (c *Config) ParserOptions() []dfn.Option {
	return []dfn.Option{
		dfn.WithSource(c.Source),
		dfn.WithLegacyCommentTrim(c.LegacyCommentTrim),
	}
}
