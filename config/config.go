// Package config composes the runtime's configuration sections and loads
// them from YAML files with environment variable interpolation.
package config

import (
	"io"
	"os"

	"github.com/rand/loop/memory"
	"github.com/rand/loop/observability"
	"github.com/rand/loop/types"
)

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level" json:"level"`

	// Format is "json" or "text".
	Format string `mapstructure:"format" yaml:"format" json:"format"`

	// Output is "stdout", "stderr", or a file path.
	Output string `mapstructure:"output" yaml:"output" json:"output"`
}

// ApplyDefaults fills unset logging fields.
func (c *LoggingConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate checks logging configuration.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"logging level must be one of debug, info, warn, error")
	}
	switch c.Format {
	case "json", "text":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"logging format must be json or text")
	}
	return nil
}

// BuildLogger constructs the structured logger this section describes.
// Output resolves "stdout" and "stderr" to the process streams; anything
// else is treated as a file path and opened for append.
func (c *LoggingConfig) BuildLogger() (*observability.TracedLogger, error) {
	var out io.Writer
	switch c.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
				"failed to open log output", err)
		}
		out = f
	}

	return observability.NewTracedLogger(observability.LoggerOptions{
		Level:  c.Level,
		Format: c.Format,
		Output: out,
	}), nil
}

// TracingConfig controls the OpenTelemetry tracer.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name" json:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate" json:"sample_rate"`
}

// ApplyDefaults fills unset tracing fields.
func (c *TracingConfig) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "loop"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
}

// Validate checks tracing configuration.
func (c *TracingConfig) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"tracing sample_rate must be within [0,1]")
	}
	return nil
}

// SessionConfig controls per-session working memory limits.
type SessionConfig struct {
	// MaxTokens caps the approximate token footprint; 0 means unlimited.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`

	// MaxToolOutputs bounds retained tool outputs; 0 means unlimited.
	MaxToolOutputs int `mapstructure:"max_tool_outputs" yaml:"max_tool_outputs" json:"max_tool_outputs"`
}

// ApplyDefaults fills unset session fields.
func (c *SessionConfig) ApplyDefaults() {
	if c.MaxToolOutputs == 0 {
		c.MaxToolOutputs = 100
	}
}

// Validate checks session configuration.
func (c *SessionConfig) Validate() error {
	if c.MaxTokens < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"session max_tokens cannot be negative")
	}
	if c.MaxToolOutputs < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"session max_tool_outputs cannot be negative")
	}
	return nil
}

// Config is the composed runtime configuration.
type Config struct {
	Memory  memory.Config `mapstructure:"memory" yaml:"memory" json:"memory"`
	Session SessionConfig `mapstructure:"session" yaml:"session" json:"session"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
}

// DefaultConfig returns a fully defaulted configuration.
func DefaultConfig() *Config {
	cfg := &Config{Memory: memory.DefaultConfig()}
	cfg.Session.ApplyDefaults()
	cfg.Logging.ApplyDefaults()
	cfg.Tracing.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields across all sections.
func (c *Config) ApplyDefaults() {
	c.Memory.ApplyDefaults()
	c.Session.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Tracing.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Memory.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return c.Tracing.Validate()
}
