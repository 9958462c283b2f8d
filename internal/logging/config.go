// Package logging provides structured logging for projectd.
//
// Correlation data (project id, request id) travels in context.Context and
// is attached to every log call explicitly, never merged in through package
// globals.
package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level      zapcore.Level     `koanf:"level"`
	Format     string            `koanf:"format"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
}

// CallerConfig controls caller information in logs.
type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

// StacktraceConfig controls stacktrace inclusion.
type StacktraceConfig struct {
	Level zapcore.Level `koanf:"level"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Caller: CallerConfig{
			Enabled: true,
			Skip:    1,
		},
		Stacktrace: StacktraceConfig{
			Level: zapcore.ErrorLevel,
		},
		Fields: map[string]string{
			"service": "projectd",
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid format %q (must be json or console)", c.Format)
	}
	if c.Caller.Skip < 0 {
		return fmt.Errorf("caller.skip cannot be negative")
	}
	return nil
}
