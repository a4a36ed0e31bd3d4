// Package logging builds the structured zap loggers shared by both
// binaries.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	Level            string
	Development      bool
	OutputPaths      []string
	ErrorOutputPaths []string
	Component        string
}

// DefaultConfig returns a production-shaped config for the named
// component ("member" or "registry").
func DefaultConfig(component string) Config {
	return Config{
		Level:            "info",
		Development:      false,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		Component:        component,
	}
}

// New builds a *zap.Logger from cfg, tagged with a "component" field.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      orDefault(cfg.OutputPaths, []string{"stdout"}),
		ErrorOutputPaths: orDefault(cfg.ErrorOutputPaths, []string{"stderr"}),
	}
	if cfg.Development {
		zapCfg.Encoding = "console"
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if cfg.Component != "" {
		logger = logger.With(zap.String("component", cfg.Component))
	}
	return logger, nil
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

// WithTask returns a child logger annotated with the supervisor task name,
// for use by resilient runners and the watchdog.
func WithTask(logger *zap.Logger, taskName string) *zap.Logger {
	return logger.With(zap.String("task", taskName))
}

// Duration renders d under the standard "duration" key.
func Duration(d time.Duration) zap.Field {
	return zap.Duration("duration", d)
}
