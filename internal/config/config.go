// Package config loads storekit CLI settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds CLI defaults. Command-line flags override these values.
type Config struct {
	LogLevel       string        `env:"STOREKIT_LOG_LEVEL"       envDefault:"warn"`
	FulfillTimeout time.Duration `env:"STOREKIT_FULFILL_TIMEOUT" envDefault:"3s"`
	Grace          time.Duration `env:"STOREKIT_GRACE"           envDefault:"10ms"`
	MaxSteps       int           `env:"STOREKIT_MAX_STEPS"       envDefault:"1000"`
	Journal        string        `env:"STOREKIT_JOURNAL"`
	Parallel       int           `env:"STOREKIT_PARALLEL"        envDefault:"4"`
}

// Load parses Config from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Parallel < 1 {
		return Config{}, fmt.Errorf("parse env: STOREKIT_PARALLEL must be at least 1, got %d", cfg.Parallel)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// Logger builds a text logger writing to w at the configured level.
// verbose forces debug output.
func (c Config) Logger(w io.Writer, verbose bool) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
