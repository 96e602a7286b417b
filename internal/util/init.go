// Package util provides helpers for process initialization.
package util

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that override config keys.
// EVENTGATE_BROKER__EXTRA__BATCH_SIZE sets broker.extra.batch_size.
const EnvPrefix = "EVENTGATE_"

const (
	envDebug = "DEBUG"
	envDev   = "DEV"
)

// InitLogger returns a structured logger configured from the environment.
// DEBUG: enables debug level logging
// DEV: enables debug level logging with human-readable format
func InitLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if os.Getenv(envDebug) != "" {
		opts.Level = slog.LevelDebug
	}

	if os.Getenv(envDev) != "" {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// InitConfig loads configuration from a TOML file and environment variables.
// Environment variables prefixed with EVENTGATE_ override file values.
// An empty confFilePath skips the file.
func InitConfig(lo *slog.Logger, confFilePath string) (*koanf.Koanf, error) {
	ko := koanf.New(".")

	if confFilePath != "" {
		if err := ko.Load(file.Provider(confFilePath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load configuration file %s: %w", confFilePath, err)
		}
	}

	if err := ko.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	if os.Getenv(envDebug) != "" {
		lo.Debug("configuration loaded", "keys", ko.Keys())
	}

	return ko, nil
}

// envKey maps EVENTGATE_A__B_C=v to a.b_c. A value holding spaces becomes a
// list of its fields.
func envKey(name, value string) (string, any) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", ".")
	if fields := strings.Fields(value); len(fields) > 1 {
		return key, fields
	}
	return key, strings.TrimSpace(value)
}
