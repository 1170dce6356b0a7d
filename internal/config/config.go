// Package config loads runtime settings from, in order of precedence,
// command-line flags, REVDECK_* environment variables and an optional
// YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config is the full runtime configuration.
type Config struct {
	// DBPath is the SQLite collection file; ":memory:" works too.
	DBPath string `koanf:"db_path" validate:"required"`
	// Deck selects the deck to study by full name path.
	Deck string `koanf:"deck"`
	// CollapseTime is how far ahead a learning card may be pulled in
	// when nothing else is due.
	CollapseTime time.Duration `koanf:"collapse_time" validate:"min=0"`
	// Spread controls where new cards appear among reviews.
	Spread string `koanf:"spread" validate:"oneof=distribute new-last new-first"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	// NoColor disables ANSI colors in CLI output.
	NoColor bool `koanf:"no_color"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		DBPath:       "revdeck.db",
		CollapseTime: 20 * time.Minute,
		Spread:       "distribute",
		LogLevel:     "info",
	}
}

// Load merges the YAML file at path (skipped when missing), the
// environment and the given flag set over the defaults, then validates
// the result.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}
	err := k.Load(env.Provider("REVDECK_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "REVDECK_"))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}
	if flags != nil {
		// Only explicitly set flags participate, otherwise every unset
		// flag's empty default would mask the file and environment.
		changed := pflag.NewFlagSet(flags.Name(), pflag.ContinueOnError)
		flags.Visit(func(fl *pflag.Flag) { changed.AddFlag(fl) })
		if err := k.Load(posflag.Provider(changed, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flag config: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
