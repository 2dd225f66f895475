// Package config loads runtime settings from, in order of precedence:
// flag defaults, an optional YAML config file, LEITNER_* environment
// variables, and explicitly set command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "LEITNER_"

// Config holds everything the binary needs to run.
type Config struct {
	DB       string `koanf:"db"`
	Listen   string `koanf:"listen"`
	ReposDir string `koanf:"repos-dir"`
}

// Flags registers the config-backed flags on a flag set. Flag defaults
// double as config defaults.
func Flags(f *pflag.FlagSet) {
	f.String("db", "leitner.db", "Path to the SQLite database file")
	f.String("listen", ":8080", "Address for the web server to listen on")
	f.String("repos-dir", "repos", "Directory for local checkouts of git deck sources")
	f.String("config", "", "Path to an optional YAML config file")
}

// Load assembles the configuration from the parsed flag set.
func Load(f *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if _, err := os.Stat("leitner.yaml"); err == nil {
		if err := k.Load(file.Provider("leitner.yaml"), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load leitner.yaml: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "_", "-")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	// Passing k makes unchanged flags fill gaps only, so the file and
	// environment keep precedence over flag defaults.
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
