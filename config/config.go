// Package config loads the TOML configuration file and applies
// defaults and environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file locations.
type Paths struct {
	DBPath  string `toml:"db_path"`
	LogPath string `toml:"log_path"`
}

// Gemini contains configuration for the hosted language-model API.
// The GEMINI_API_KEY environment variable overrides api_key.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Config is the root configuration.
type Config struct {
	Paths    Paths  `toml:"paths"`
	Gemini   Gemini `toml:"gemini"`
	LogLevel string `toml:"log_level"`
}

func defaults() Config {
	return Config{
		Paths: Paths{
			DBPath:  "smartlibrary.db",
			LogPath: "smartlibrary.log",
		},
		Gemini: Gemini{
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 30,
		},
		LogLevel: "info",
	}
}

// Load reads the config at path. A missing file yields the defaults; a
// malformed file is an error. GEMINI_API_KEY overrides the file value
// either way.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Paths.DBPath == "" {
		return fmt.Errorf("config: paths.db_path cannot be empty")
	}
	if c.Gemini.TimeoutSeconds < 0 {
		return fmt.Errorf("config: gemini.timeout_seconds cannot be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// GeminiTimeout returns the configured request timeout as a Duration.
func (c *Config) GeminiTimeout() time.Duration {
	return time.Duration(c.Gemini.TimeoutSeconds) * time.Second
}

// WriteSample writes the annotated sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
