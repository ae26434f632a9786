// Package config handles application configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	// Field rewriting behavior
	Rewrite RewriteConfig `mapstructure:"rewrite"`

	// Batch dispatch over directory trees
	Batch BatchConfig `mapstructure:"batch"`

	// Logging
	Log LogConfig `mapstructure:"log"`
}

type RewriteConfig struct {
	// ModelFilename is excluded from directory runs; it names the
	// data-model container that must never be rewritten.
	ModelFilename string `mapstructure:"model_filename"`

	// PageFilters opts in to page-level filter rewriting. Off by
	// default: some host versions corrupt reports when page filters
	// are rewritten out-of-band.
	PageFilters bool `mapstructure:"page_filters"`
}

type BatchConfig struct {
	Jobs int `mapstructure:"jobs"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Rewrite: RewriteConfig{
			ModelFilename: "Model.pbix",
			PageFilters:   false,
		},
		Batch: BatchConfig{
			Jobs: runtime.NumCPU(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fieldshift"
	}
	return filepath.Join(home, ".fieldshift")
}

// Load loads configuration from file and env vars
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	defaults := DefaultConfig()
	v.SetDefault("rewrite.model_filename", defaults.Rewrite.ModelFilename)
	v.SetDefault("rewrite.page_filters", defaults.Rewrite.PageFilters)
	v.SetDefault("batch.jobs", defaults.Batch.Jobs)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultConfigDir())
		v.AddConfigPath("/etc/fieldshift")
	}

	// Environment variables
	v.SetEnvPrefix("fieldshift")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to a file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.Set("rewrite", c.Rewrite)
	v.Set("batch", c.Batch)
	v.Set("log", c.Log)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Rewrite.ModelFilename == "" {
		return fmt.Errorf("rewrite.model_filename is required")
	}
	if c.Batch.Jobs < 1 {
		return fmt.Errorf("batch.jobs must be at least 1")
	}
	return nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}
