// Package config provides configuration management for gcomp.
// It handles loading and parsing of the YAML configuration file and
// validating the provider list against the known providers.
package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrDuplicateProvider = errors.New("duplicate provider")
	ErrInvalidTimeout    = errors.New("invalid timeout")
	ErrInvalidLogLevel   = errors.New("invalid log level")
)

// KnownProviders lists the provider names accepted in Config.Providers.
var KnownProviders = []string{"commands", "specs", "files", "keywords", "history", "snippets", "predict"}

// Config holds all gcomp configuration.
type Config struct {
	// LogLevel controls logging verbosity.
	LogLevel string `yaml:"log_level"`

	// Timeout bounds how long each provider may take to reply. Zero selects
	// the reconciliation default.
	Timeout time.Duration `yaml:"timeout"`

	// Providers are the enabled providers in priority order. The first one
	// also decides continuous hints.
	Providers []string `yaml:"providers"`

	// RCFile is a bash file loaded for aliases and `complete` specs.
	// Empty means ~/.gcomprc.
	RCFile string `yaml:"rc_file"`

	History  HistoryConfig     `yaml:"history"`
	Files    FilesConfig       `yaml:"files"`
	Snippets map[string]string `yaml:"snippets"`
	Predict  PredictConfig     `yaml:"predict"`
}

type HistoryConfig struct {
	// Limit caps the number of history items per reply.
	Limit int `yaml:"limit"`
}

type FilesConfig struct {
	ShowHidden bool `yaml:"show_hidden"`
}

// PredictConfig configures the model backed provider. It is disabled while
// Model is empty.
type PredictConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	MaxItems  int    `yaml:"max_items"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		Timeout:   time.Second,
		Providers: []string{"commands", "specs", "files", "keywords", "history", "snippets", "predict"},
		History: HistoryConfig{
			Limit: 10,
		},
		Snippets: map[string]string{},
		Predict: PredictConfig{
			APIKeyEnv: "OPENAI_API_KEY",
			MaxItems:  3,
		},
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Timeout)
	}

	known := make(map[string]bool, len(KnownProviders))
	for _, name := range KnownProviders {
		known[name] = true
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, name := range c.Providers {
		if !known[name] {
			return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateProvider, name)
		}
		seen[name] = true
	}

	if c.History.Limit < 0 {
		return fmt.Errorf("history.limit must not be negative: %d", c.History.Limit)
	}
	if c.Predict.MaxItems < 0 {
		return fmt.Errorf("predict.max_items must not be negative: %d", c.Predict.MaxItems)
	}

	return nil
}

// HasProvider reports whether name is enabled.
func (c *Config) HasProvider(name string) bool {
	for _, p := range c.Providers {
		if p == name {
			return true
		}
	}
	return false
}
