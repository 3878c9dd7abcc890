package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atinylittleshell/gcomp/internal/core"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of configuration files.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger,
	}
}

// LoadResult contains the result of loading a configuration file.
type LoadResult struct {
	Config *Config
	Errors []error
}

// LoadFromFile loads configuration from a YAML file.
// Returns the configuration and any non-fatal errors encountered.
// If the file doesn't exist, returns default configuration with no error.
func (l *Loader) LoadFromFile(path string) (*LoadResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug("config file not found, using defaults", zap.String("path", path))
			return &LoadResult{
				Config: DefaultConfig(),
				Errors: []error{},
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.LoadFromString(string(content))
}

// LoadFromString loads configuration from a YAML string. Unknown keys are
// reported as non-fatal errors. Syntax and validation errors are reported
// too, and the defaults are used instead.
func (l *Loader) LoadFromString(source string) (*LoadResult, error) {
	result := &LoadResult{
		Config: DefaultConfig(),
		Errors: []error{},
	}

	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(strings.NewReader(source))
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		var typeErr *yaml.TypeError
		if !errors.As(err, &typeErr) {
			result.Errors = append(result.Errors, fmt.Errorf("parse error: %w", err))
			return result, nil
		}
		// Type errors leave the rest of the document decoded.
		for _, msg := range typeErr.Errors {
			result.Errors = append(result.Errors, fmt.Errorf("config error: %s", msg))
		}
	}

	if err := cfg.Validate(); err != nil {
		result.Errors = append(result.Errors, err)
		return result, nil
	}

	l.logger.Debug("loaded config",
		zap.Strings("providers", cfg.Providers),
		zap.Duration("timeout", cfg.Timeout))

	result.Config = cfg
	return result, nil
}

// LoadDefaultConfigPath loads configuration from the default path (~/.gcomp/config.yaml).
func (l *Loader) LoadDefaultConfigPath() (*LoadResult, error) {
	return l.LoadFromFile(core.ConfigFile())
}
