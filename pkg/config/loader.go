package config

import (
	"fmt"
	"log/slog"
	"os"

	exporterrors "github.com/climatekit/ascraster/pkg/errors"
)

// ConfigLoader loads and validates export configuration from a YAML file.
// It performs file reading, YAML parsing, and validation.
type ConfigLoader struct {
	configPath string
	validator  *Validator
	strict     bool
	logger     *slog.Logger
}

// LoaderOption customises a ConfigLoader.
type LoaderOption func(*ConfigLoader)

// WithStrict makes unknown top-level keys a parse error instead of a warning.
func WithStrict(strict bool) LoaderOption {
	return func(l *ConfigLoader) { l.strict = strict }
}

// WithValidator replaces the default validator, e.g. to accept more formats.
func WithValidator(v *Validator) LoaderOption {
	return func(l *ConfigLoader) { l.validator = v }
}

// NewConfigLoader creates a new ConfigLoader instance.
//
// Parameters:
//   - configPath: Path to the YAML configuration file
//   - logger: Structured logger for operational logging
func NewConfigLoader(configPath string, logger *slog.Logger, opts ...LoaderOption) *ConfigLoader {
	l := &ConfigLoader{
		configPath: configPath,
		validator:  NewValidator(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadConfig loads the configuration file and returns a validated Config.
// This is a "fail fast" operation: an unreadable, malformed, or invalid
// document prevents any job from being planned.
func (l *ConfigLoader) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", exporterrors.ErrConfigNotFound(l.configPath, err))
	}

	parse := Parse
	if l.strict {
		parse = ParseStrict
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", exporterrors.ErrConfigMalformed(err))
	}

	for _, key := range cfg.UnknownKeys() {
		l.logger.Warn("Ignoring unknown config key",
			"key", key,
			"config_path", l.configPath,
		)
	}

	if err := l.validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", exporterrors.NewExportError(exporterrors.ErrCodeConfigInvalid, "invalid configuration", err))
	}

	l.logger.Info("Config loaded successfully",
		"grids", cfg.Grids.Len(),
		"formats", cfg.Formats.Len(),
		"periods", cfg.Periods.Len(),
		"config_path", l.configPath,
	)

	return cfg, nil
}
