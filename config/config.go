// Package config defines the rgbdmesh configuration file: where the calibration lives, the
// reconstruction tunables and how to log.
package config

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/rgbdmesh/logging"
	"go.viam.com/rgbdmesh/rgbd"
)

// Config is the top level configuration.
type Config struct {
	// CalibrationDir holds the depth and color calibration files.
	CalibrationDir string      `yaml:"calibration_dir,omitempty"`
	Reconstruction rgbd.Config `yaml:"reconstruction"`
	Logging        LogConfig   `yaml:"logging"`

	ConfigFilePath string `yaml:"-"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
	// File, when set, adds a rotating file appender.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Reconstruction: rgbd.DefaultConfig(),
		Logging:        LogConfig{Level: "info"},
	}
}

// Ensure validates the config and clamps the stride.
func (c *Config) Ensure() error {
	c.Reconstruction = c.Reconstruction.Normalized()
	if err := c.Reconstruction.Validate(); err != nil {
		return utils.NewConfigValidationError("reconstruction", err)
	}
	return c.Logging.Validate("logging")
}

// Validate checks the level name and rotation limits.
func (lc LogConfig) Validate(path string) error {
	if _, err := lc.ParsedLevel(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if lc.MaxSizeMB < 0 || lc.MaxBackups < 0 || lc.MaxAgeDays < 0 {
		return utils.NewConfigValidationError(path, errors.New("log rotation limits must not be negative"))
	}
	return nil
}

// ParsedLevel returns the configured level, INFO when unset.
func (lc LogConfig) ParsedLevel() (logging.Level, error) {
	if lc.Level == "" {
		return logging.INFO, nil
	}
	return logging.LevelFromString(lc.Level)
}

// FileAppenderConfig returns the rotation settings for the file appender, filling unset limits
// with the defaults.
func (lc LogConfig) FileAppenderConfig() logging.FileAppenderConfig {
	cfg := logging.DefaultFileAppenderConfig(lc.File)
	if lc.MaxSizeMB > 0 {
		cfg.MaxSizeMB = lc.MaxSizeMB
	}
	if lc.MaxBackups > 0 {
		cfg.MaxBackups = lc.MaxBackups
	}
	if lc.MaxAgeDays > 0 {
		cfg.MaxAgeDays = lc.MaxAgeDays
	}
	return cfg
}
