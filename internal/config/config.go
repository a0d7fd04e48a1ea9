package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read into Settings.
const EnvPrefix = "BOOTSTRAP"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Settings holds the host process settings. ConfigPath names the slot that holds
// the host's persisted configuration.
type Settings struct {
	ConfigPath      string      `envconfig:"CONFIG_PATH" default:"./data/config.json" validate:"required"`
	ConfigFileMode  os.FileMode `envconfig:"CONFIG_FILE_MODE" default:"0644" validate:"lte=0777"`
	Environment     Environment `envconfig:"ENVIRONMENT" default:"development" validate:"oneof=development staging production"`
	LogLevel        string      `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	DiagnosticsAddr string      `envconfig:"DIAGNOSTICS_ADDR" default:":8081" validate:"required"`
	EnableLogging   bool        `envconfig:"ENABLE_LOGGING" default:"true"`
	EnableMetrics   bool        `envconfig:"ENABLE_METRICS" default:"true"`
	EnableWatch     bool        `envconfig:"ENABLE_WATCH" default:"false"`
}

// LoadSettings reads Settings from BOOTSTRAP_* environment variables and validates them.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DefaultSettings returns the settings used when the environment sets nothing.
func DefaultSettings() *Settings {
	return &Settings{
		ConfigPath:      "./data/config.json",
		ConfigFileMode:  0o644,
		Environment:     Development,
		LogLevel:        "info",
		DiagnosticsAddr: ":8081",
		EnableLogging:   true,
		EnableMetrics:   true,
	}
}

// Validate checks the settings against their struct tags.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// IsProduction reports whether the settings target production.
func (s *Settings) IsProduction() bool {
	return s.Environment == Production
}
