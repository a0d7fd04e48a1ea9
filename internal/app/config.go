package app

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"bootstrap-core/internal/config"
)

// HostConfig is the configuration the host persists in its config slot.
type HostConfig struct {
	ServiceName string            `json:"service_name" yaml:"service_name" toml:"service_name" validate:"required,max=64,service_name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Features    FeatureFlags      `json:"features" yaml:"features" toml:"features"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty" validate:"dive,required"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty" toml:"labels,omitempty"`
}

// FeatureFlags toggles optional host behaviour.
type FeatureFlags struct {
	Diagnostics bool `json:"diagnostics" yaml:"diagnostics" toml:"diagnostics"`
	HotReload   bool `json:"hot_reload" yaml:"hot_reload" toml:"hot_reload"`
}

// DefaultHostConfig returns the configuration written by `config init`.
func DefaultHostConfig(settings *config.Settings) HostConfig {
	return HostConfig{
		ServiceName: "bootstrap",
		Features: FeatureFlags{
			Diagnostics: true,
			HotReload:   !settings.IsProduction(),
		},
		Tags: []string{string(settings.Environment)},
	}
}

// ConfigProvider is the capability under which the host config store is registered.
type ConfigProvider = config.Provider[HostConfig]

var serviceNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// newHostValidator returns a validator that also knows the service_name tag:
// lowercase letters, digits and inner dashes.
func newHostValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("service_name", func(fl validator.FieldLevel) bool {
		return serviceNamePattern.MatchString(fl.Field().String())
	})
	return v
}
