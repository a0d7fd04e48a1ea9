package app

import (
	"context"

	"go.uber.org/zap"

	"bootstrap-core/internal/config"
	"bootstrap-core/internal/di"
	apperrors "bootstrap-core/internal/errors"
	"bootstrap-core/internal/infrastructure/observability"
)

// MetricsNamespace prefixes every metric the host exports.
const MetricsNamespace = "bootstrap"

// Host is a bootstrapped process: its settings and the published registry.
type Host struct {
	Settings  *config.Settings
	Registry  *di.Registry
	Logger    *zap.Logger
	Collector *observability.Collector
}

// Bootstrap builds the host registry from settings and publishes it.
func Bootstrap(ctx context.Context, settings *config.Settings, logger *zap.Logger, opts ...di.BuilderOption) (*Host, error) {
	if settings == nil {
		return nil, apperrors.InvalidArgument("settings are required").
			WithOperation("app.Bootstrap").
			Build()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var collector *observability.Collector
	if settings.EnableMetrics {
		collector = observability.NewCollector(MetricsNamespace)
	}

	builderOpts := append([]di.BuilderOption{
		di.WithLogger(logger),
		di.WithCollector(collector),
	}, opts...)

	builder := di.NewBuilder(builderOpts...).WithCatalog(Catalog(settings, collector))
	if settings.EnableLogging {
		builder = builder.WithLogging()
	}

	reg, err := builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	return &Host{
		Settings:  settings,
		Registry:  reg,
		Logger:    logger,
		Collector: collector,
	}, nil
}

// ConfigStore returns the host's config store from the registry.
func (h *Host) ConfigStore() (*config.Store[HostConfig], error) {
	return di.Resolve[*config.Store[HostConfig]](h.Registry)
}

// LoadConfig loads the host configuration through the registered provider.
func (h *Host) LoadConfig(ctx context.Context) (HostConfig, error) {
	provider, err := di.Resolve[ConfigProvider](h.Registry)
	if err != nil {
		return HostConfig{}, err
	}
	return provider.Load(ctx)
}
