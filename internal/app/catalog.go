// Package app is the host's composition root: the statically declared table of
// everything the bootstrap binary registers, and the code that builds it.
package app

import (
	"os"
	"time"

	"go.uber.org/zap"

	"bootstrap-core/internal/config"
	"bootstrap-core/internal/di"
	"bootstrap-core/internal/diagnostics"
	apperrors "bootstrap-core/internal/errors"
	"bootstrap-core/internal/infrastructure/observability"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ProcessInfo describes the running process.
type ProcessInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

func newProcessInfo(r di.Resolver) (*ProcessInfo, error) {
	clock, err := di.Resolve[Clock](r)
	if err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	return &ProcessInfo{PID: os.Getpid(), Hostname: host, StartedAt: clock.Now()}, nil
}

// Catalog returns the host's registration table. The collector is registered
// only when metrics are enabled.
func Catalog(settings *config.Settings, collector *observability.Collector) di.Catalog {
	singletons := di.NewTypeSet(
		di.DescribeFunc(func() *config.Settings { return settings }),
		di.Describe(func(r di.Resolver) (*config.Store[HostConfig], error) {
			return newConfigStore(r, settings, collector)
		}, di.Capability[ConfigProvider]()),
		di.Describe(func(r di.Resolver) (*diagnostics.Server, error) {
			return newDiagnosticsServer(r, settings)
		}),
	)
	if collector != nil {
		singletons = singletons.Append(di.DescribeFunc(func() *observability.Collector { return collector }))
	}

	return di.Catalog{
		Name: "bootstrap",
		Scanned: di.NewTypeSet(
			di.Describe(newProcessInfo),
			di.DescribeFunc(func() systemClock { return systemClock{} }),
		),
		Implementations: di.NewTypeSet(
			di.DescribeFunc(func() systemClock { return systemClock{} }, di.Capability[Clock]()),
		),
		Singletons: singletons,
	}
}

func newConfigStore(r di.Resolver, settings *config.Settings, collector *observability.Collector) (*config.Store[HostConfig], error) {
	logger, err := loggerFor[config.Store[HostConfig]](r)
	if err != nil {
		return nil, err
	}
	return config.NewFileProvider[HostConfig](settings,
		config.WithValidator(newHostValidator()),
		config.WithLogger(logger),
		config.WithCollector(collector),
	)
}

func newDiagnosticsServer(r di.Resolver, settings *config.Settings) (*diagnostics.Server, error) {
	reg, err := di.Resolve[*di.Registry](r)
	if err != nil {
		return nil, err
	}
	logger, err := loggerFor[diagnostics.Server](r)
	if err != nil {
		return nil, err
	}

	var opts []diagnostics.RouterOption
	if collector, err := di.Resolve[*observability.Collector](r); err == nil {
		opts = append(opts, diagnostics.WithGatherer(collector.Registry()))
	} else if !apperrors.IsNotRegistered(err) {
		return nil, err
	}

	router := diagnostics.NewRouter(reg, logger, opts...)
	return diagnostics.NewServer(settings.DiagnosticsAddr, router.Setup(), logger), nil
}

// loggerFor returns the per-type logger, or a no-op logger when the registry
// was built without logging.
func loggerFor[T any](r di.Resolver) (*zap.Logger, error) {
	logger, err := di.LoggerFor[T](r)
	if apperrors.IsNotRegistered(err) {
		return zap.NewNop(), nil
	}
	if err != nil {
		return nil, err
	}
	return logger, nil
}
