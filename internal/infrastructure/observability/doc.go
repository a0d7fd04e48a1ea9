// Package observability provides the logging, metrics and tracing plumbing shared by
// the registry builder and the config store.
//
// # Logging
//
// NewLogger builds a zap logger for an environment and level. LoggerFactory hands
// out named child loggers; the registry exposes it as a singleton capability when a
// build requests logging infrastructure, and caches one logger per consumer type.
//
//	factory := observability.NewLoggerFactory(logger)
//	log := factory.For(reflect.TypeFor[*Clock]())
//	log.Info("clock started")
//
// # Metrics
//
// Collector owns a private Prometheus registry so tests and multiple registries in
// one process never collide on registration. All Record* methods are nil-safe.
//
// # Tracing
//
// InitTracing installs an OpenTelemetry SDK tracer provider. StartSpan and EndSpan
// wrap the global tracer so instrumented code works with or without it.
package observability
