package di

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	apperrors "bootstrap-core/internal/errors"
	"bootstrap-core/internal/infrastructure/observability"
)

const tracerName = "bootstrap-core/di"

// Builder collects the three type sets and produces a Registry. It is not safe
// for concurrent use.
type Builder struct {
	scanned        TypeSet
	implementation TypeSet
	singleton      TypeSet
	logging        bool

	logger    *zap.Logger
	collector *observability.Collector
	publish   bool
	err       error
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used for build diagnostics and as the root of the
// logging infrastructure.
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithCollector records build and resolution metrics in c.
func WithCollector(c *observability.Collector) BuilderOption {
	return func(b *Builder) { b.collector = c }
}

// WithoutPublish stops Build from installing the registry as the current locator.
func WithoutPublish() BuilderOption {
	return func(b *Builder) { b.publish = false }
}

// NewBuilder creates a builder with empty type sets.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		scanned:        TypeSet{},
		implementation: TypeSet{},
		singleton:      TypeSet{},
		logger:         zap.NewNop(),
		publish:        true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithAssemblyTypes replaces the scanned set. Scanned types are registered under
// their own concrete type only.
func (b *Builder) WithAssemblyTypes(set TypeSet) *Builder {
	if set == nil {
		b.fail("scanned")
		return b
	}
	b.scanned = set
	return b
}

// WithImplementationTypes replaces the implementation set.
func (b *Builder) WithImplementationTypes(set TypeSet) *Builder {
	if set == nil {
		b.fail("implementation")
		return b
	}
	b.implementation = set
	return b
}

// WithSingletonTypes replaces the singleton set.
func (b *Builder) WithSingletonTypes(set TypeSet) *Builder {
	if set == nil {
		b.fail("singleton")
		return b
	}
	b.singleton = set
	return b
}

// WithAssemblyTypesOf replaces the scanned set with descriptors.
func (b *Builder) WithAssemblyTypesOf(descriptors ...TypeDescriptor) *Builder {
	return b.WithAssemblyTypes(NewTypeSet(descriptors...))
}

// WithImplementationTypesOf replaces the implementation set with descriptors.
func (b *Builder) WithImplementationTypesOf(descriptors ...TypeDescriptor) *Builder {
	return b.WithImplementationTypes(NewTypeSet(descriptors...))
}

// WithSingletonTypesOf replaces the singleton set with descriptors.
func (b *Builder) WithSingletonTypesOf(descriptors ...TypeDescriptor) *Builder {
	return b.WithSingletonTypes(NewTypeSet(descriptors...))
}

// WithCatalog replaces all three sets with the catalog's. Nil sets in the catalog
// are treated as empty.
func (b *Builder) WithCatalog(c Catalog) *Builder {
	return b.
		WithAssemblyTypes(orEmpty(c.Scanned)).
		WithImplementationTypes(orEmpty(c.Implementations)).
		WithSingletonTypes(orEmpty(c.Singletons))
}

// WithLogging requests the logger factory and per-type logger registrations.
func (b *Builder) WithLogging() *Builder {
	b.logging = true
	return b
}

// Err returns the first configuration error recorded on the builder.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(set string) {
	if b.err != nil {
		return
	}
	b.err = apperrors.InvalidArgument("type set is required").
		WithOperation("di.Builder").
		WithResource(set).
		Build()
}

// Build runs the registration phases and freezes the result. On success the
// registry is published as the current locator unless WithoutPublish was given.
// A failed build publishes nothing.
func (b *Builder) Build(ctx context.Context) (reg *Registry, err error) {
	if b.err != nil {
		apperrors.Log(b.logger, b.err, "Registry builder misconfigured")
		return nil, b.err
	}

	start := time.Now()
	_, span := observability.StartSpan(ctx, tracerName, "di.Build",
		attribute.Int("di.scanned", len(b.scanned)),
		attribute.Int("di.implementation", len(b.implementation)),
		attribute.Int("di.singleton", len(b.singleton)),
		attribute.Bool("di.logging", b.logging),
	)
	defer func() { observability.EndSpan(span, err) }()

	e := &engine{
		scanned:        b.scanned,
		implementation: b.implementation,
		singleton:      b.singleton,
		logging:        b.logging,
		root:           b.logger,
		state:          newRegistrationState(b.logger),
	}

	state, err := e.run()
	if err != nil {
		apperrors.Log(b.logger, err, "Registry build failed")
		b.collector.RecordBuild(time.Since(start), 0, err)
		return nil, err
	}

	reg = newRegistry(state, b.logger, b.collector)
	b.collector.RecordBuild(time.Since(start), reg.Len(), nil)
	span.SetAttributes(attribute.String("di.registry_id", reg.ID()), attribute.Int("di.keys", reg.Len()))

	if b.publish {
		reg.Publish()
	}

	b.logger.Info("Registry built",
		zap.String("registry_id", reg.ID()),
		zap.Int("keys", reg.Len()),
		zap.Bool("published", b.publish),
		zap.Duration("duration", time.Since(start)),
	)
	return reg, nil
}

func orEmpty(s TypeSet) TypeSet {
	if s == nil {
		return TypeSet{}
	}
	return s
}
