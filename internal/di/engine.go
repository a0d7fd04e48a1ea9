package di

import (
	"reflect"

	"go.uber.org/zap"

	"bootstrap-core/internal/infrastructure/observability"
)

var (
	// LoggerFactoryCapability is the key of the logging factory registered by WithLogging.
	LoggerFactoryCapability = Capability[observability.LoggerFactory]()
	// LoggerCapability is the parameterized key of per-type loggers; see LoggerFor.
	LoggerCapability = reflect.TypeOf((**zap.Logger)(nil)).Elem()
)

// registrationState is the mutable table the phases write into. It becomes the
// Registry's lookup maps once every phase has run.
type registrationState struct {
	entries map[reflect.Type]*entry
	params  map[reflect.Type]*paramEntry
	logger  *zap.Logger
}

func newRegistrationState(logger *zap.Logger) *registrationState {
	return &registrationState{
		entries: make(map[reflect.Type]*entry),
		params:  make(map[reflect.Type]*paramEntry),
		logger:  logger,
	}
}

// register adds e, replacing any earlier entry for the same key.
func (s *registrationState) register(e *entry) {
	if prev, ok := s.entries[e.key]; ok {
		s.logger.Debug("Registration shadowed",
			zap.String("key", e.key.String()),
			zap.String("previous", typeString(prev.descriptor.concrete)),
			zap.String("previous_phase", prev.phase.String()),
			zap.String("replacement", typeString(e.descriptor.concrete)),
			zap.String("replacement_phase", e.phase.String()),
		)
	}
	s.entries[e.key] = e
}

func (s *registrationState) registerParam(p *paramEntry) {
	if _, ok := s.params[p.key]; ok {
		s.logger.Debug("Parameterized registration shadowed", zap.String("key", p.key.String()))
	}
	s.params[p.key] = p
}

// engine runs the registration phases in their fixed order.
type engine struct {
	scanned        TypeSet
	implementation TypeSet
	singleton      TypeSet
	logging        bool
	root           *zap.Logger
	state          *registrationState
}

func (e *engine) run() (*registrationState, error) {
	steps := []struct {
		phase Phase
		run   func() error
	}{
		{PhaseScanned, e.registerScanned},
		{PhaseImplementation, e.registerImplementations},
		{PhaseSingleton, e.registerSingletons},
		{PhaseInfrastructure, e.registerInfrastructure},
	}

	for _, step := range steps {
		before := len(e.state.entries) + len(e.state.params)
		if err := step.run(); err != nil {
			return nil, err
		}
		e.state.logger.Debug("Registration phase complete",
			zap.String("phase", step.phase.String()),
			zap.Int("keys", len(e.state.entries)+len(e.state.params)),
			zap.Int("new_keys", len(e.state.entries)+len(e.state.params)-before),
		)
	}
	return e.state, nil
}

// registerScanned registers every scanned descriptor, the engine's own catalog and
// the entry catalog under their concrete types only.
func (e *engine) registerScanned() error {
	sets := []TypeSet{e.scanned, engineCatalog(), entryCatalog()}
	for _, set := range sets {
		for _, d := range set {
			if err := d.validate(false); err != nil {
				return registrationError(PhaseScanned, d, err)
			}
			e.state.register(&entry{
				key:        d.concrete,
				descriptor: d,
				lifetime:   Transient,
				phase:      PhaseScanned,
			})
		}
	}
	return nil
}

// registerImplementations registers each descriptor under every capability it
// declares. Each key constructs independently.
func (e *engine) registerImplementations() error {
	for _, d := range e.implementation {
		if err := d.validate(true); err != nil {
			return registrationError(PhaseImplementation, d, err)
		}
		for _, c := range d.capabilities {
			e.state.register(&entry{
				key:        c,
				descriptor: d,
				lifetime:   Transient,
				phase:      PhaseImplementation,
			})
		}
	}
	return nil
}

// registerSingletons registers each descriptor under its capabilities and its
// concrete type, all sharing one cell.
func (e *engine) registerSingletons() error {
	for _, d := range e.singleton {
		if err := d.validate(true); err != nil {
			return registrationError(PhaseSingleton, d, err)
		}
		cell := &singletonCell{}
		keys := append(d.Capabilities(), d.concrete)
		for _, k := range keys {
			e.state.register(&entry{
				key:        k,
				descriptor: d,
				lifetime:   Singleton,
				phase:      PhaseSingleton,
				cell:       cell,
			})
		}
	}
	return nil
}

// registerInfrastructure adds the logger factory and per-type loggers when
// logging was requested.
func (e *engine) registerInfrastructure() error {
	if !e.logging {
		return nil
	}

	root := e.root
	factoryType := reflect.TypeOf(observability.NewLoggerFactory(zap.NewNop()))
	e.state.register(&entry{
		key: LoggerFactoryCapability,
		descriptor: NewDescriptor(factoryType, func(Resolver) (any, error) {
			return observability.NewLoggerFactory(root), nil
		}, LoggerFactoryCapability),
		lifetime: Singleton,
		phase:    PhaseInfrastructure,
		cell:     &singletonCell{},
	})

	e.state.registerParam(&paramEntry{
		key:      LoggerCapability,
		concrete: LoggerCapability,
		phase:    PhaseInfrastructure,
		construct: func(r Resolver, param reflect.Type) (any, error) {
			factory, err := Resolve[observability.LoggerFactory](r)
			if err != nil {
				return nil, err
			}
			return factory.For(param), nil
		},
	})
	return nil
}

// engineCatalog holds the types this package contributes to every registry.
func engineCatalog() TypeSet {
	return TypeSet{
		NewDescriptor(reflect.TypeOf((**Registry)(nil)).Elem(), func(r Resolver) (any, error) {
			return registryOf(r), nil
		}),
	}
}

func registryOf(r Resolver) *Registry {
	switch v := r.(type) {
	case *Registry:
		return v
	case *resolution:
		return v.registry
	default:
		return nil
	}
}
