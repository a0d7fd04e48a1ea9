package di

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "bootstrap-core/internal/errors"
	"bootstrap-core/internal/infrastructure/observability"
)

type greeter interface{ Greet() string }

type namer interface{ Name() string }

type englishGreeter struct{ id int64 }

func (g *englishGreeter) Greet() string { return "hello" }
func (g *englishGreeter) Name() string  { return "english" }

type frenchGreeter struct{}

func (frenchGreeter) Greet() string { return "bonjour" }

type plainHelper struct{ n int64 }

var _ greeter = (*englishGreeter)(nil)
var _ namer = (*englishGreeter)(nil)

// counting returns a descriptor for *englishGreeter that counts constructions.
func counting(count *atomic.Int64, caps ...reflect.Type) TypeDescriptor {
	return Describe(func(Resolver) (*englishGreeter, error) {
		return &englishGreeter{id: count.Add(1)}, nil
	}, caps...)
}

func resetLocator(t *testing.T) {
	t.Helper()
	current.Store(nil)
	resetEntryTypes()
	t.Cleanup(func() {
		current.Store(nil)
		resetEntryTypes()
	})
}

func build(t *testing.T, b *Builder) *Registry {
	t.Helper()
	reg, err := b.Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, reg)
	return reg
}

// TestBuilder_NilSet tests that a nil set is reported by Build.
func TestBuilder_NilSet(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*Builder) *Builder
	}{
		{"scanned", func(b *Builder) *Builder { return b.WithAssemblyTypes(nil) }},
		{"implementation", func(b *Builder) *Builder { return b.WithImplementationTypes(nil) }},
		{"singleton", func(b *Builder) *Builder { return b.WithSingletonTypes(nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLocator(t)

			b := tt.apply(NewBuilder()).WithLogging()
			require.Error(t, b.Err())
			assert.True(t, apperrors.IsInvalidArgument(b.Err()))

			reg, err := b.Build(context.Background())
			assert.Nil(t, reg)
			assert.True(t, apperrors.IsInvalidArgument(err))

			_, ok := Current()
			assert.False(t, ok, "nothing is published")
		})
	}
}

// TestBuilder_EmptySetClearsPrevious tests that an empty set replaces a previous one.
func TestBuilder_EmptySetClearsPrevious(t *testing.T) {
	resetLocator(t)
	var count atomic.Int64

	reg := build(t, NewBuilder().
		WithImplementationTypesOf(counting(&count, Capability[greeter]())).
		WithImplementationTypes(TypeSet{}))

	assert.False(t, reg.Has(Capability[greeter]()))
}

// TestBuild_ImplementationIsTransient tests that implementation-only capabilities
// construct a new instance per resolution.
func TestBuild_ImplementationIsTransient(t *testing.T) {
	resetLocator(t)
	var count atomic.Int64

	reg := build(t, NewBuilder().
		WithImplementationTypesOf(counting(&count, Capability[greeter](), Capability[namer]())))

	first, err := Resolve[greeter](reg)
	require.NoError(t, err)
	second, err := Resolve[greeter](reg)
	require.NoError(t, err)
	byName, err := Resolve[namer](reg)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotSame(t, first, byName)
	assert.Equal(t, int64(3), count.Load())

	// implementation types are not registered under their concrete type
	assert.False(t, reg.Has(reflect.TypeOf((**englishGreeter)(nil)).Elem()))
}

// TestBuild_SingletonWinsOverImplementation tests that listing a capability in
// both sets yields one shared instance for every key.
func TestBuild_SingletonWinsOverImplementation(t *testing.T) {
	resetLocator(t)
	var implCount, singletonCount atomic.Int64

	reg := build(t, NewBuilder().
		WithImplementationTypesOf(counting(&implCount, Capability[greeter]())).
		WithSingletonTypesOf(counting(&singletonCount, Capability[greeter](), Capability[namer]())))

	g1 := MustResolve[greeter](reg)
	g2 := MustResolve[greeter](reg)
	n := MustResolve[namer](reg)
	concrete := MustResolve[*englishGreeter](reg)

	assert.Same(t, g1, g2)
	assert.Same(t, g1.(*englishGreeter), n.(*englishGreeter))
	assert.Same(t, g1.(*englishGreeter), concrete)
	assert.Equal(t, int64(0), implCount.Load())
	assert.Equal(t, int64(1), singletonCount.Load())

	for _, e := range reg.Entries() {
		if e.Key == "di.greeter" {
			assert.Equal(t, "singleton", e.Lifetime)
			assert.Equal(t, "singleton", e.Phase)
		}
	}
}

// TestBuild_ConcurrentFirstResolve tests that concurrent first resolutions
// construct exactly one singleton instance.
func TestBuild_ConcurrentFirstResolve(t *testing.T) {
	resetLocator(t)
	var count atomic.Int64

	slow := Describe(func(Resolver) (*englishGreeter, error) {
		time.Sleep(10 * time.Millisecond)
		return &englishGreeter{id: count.Add(1)}, nil
	}, Capability[greeter]())

	reg := build(t, NewBuilder().
		WithImplementationTypesOf(slow).
		WithSingletonTypesOf(slow))

	const workers = 64
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]greeter, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if i%2 == 0 {
				results[i], errs[i] = Resolve[greeter](reg)
				return
			}
			var g *englishGreeter
			g, errs[i] = Resolve[*englishGreeter](reg)
			results[i] = g
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), count.Load())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Same(t, results[0].(*englishGreeter), results[i].(*englishGreeter))
	}
}

// TestResolve_NotRegistered tests lookups of unknown keys.
func TestResolve_NotRegistered(t *testing.T) {
	resetLocator(t)
	reg := build(t, NewBuilder())

	_, err := Resolve[greeter](reg)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotRegistered(err))

	_, err = reg.Resolve(nil)
	assert.True(t, apperrors.IsInvalidArgument(err))

	assert.Panics(t, func() { MustResolve[namer](reg) })
}

// TestBuilder_ReplaceKeepsLastSet tests that a second call replaces the first set.
func TestBuilder_ReplaceKeepsLastSet(t *testing.T) {
	resetLocator(t)
	var count atomic.Int64

	reg := build(t, NewBuilder().
		WithImplementationTypesOf(counting(&count, Capability[greeter]())).
		WithImplementationTypesOf(counting(&count, Capability[namer]())))

	assert.False(t, reg.Has(Capability[greeter]()))
	assert.True(t, reg.Has(Capability[namer]()))
}

// TestBuild_ScannedTypes tests that scanned types resolve by their own type only.
func TestBuild_ScannedTypes(t *testing.T) {
	resetLocator(t)
	var count atomic.Int64

	reg := build(t, NewBuilder().WithAssemblyTypesOf(
		DescribeFunc(func() *plainHelper { return &plainHelper{n: count.Add(1)} }),
		DescribeFunc(func() frenchGreeter { return frenchGreeter{} }, Capability[greeter]()),
	))

	h1, err := Resolve[*plainHelper](reg)
	require.NoError(t, err)
	h2, err := Resolve[*plainHelper](reg)
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)

	fg, err := Resolve[frenchGreeter](reg)
	require.NoError(t, err)
	assert.Equal(t, "bonjour", fg.Greet())
	assert.False(t, reg.Has(Capability[greeter]()), "scanned types are not bound to capabilities")
}

// TestBuild_InvalidDescriptor tests that registration errors abort the build.
func TestBuild_InvalidDescriptor(t *testing.T) {
	valid := func(Resolver) (any, error) { return &englishGreeter{}, nil }

	tests := []struct {
		name       string
		descriptor TypeDescriptor
		set        Phase
	}{
		{
			name:       "nil constructor",
			descriptor: Describe[*englishGreeter](nil, Capability[greeter]()),
			set:        PhaseImplementation,
		},
		{
			name:       "nil concrete type",
			descriptor: NewDescriptor(nil, valid),
			set:        PhaseScanned,
		},
		{
			name:       "interface concrete type",
			descriptor: NewDescriptor(Capability[greeter](), valid),
			set:        PhaseScanned,
		},
		{
			name:       "capability is not an interface",
			descriptor: NewDescriptor(reflect.TypeOf((**englishGreeter)(nil)).Elem(), valid, reflect.TypeOf((*plainHelper)(nil)).Elem()),
			set:        PhaseSingleton,
		},
		{
			name:       "capability not implemented",
			descriptor: DescribeFunc(func() *plainHelper { return &plainHelper{} }, Capability[greeter]()),
			set:        PhaseImplementation,
		},
		{
			name:       "nil capability",
			descriptor: NewDescriptor(reflect.TypeOf((**englishGreeter)(nil)).Elem(), valid, nil),
			set:        PhaseSingleton,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLocator(t)
			previous := build(t, NewBuilder())

			core, logs := observer.New(zapcore.ErrorLevel)
			b := withSet(NewBuilder(WithLogger(zap.New(core))), tt.set, tt.descriptor)

			reg, err := b.Build(context.Background())
			assert.Nil(t, reg)
			require.Error(t, err)
			assert.True(t, apperrors.IsRegistrationFailure(err))
			assert.Equal(t, 1, logs.FilterMessage("Registry build failed").Len())

			published, ok := Current()
			require.True(t, ok)
			assert.Same(t, previous, published, "failed build must not replace the locator")
		})
	}
}

func withSet(b *Builder, phase Phase, d TypeDescriptor) *Builder {
	switch phase {
	case PhaseScanned:
		return b.WithAssemblyTypesOf(d)
	case PhaseImplementation:
		return b.WithImplementationTypesOf(d)
	default:
		return b.WithSingletonTypesOf(d)
	}
}

// TestBuild_ShadowingIsLogged tests that replaced registrations are logged at debug.
func TestBuild_ShadowingIsLogged(t *testing.T) {
	resetLocator(t)
	var count atomic.Int64
	core, logs := observer.New(zapcore.DebugLevel)

	reg := build(t, NewBuilder(WithLogger(zap.New(core))).
		WithAssemblyTypesOf(counting(&count)).
		WithImplementationTypesOf(
			counting(&count, Capability[greeter]()),
			DescribeFunc(func() frenchGreeter { return frenchGreeter{} }, Capability[greeter]()),
		).
		WithSingletonTypesOf(counting(&count, Capability[namer]())))

	g, err := Resolve[greeter](reg)
	require.NoError(t, err)
	assert.Equal(t, "bonjour", g.Greet(), "later descriptor in a phase wins")

	shadowed := logs.FilterMessage("Registration shadowed").All()
	require.Len(t, shadowed, 2)
	assert.Equal(t, "implementation", shadowed[0].ContextMap()["previous_phase"])
	assert.Equal(t, "scanned", shadowed[1].ContextMap()["previous_phase"])
	assert.Equal(t, "singleton", shadowed[1].ContextMap()["replacement_phase"])
}

// TestBuild_WithLogging tests the logging infrastructure phase.
func TestBuild_WithLogging(t *testing.T) {
	resetLocator(t)
	core, logs := observer.New(zapcore.InfoLevel)

	reg := build(t, NewBuilder(WithLogger(zap.New(core))).WithLogging())

	f1, err := Resolve[observability.LoggerFactory](reg)
	require.NoError(t, err)
	f2, err := Resolve[observability.LoggerFactory](reg)
	require.NoError(t, err)
	assert.Same(t, f1, f2)

	l1, err := LoggerFor[plainHelper](reg)
	require.NoError(t, err)
	l2, err := LoggerFor[plainHelper](reg)
	require.NoError(t, err)
	other, err := LoggerFor[englishGreeter](reg)
	require.NoError(t, err)

	assert.Same(t, l1, l2, "one logger per consumer type")
	assert.NotSame(t, l1, other)

	l1.Info("from helper")
	entries := logs.FilterMessage("from helper").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "di_plainHelper", entries[0].LoggerName)

	assert.True(t, reg.Has(LoggerCapability))
	var param bool
	for _, e := range reg.Entries() {
		if e.Key == LoggerCapability.String() {
			param = e.Parameterized
			assert.Equal(t, "infrastructure", e.Phase)
		}
	}
	assert.True(t, param)

	_, err = reg.ResolveFor(LoggerCapability, nil)
	assert.True(t, apperrors.IsInvalidArgument(err))
}

// TestBuild_WithoutLogging tests that logging keys are absent unless requested.
func TestBuild_WithoutLogging(t *testing.T) {
	resetLocator(t)
	reg := build(t, NewBuilder())

	_, err := Resolve[observability.LoggerFactory](reg)
	assert.True(t, apperrors.IsNotRegistered(err))
	_, err = LoggerFor[plainHelper](reg)
	assert.True(t, apperrors.IsNotRegistered(err))
}

type nodeA struct{ b *nodeB }
type nodeB struct{ a *nodeA }

// TestResolve_Cycle tests that a constructor cycle fails instead of deadlocking.
func TestResolve_Cycle(t *testing.T) {
	resetLocator(t)

	a := Describe(func(r Resolver) (*nodeA, error) {
		b, err := Resolve[*nodeB](r)
		if err != nil {
			return nil, err
		}
		return &nodeA{b: b}, nil
	})
	b := Describe(func(r Resolver) (*nodeB, error) {
		a, err := Resolve[*nodeA](r)
		if err != nil {
			return nil, err
		}
		return &nodeB{a: a}, nil
	})

	t.Run("transient", func(t *testing.T) {
		reg := build(t, NewBuilder().WithAssemblyTypesOf(a, b))
		_, err := Resolve[*nodeA](reg)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeResolutionCycle))
		assert.Contains(t, err.Error(), "*di.nodeA -> *di.nodeB -> *di.nodeA")
	})

	t.Run("singleton through another key", func(t *testing.T) {
		self := Describe(func(r Resolver) (*englishGreeter, error) {
			if _, err := Resolve[*englishGreeter](r); err != nil {
				return nil, err
			}
			return &englishGreeter{}, nil
		}, Capability[greeter]())

		reg := build(t, NewBuilder().WithSingletonTypesOf(self))

		done := make(chan error, 1)
		go func() {
			_, err := Resolve[greeter](reg)
			done <- err
		}()
		select {
		case err := <-done:
			assert.True(t, apperrors.HasCode(err, apperrors.CodeResolutionCycle))
		case <-time.After(5 * time.Second):
			t.Fatal("singleton cycle deadlocked")
		}
	})

	t.Run("singletons built on different goroutines", func(t *testing.T) {
		// both constructors start before either resolves its collaborator
		var arrivals atomic.Int32
		both := make(chan struct{})
		arrive := func() {
			if arrivals.Add(1) == 2 {
				close(both)
			}
			<-both
		}

		sa := Describe(func(r Resolver) (*nodeA, error) {
			arrive()
			b, err := Resolve[*nodeB](r)
			if err != nil {
				return nil, err
			}
			return &nodeA{b: b}, nil
		})
		sb := Describe(func(r Resolver) (*nodeB, error) {
			arrive()
			a, err := Resolve[*nodeA](r)
			if err != nil {
				return nil, err
			}
			return &nodeB{a: a}, nil
		})

		reg := build(t, NewBuilder().WithSingletonTypesOf(sa, sb))

		errs := make(chan error, 2)
		go func() {
			_, err := Resolve[*nodeA](reg)
			errs <- err
		}()
		go func() {
			_, err := Resolve[*nodeB](reg)
			errs <- err
		}()

		for i := 0; i < 2; i++ {
			select {
			case err := <-errs:
				assert.True(t, apperrors.HasCode(err, apperrors.CodeResolutionCycle), "got %v", err)
			case <-time.After(5 * time.Second):
				t.Fatal("concurrent singleton cycle deadlocked")
			}
		}
	})
}

// TestResolve_DependencyChain tests constructors resolving collaborators.
func TestResolve_DependencyChain(t *testing.T) {
	resetLocator(t)
	var count atomic.Int64

	type consumer struct{ g greeter }
	reg := build(t, NewBuilder().
		WithAssemblyTypesOf(Describe(func(r Resolver) (*consumer, error) {
			g, err := Resolve[greeter](r)
			if err != nil {
				return nil, err
			}
			return &consumer{g: g}, nil
		})).
		WithSingletonTypesOf(counting(&count, Capability[greeter]())))

	c1 := MustResolve[*consumer](reg)
	c2 := MustResolve[*consumer](reg)
	assert.NotSame(t, c1, c2)
	assert.Same(t, c1.g, c2.g)
	assert.Equal(t, int64(1), count.Load())
}

// TestResolve_ConstructionFailure tests that failures are reported and not cached.
func TestResolve_ConstructionFailure(t *testing.T) {
	resetLocator(t)
	var attempts atomic.Int64

	flaky := Describe(func(Resolver) (*englishGreeter, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("not yet")
		}
		return &englishGreeter{}, nil
	}, Capability[greeter]())
	panicky := DescribeFunc(func() *plainHelper { panic("boom") })
	nilReturning := NewDescriptor(reflect.TypeOf((**nodeA)(nil)).Elem(), func(Resolver) (any, error) { return nil, nil })

	reg := build(t, NewBuilder().
		WithAssemblyTypesOf(panicky, nilReturning).
		WithSingletonTypesOf(flaky))

	_, err := Resolve[greeter](reg)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConstructionFailed))
	assert.Contains(t, err.Error(), "not yet")

	g1, err := Resolve[greeter](reg)
	require.NoError(t, err)
	g2, err := Resolve[greeter](reg)
	require.NoError(t, err)
	assert.Same(t, g1, g2)
	assert.Equal(t, int64(2), attempts.Load())

	_, err = Resolve[*plainHelper](reg)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConstructionFailed))
	assert.Contains(t, err.Error(), "boom")

	_, err = Resolve[*nodeA](reg)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConstructionFailed))
}

// TestPublish tests the process-wide locator.
func TestPublish(t *testing.T) {
	resetLocator(t)

	_, ok := Current()
	assert.False(t, ok)
	assert.Panics(t, func() { MustCurrent() })

	unpublished := build(t, NewBuilder(WithoutPublish()))
	_, ok = Current()
	assert.False(t, ok)

	first := build(t, NewBuilder())
	assert.Same(t, first, MustCurrent())

	second := build(t, NewBuilder())
	assert.Same(t, second, MustCurrent())
	assert.NotEqual(t, first.ID(), second.ID())

	unpublished.Publish()
	assert.Same(t, unpublished, MustCurrent())
}

// TestBuild_EngineAndEntryCatalogs tests the types every build registers.
func TestBuild_EngineAndEntryCatalogs(t *testing.T) {
	resetLocator(t)
	RegisterEntryTypes(DescribeFunc(func() *plainHelper { return &plainHelper{n: 7} }))

	reg := build(t, NewBuilder())

	self, err := Resolve[*Registry](reg)
	require.NoError(t, err)
	assert.Same(t, reg, self)

	h, err := Resolve[*plainHelper](reg)
	require.NoError(t, err)
	assert.Equal(t, int64(7), h.n)
}

// TestRegistry_Metadata tests identity and entry listing.
func TestRegistry_Metadata(t *testing.T) {
	resetLocator(t)
	var count atomic.Int64

	reg := build(t, NewBuilder().
		WithImplementationTypesOf(counting(&count, Capability[namer]())).
		WithSingletonTypesOf(counting(&count, Capability[greeter]())).
		WithLogging())

	_, err := uuid.Parse(reg.ID())
	assert.NoError(t, err)
	assert.False(t, reg.CreatedAt().IsZero())

	entries := reg.Entries()
	assert.Len(t, entries, reg.Len())
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "*di.englishGreeter")
	assert.Contains(t, keys, "*di.Registry")
	assert.Contains(t, keys, "observability.LoggerFactory")
}

// TestRegistry_Metrics tests that builds and resolutions are recorded.
func TestRegistry_Metrics(t *testing.T) {
	resetLocator(t)
	var count atomic.Int64
	collector := observability.NewCollector("test")

	reg := build(t, NewBuilder(WithCollector(collector)).
		WithSingletonTypesOf(counting(&count, Capability[greeter]())))

	for i := 0; i < 3; i++ {
		_, err := Resolve[greeter](reg)
		require.NoError(t, err)
	}
	_, _ = Resolve[namer](reg)

	assert.Equal(t, float64(reg.Len()), testutil.ToFloat64(collector.RegistryEntries))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.Resolutions.WithLabelValues("di.greeter", "singleton", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Resolutions.WithLabelValues("di.namer", "none", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.SingletonConstructions.WithLabelValues("di.greeter")))

	_, err := NewBuilder(WithCollector(collector)).
		WithSingletonTypesOf(NewDescriptor(nil, nil)).
		Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.BuildFailures))
}

func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// TestBuild_Span tests the di.Build span for successful and failed builds.
func TestBuild_Span(t *testing.T) {
	resetLocator(t)
	exporter := recordSpans(t)

	var count atomic.Int64
	reg := build(t, NewBuilder(WithoutPublish()).
		WithSingletonTypesOf(counting(&count, Capability[greeter]())))

	_, err := NewBuilder(WithoutPublish()).
		WithImplementationTypesOf(DescribeFunc(func() frenchGreeter { return frenchGreeter{} }, Capability[namer]())).
		Build(context.Background())
	require.True(t, apperrors.IsRegistrationFailure(err))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	ok, failed := spans[0], spans[1]
	assert.Equal(t, "di.Build", ok.Name)
	assert.Equal(t, codes.Ok, ok.Status.Code)
	assert.Contains(t, ok.Attributes, attribute.Int("di.singleton", 1))
	assert.Contains(t, ok.Attributes, attribute.String("di.registry_id", reg.ID()))

	assert.Equal(t, "di.Build", failed.Name)
	assert.Equal(t, codes.Error, failed.Status.Code)
	assert.Equal(t, err.Error(), failed.Status.Description)
	require.NotEmpty(t, failed.Events)
	assert.Equal(t, "exception", failed.Events[0].Name)
}
