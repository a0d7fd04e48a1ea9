package di

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "bootstrap-core/internal/errors"
	"bootstrap-core/internal/infrastructure/observability"
)

// Resolver looks up instances by key. *Registry implements it, and constructors
// receive one bound to the resolution in progress.
type Resolver interface {
	// Resolve returns an instance registered under key.
	Resolve(key reflect.Type) (any, error)
	// ResolveFor returns the instance of a parameterized capability for param.
	ResolveFor(capability, param reflect.Type) (any, error)
}

// Phase is the registration phase that produced an entry.
type Phase int

const (
	// PhaseScanned registers scanned and catalog types under their concrete type.
	PhaseScanned Phase = iota + 1
	// PhaseImplementation registers transient entries under declared capabilities.
	PhaseImplementation
	// PhaseSingleton registers shared instances under capabilities and concrete type.
	PhaseSingleton
	// PhaseInfrastructure registers the logger factory and per-type loggers.
	PhaseInfrastructure
)

func (p Phase) String() string {
	switch p {
	case PhaseScanned:
		return "scanned"
	case PhaseImplementation:
		return "implementation"
	case PhaseSingleton:
		return "singleton"
	case PhaseInfrastructure:
		return "infrastructure"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// singletonCell holds one lazily built instance. Every key a singleton
// descriptor is registered under points at the same cell.
type singletonCell struct {
	done     atomic.Bool
	instance any

	// guarded by waitMu
	owner   *resolveOwner
	settled chan struct{}
}

// resolveOwner identifies one top-level resolution and every nested resolution
// it performs on the same goroutine.
type resolveOwner struct {
	// guarded by waitMu
	waitingOn *singletonCell
}

// waitMu guards cell ownership and the wait-for edges between owners, so that two
// goroutines building singletons that depend on each other fail with a cycle
// instead of waiting forever.
var waitMu sync.Mutex

var errWaitCycle = errors.New("singleton is being built by a resolution that waits on this one")

// get returns the cached instance, building it on first use. Only one owner
// builds at a time; other owners wait for it to settle. A failed build is not
// cached. built reports whether this call constructed it.
func (c *singletonCell) get(owner *resolveOwner, build func() (any, error)) (instance any, built bool, err error) {
	for {
		if c.done.Load() {
			return c.instance, false, nil
		}

		waitMu.Lock()
		if c.done.Load() {
			waitMu.Unlock()
			return c.instance, false, nil
		}

		if c.owner == nil {
			c.owner = owner
			c.settled = make(chan struct{})
			waitMu.Unlock()
			return c.build(build)
		}

		if c.waitsOn(owner) {
			waitMu.Unlock()
			return nil, false, errWaitCycle
		}
		owner.waitingOn = c
		settled := c.settled
		waitMu.Unlock()

		<-settled

		waitMu.Lock()
		owner.waitingOn = nil
		waitMu.Unlock()
	}
}

func (c *singletonCell) build(build func() (any, error)) (instance any, built bool, err error) {
	defer func() {
		waitMu.Lock()
		c.owner = nil
		close(c.settled)
		waitMu.Unlock()
	}()

	v, err := build()
	if err != nil {
		return nil, false, err
	}
	c.instance = v
	c.done.Store(true)
	return v, true, nil
}

// waitsOn reports whether the owner building c is, directly or through other
// owners, waiting on a cell that owner is building. Callers hold waitMu.
func (c *singletonCell) waitsOn(owner *resolveOwner) bool {
	for o := c.owner; o != nil; {
		if o == owner {
			return true
		}
		next := o.waitingOn
		if next == nil {
			return false
		}
		o = next.owner
	}
	return false
}

type entry struct {
	key        reflect.Type
	descriptor TypeDescriptor
	lifetime   Lifetime
	phase      Phase
	cell       *singletonCell
}

// identity is what the cycle check compares: the shared cell for singletons,
// the entry itself for transients.
func (e *entry) identity() any {
	if e.cell != nil {
		return e.cell
	}
	return e
}

// ParamConstructor builds the instance of a parameterized capability for param.
type ParamConstructor func(r Resolver, param reflect.Type) (any, error)

// paramEntry is a capability whose instance depends on a type parameter. Each
// parameter gets its own singleton cell.
type paramEntry struct {
	key       reflect.Type
	concrete  reflect.Type
	construct ParamConstructor
	phase     Phase
	cells     sync.Map // reflect.Type -> *singletonCell
}

func (p *paramEntry) cellFor(param reflect.Type) *singletonCell {
	if c, ok := p.cells.Load(param); ok {
		return c.(*singletonCell)
	}
	c, _ := p.cells.LoadOrStore(param, &singletonCell{})
	return c.(*singletonCell)
}

// EntryInfo describes one registry key.
type EntryInfo struct {
	Key           string `json:"key"`
	Concrete      string `json:"concrete"`
	Lifetime      string `json:"lifetime"`
	Phase         string `json:"phase"`
	Parameterized bool   `json:"parameterized,omitempty"`
}

// Registry is the immutable result of a build. Lookups never change after
// construction; only singleton cells are filled in lazily.
type Registry struct {
	id        string
	createdAt time.Time
	entries   map[reflect.Type]*entry
	params    map[reflect.Type]*paramEntry
	logger    *zap.Logger
	collector *observability.Collector
}

var _ Resolver = (*Registry)(nil)

func newRegistry(state *registrationState, logger *zap.Logger, collector *observability.Collector) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		entries:   state.entries,
		params:    state.params,
		logger:    logger,
		collector: collector,
	}
}

// ID returns the registry's unique identity.
func (r *Registry) ID() string { return r.id }

// CreatedAt returns when the registry was built.
func (r *Registry) CreatedAt() time.Time { return r.createdAt }

// Len returns the number of keys, parameterized capabilities included.
func (r *Registry) Len() int { return len(r.entries) + len(r.params) }

// Has reports whether key is registered, directly or as a parameterized capability.
func (r *Registry) Has(key reflect.Type) bool {
	if _, ok := r.entries[key]; ok {
		return true
	}
	_, ok := r.params[key]
	return ok
}

// Entries lists every key sorted by name.
func (r *Registry) Entries() []EntryInfo {
	out := make([]EntryInfo, 0, r.Len())
	for key, e := range r.entries {
		out = append(out, EntryInfo{
			Key:      key.String(),
			Concrete: typeString(e.descriptor.concrete),
			Lifetime: e.lifetime.String(),
			Phase:    e.phase.String(),
		})
	}
	for key, p := range r.params {
		out = append(out, EntryInfo{
			Key:           key.String(),
			Concrete:      typeString(p.concrete),
			Lifetime:      Singleton.String(),
			Phase:         p.phase.String(),
			Parameterized: true,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Resolve returns the instance registered under key.
func (r *Registry) Resolve(key reflect.Type) (any, error) {
	return r.newResolution().Resolve(key)
}

// ResolveFor returns the instance of the parameterized capability for param.
func (r *Registry) ResolveFor(capability, param reflect.Type) (any, error) {
	return r.newResolution().ResolveFor(capability, param)
}

func (r *Registry) newResolution() *resolution {
	return &resolution{registry: r, owner: &resolveOwner{}}
}

type frame struct {
	key reflect.Type
	id  any
}

// resolution is a Resolver bound to the chain of entries being constructed.
type resolution struct {
	registry *Registry
	owner    *resolveOwner
	path     []frame
}

func (res *resolution) Resolve(key reflect.Type) (any, error) {
	r := res.registry
	if key == nil {
		return nil, apperrors.InvalidArgument("resolve key is required").
			WithOperation("di.Resolve").
			Build()
	}

	e, ok := r.entries[key]
	if !ok {
		err := notRegistered(key)
		r.collector.RecordResolve(key.String(), "none", err)
		return nil, err
	}

	instance, err := res.resolveEntry(e)
	r.collector.RecordResolve(key.String(), e.lifetime.String(), err)
	return instance, err
}

func (res *resolution) resolveEntry(e *entry) (any, error) {
	child, err := res.enter(e.key, e.identity())
	if err != nil {
		return nil, err
	}

	build := func() (any, error) {
		return construct(e.key, func() (any, error) { return e.descriptor.construct(child) })
	}

	if e.lifetime == Transient {
		return build()
	}

	instance, built, err := e.cell.get(res.owner, build)
	if errors.Is(err, errWaitCycle) {
		return nil, res.cycleError(e.key)
	}
	if built {
		res.registry.collector.RecordSingletonConstruction(e.key.String())
		res.registry.logger.Debug("Singleton constructed",
			zap.String("key", e.key.String()),
			zap.String("concrete", typeString(e.descriptor.concrete)),
		)
	}
	return instance, err
}

func (res *resolution) ResolveFor(capability, param reflect.Type) (any, error) {
	r := res.registry
	if capability == nil || param == nil {
		return nil, apperrors.InvalidArgument("capability and parameter are required").
			WithOperation("di.ResolveFor").
			Build()
	}

	p, ok := r.params[capability]
	if !ok {
		err := notRegistered(capability)
		r.collector.RecordResolve(capability.String(), "none", err)
		return nil, err
	}

	cell := p.cellFor(param)
	child, err := res.enter(capability, cell)
	if err != nil {
		return nil, err
	}

	instance, built, err := cell.get(res.owner, func() (any, error) {
		return construct(capability, func() (any, error) { return p.construct(child, param) })
	})
	if errors.Is(err, errWaitCycle) {
		err = res.cycleError(capability)
	}
	if built {
		r.collector.RecordSingletonConstruction(capability.String())
	}
	r.collector.RecordResolve(capability.String(), Singleton.String(), err)
	return instance, err
}

// enter returns the resolution for constructing id, or a cycle error when id is
// already being constructed further up the chain.
func (res *resolution) enter(key reflect.Type, id any) (*resolution, error) {
	for _, f := range res.path {
		if f.id == id {
			return nil, res.cycleError(key)
		}
	}
	path := make([]frame, len(res.path), len(res.path)+1)
	copy(path, res.path)
	return &resolution{registry: res.registry, owner: res.owner, path: append(path, frame{key: key, id: id})}, nil
}

func (res *resolution) cycleError(key reflect.Type) error {
	names := make([]string, 0, len(res.path)+1)
	for _, f := range res.path {
		names = append(names, f.key.String())
	}
	names = append(names, key.String())
	return apperrors.Internal(apperrors.CodeResolutionCycle, "resolution cycle detected").
		WithOperation("di.Resolve").
		WithResource(key.String()).
		WithDetails(strings.Join(names, " -> ")).
		Build()
}

// construct runs fn, turning panics, plain errors and nil instances into
// construction errors. Errors that are already classified pass through.
func construct(key reflect.Type, fn func() (any, error)) (instance any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			instance = nil
			err = constructionError(key, fmt.Errorf("constructor panicked: %v", rec))
		}
	}()

	instance, err = fn()
	if err != nil {
		var unified *apperrors.UnifiedError
		if errors.As(err, &unified) {
			return nil, err
		}
		return nil, constructionError(key, err)
	}
	if instance == nil {
		return nil, constructionError(key, fmt.Errorf("constructor returned nil"))
	}
	return instance, nil
}

func constructionError(key reflect.Type, cause error) error {
	return apperrors.Internal(apperrors.CodeConstructionFailed, "failed to construct instance").
		WithOperation("di.Resolve").
		WithResource(key.String()).
		WithCause(cause).
		Build()
}

func notRegistered(key reflect.Type) error {
	return apperrors.NotRegistered("no registration for key").
		WithOperation("di.Resolve").
		WithResource(key.String()).
		Build()
}

// ============================================================================
// TYPED HELPERS
// ============================================================================

// Resolve resolves T from r by T's own type.
func Resolve[T any](r Resolver) (T, error) {
	var zero T
	key := reflect.TypeOf((*T)(nil)).Elem()
	v, err := r.Resolve(key)
	if err != nil {
		return zero, err
	}
	return assertInstance[T](key, v)
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](r Resolver) T {
	v, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return v
}

// LoggerFor returns the logger registered for consumer type T. The registry must
// have been built with WithLogging.
func LoggerFor[T any](r Resolver) (*zap.Logger, error) {
	v, err := r.ResolveFor(LoggerCapability, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	return assertInstance[*zap.Logger](LoggerCapability, v)
}

func assertInstance[T any](key reflect.Type, v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, apperrors.Internal(apperrors.CodeConstructionFailed, "resolved instance has unexpected type").
			WithOperation("di.Resolve").
			WithResource(key.String()).
			WithDetailsf("got %T", v).
			Build()
	}
	return t, nil
}
