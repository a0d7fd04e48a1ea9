package di

import (
	"fmt"
	"reflect"
	"strings"

	apperrors "bootstrap-core/internal/errors"
)

// Lifetime tells the registry how often an entry's constructor runs.
type Lifetime int

const (
	// Transient entries construct a new instance on every resolution.
	Transient Lifetime = iota
	// Singleton entries construct once per registry and reuse the instance.
	Singleton
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "transient"
	case Singleton:
		return "singleton"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// Constructor builds one instance. The Resolver is bound to the resolution in
// progress, so collaborators resolved through it take part in cycle detection.
type Constructor func(r Resolver) (any, error)

// TypeDescriptor is one registrable unit: a concrete type, the capabilities it
// is exposed under and the function that builds it. Descriptors are values and
// are never modified after creation.
type TypeDescriptor struct {
	concrete     reflect.Type
	capabilities []reflect.Type
	construct    Constructor
}

// Capability returns the lookup key for interface I.
func Capability[I any]() reflect.Type {
	return reflect.TypeOf((*I)(nil)).Elem()
}

// NewDescriptor describes concrete with an untyped constructor. Prefer Describe
// and DescribeFunc; NewDescriptor exists for tables built from reflect.Type values.
func NewDescriptor(concrete reflect.Type, construct Constructor, capabilities ...reflect.Type) TypeDescriptor {
	return TypeDescriptor{
		concrete:     concrete,
		capabilities: append([]reflect.Type(nil), capabilities...),
		construct:    construct,
	}
}

// Describe describes T, built by ctor and exposed under capabilities.
func Describe[T any](ctor func(Resolver) (T, error), capabilities ...reflect.Type) TypeDescriptor {
	var construct Constructor
	if ctor != nil {
		construct = func(r Resolver) (any, error) {
			v, err := ctor(r)
			if err != nil {
				return nil, err
			}
			return v, nil
		}
	}
	return NewDescriptor(reflect.TypeOf((*T)(nil)).Elem(), construct, capabilities...)
}

// DescribeFunc describes T built by a constructor that needs no collaborators.
func DescribeFunc[T any](fn func() T, capabilities ...reflect.Type) TypeDescriptor {
	if fn == nil {
		return NewDescriptor(reflect.TypeOf((*T)(nil)).Elem(), nil, capabilities...)
	}
	return Describe(func(Resolver) (T, error) { return fn(), nil }, capabilities...)
}

// Concrete returns the implementation type.
func (d TypeDescriptor) Concrete() reflect.Type { return d.concrete }

// Capabilities returns a copy of the declared capabilities.
func (d TypeDescriptor) Capabilities() []reflect.Type {
	return append([]reflect.Type(nil), d.capabilities...)
}

func (d TypeDescriptor) String() string {
	name := "<nil>"
	if d.concrete != nil {
		name = d.concrete.String()
	}
	if len(d.capabilities) == 0 {
		return name
	}
	caps := make([]string, len(d.capabilities))
	for i, c := range d.capabilities {
		caps[i] = typeString(c)
	}
	return name + " as " + strings.Join(caps, ", ")
}

// validate checks that the descriptor can be registered. checkCapabilities is
// false in the scan phase, which ignores capabilities.
func (d TypeDescriptor) validate(checkCapabilities bool) error {
	switch {
	case d.concrete == nil:
		return fmt.Errorf("descriptor has no concrete type")
	case d.concrete.Kind() == reflect.Interface:
		return fmt.Errorf("concrete type %s is an interface", d.concrete)
	case d.construct == nil:
		return fmt.Errorf("descriptor for %s has no constructor", d.concrete)
	}
	if !checkCapabilities {
		return nil
	}
	for _, c := range d.capabilities {
		switch {
		case c == nil:
			return fmt.Errorf("descriptor for %s declares a nil capability", d.concrete)
		case c.Kind() != reflect.Interface:
			return fmt.Errorf("capability %s of %s is not an interface", c, d.concrete)
		case !d.concrete.Implements(c):
			return fmt.Errorf("%s does not implement %s", d.concrete, c)
		}
	}
	return nil
}

// TypeSet is an ordered list of descriptors. Duplicates are allowed; a later
// descriptor shadows an earlier one registered under the same key.
//
// A nil TypeSet is not the same as an empty one: the builder rejects nil.
type TypeSet []TypeDescriptor

// NewTypeSet returns a non-nil set holding descriptors in order.
func NewTypeSet(descriptors ...TypeDescriptor) TypeSet {
	return append(TypeSet{}, descriptors...)
}

// Append returns a new set with descriptors added at the end.
func (s TypeSet) Append(descriptors ...TypeDescriptor) TypeSet {
	out := make(TypeSet, 0, len(s)+len(descriptors))
	out = append(out, s...)
	return append(out, descriptors...)
}

// Catalog is a package's statically declared registration table.
type Catalog struct {
	Name            string
	Scanned         TypeSet
	Implementations TypeSet
	Singletons      TypeSet
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func registrationError(phase Phase, d TypeDescriptor, cause error) error {
	return apperrors.RegistrationFailure("failed to register type").
		WithOperation("di.Build").
		WithResource(d.String()).
		WithDetailsf("%s phase", phase).
		WithCause(cause).
		Build()
}
