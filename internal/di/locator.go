package di

import (
	"sync"
	"sync/atomic"

	apperrors "bootstrap-core/internal/errors"
)

// current is the process-wide locator. Readers see either the previous registry
// or the fully built new one.
var current atomic.Pointer[Registry]

// Publish installs r as the current locator, replacing any previous one.
func (r *Registry) Publish() {
	current.Store(r)
}

// Current returns the published registry, if any.
func Current() (*Registry, bool) {
	r := current.Load()
	return r, r != nil
}

// MustCurrent returns the published registry and panics when none is published.
func MustCurrent() *Registry {
	r, ok := Current()
	if !ok {
		panic(apperrors.Internal(apperrors.CodeNoLocator, "no registry has been published").
			WithOperation("di.MustCurrent").
			Build())
	}
	return r
}

var (
	entryMu    sync.Mutex
	entryTypes TypeSet
)

// RegisterEntryTypes adds descriptors contributed by the hosting binary. They are
// registered by every later build in the scanned phase. Call it from package main
// before building.
func RegisterEntryTypes(descriptors ...TypeDescriptor) {
	entryMu.Lock()
	defer entryMu.Unlock()
	entryTypes = append(entryTypes, descriptors...)
}

func entryCatalog() TypeSet {
	entryMu.Lock()
	defer entryMu.Unlock()
	return append(TypeSet(nil), entryTypes...)
}

func resetEntryTypes() {
	entryMu.Lock()
	defer entryMu.Unlock()
	entryTypes = nil
}
