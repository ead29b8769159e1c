package metadata

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/conduit-lang/objectmodel/runtime/object"
)

// DefaultIntrospector is the introspector used by the global registry.
var DefaultIntrospector TypeIntrospector = NewReflectIntrospector()

// Registry caches one RoleCatalog per node type. Entries are weak: a catalog
// is dropped once no list, binder or listener references it, and is rebuilt
// on the next lookup.
type Registry struct {
	mu           sync.RWMutex
	introspector TypeIntrospector
	entries      map[reflect.Type]weak.Pointer[RoleCatalog]

	// Serialises builds so a catalog is only published once complete
	buildMutex sync.Mutex

	builds atomic.Int64
}

// Global registry instance
var globalRegistry = NewRegistry(nil)

// NewRegistry creates a registry using introspector, or DefaultIntrospector when nil.
func NewRegistry(introspector TypeIntrospector) *Registry {
	if introspector == nil {
		introspector = DefaultIntrospector
	}
	return &Registry{
		introspector: introspector,
		entries:      make(map[reflect.Type]weak.Pointer[RoleCatalog]),
	}
}

// Lookup returns the shared catalog of t from the global registry.
func Lookup(t reflect.Type) (*RoleCatalog, error) {
	return globalRegistry.Lookup(t)
}

// LookupObject returns the shared catalog of obj's type from the global registry.
func LookupObject(obj object.Object) (*RoleCatalog, error) {
	if object.IsNil(obj) {
		return nil, fmt.Errorf("%w: nil object", ErrNotObject)
	}
	return globalRegistry.Lookup(reflect.TypeOf(obj))
}

// TypeOf returns the node pointer type of T, for example TypeOf[*Coord]().
func TypeOf[T object.Object]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Lookup returns the cached catalog of t, building it on first use.
// Uses double-check locking: the fast path only takes the read lock.
func (r *Registry) Lookup(t reflect.Type) (*RoleCatalog, error) {
	// Fast path: live entry
	if c := r.load(t); c != nil {
		return c, nil
	}

	// Slow path: build under the build lock, re-checking first
	r.buildMutex.Lock()
	defer r.buildMutex.Unlock()
	if c := r.load(t); c != nil {
		return c, nil
	}

	c, err := Build(t, r.introspector)
	if err != nil {
		return nil, err
	}
	r.builds.Add(1)

	wp := weak.Make(c)
	r.mu.Lock()
	r.entries[t] = wp
	r.mu.Unlock()

	runtime.AddCleanup(c, r.evict, t)
	return c, nil
}

func (r *Registry) load(t reflect.Type) *RoleCatalog {
	r.mu.RLock()
	wp, ok := r.entries[t]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return wp.Value()
}

// evict removes the entry for t when its catalog has been collected.
func (r *Registry) evict(t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wp, ok := r.entries[t]; ok && wp.Value() == nil {
		delete(r.entries, t)
	}
}

// Len returns the number of cached entries, collected or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Builds returns how many catalogs the registry has built.
func (r *Registry) Builds() int64 {
	return r.builds.Load()
}

// Reset clears the registry (used for testing).
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[reflect.Type]weak.Pointer[RoleCatalog])
}
