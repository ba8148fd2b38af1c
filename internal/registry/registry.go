package registry

import (
	"fmt"
	"sync"
)

// Constructor is any Go function value a component path may name. The
// instantiator decides its actual calling shape by reflection (spec
// §4.5: "locate(path) → callable" is opaque to the engine).
type Constructor = any

// Registry is a dotted-path component locator, keeping the teacher's
// "register once at startup, panic on duplicate" registration shape
// but with a single flat namespace instead of separate runner/asset
// tables — the directive contract has only one kind of target.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Constructor
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{funcs: make(map[string]Constructor)}
}

// Register binds name to fn. Re-registering an existing name is a
// startup-time program error, not a runtime one, so it panics.
func (r *Registry) Register(name string, fn Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		panic(fmt.Sprintf("registry: component %q already registered", name))
	}
	r.funcs[name] = fn
}

// Lookup returns the constructor bound to name, if any.
func (r *Registry) Lookup(name string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}
