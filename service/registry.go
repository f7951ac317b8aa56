package service

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a new service receiver. The receiver must be a pointer to a
// struct whose exported methods have the shape Method(*Args, *Reply) error.
type Factory func() any

type entry struct {
	name    string
	factory Factory
}

// Registry maps codes to factories. Every Resolve mints a fresh instance;
// nothing is cached between calls.
type Registry struct {
	mu      sync.RWMutex
	entries map[Code]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[Code]entry)}
}

// DefaultRegistry serves Compute and a SecurityCenter keyed with key.
func DefaultRegistry(key byte) *Registry {
	r := NewRegistry()
	r.MustRegister(Compute, "Compute", func() any { return &ComputeImpl{} })
	r.MustRegister(SecurityCenter, "SecurityCenter", func() any { return &SecurityCenterImpl{Key: key} })
	return r
}

// Register adds a factory under code. Codes and names must be unique.
func (r *Registry) Register(code Code, name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("service: code %d needs a name and a factory", code)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[code]; ok {
		return fmt.Errorf("service: code %d already registered as %s", code, existing.name)
	}
	for c, e := range r.entries {
		if e.name == name {
			return fmt.Errorf("service: name %s already registered for code %d", name, c)
		}
	}
	r.entries[code] = entry{name: name, factory: factory}
	return nil
}

// MustRegister is Register that panics, for static setup.
func (r *Registry) MustRegister(code Code, name string, factory Factory) {
	if err := r.Register(code, name, factory); err != nil {
		panic(err)
	}
}

// Resolve mints a new instance for code. ok is false for unknown codes.
func (r *Registry) Resolve(code Code) (name string, instance any, ok bool) {
	r.mu.RLock()
	e, ok := r.entries[code]
	r.mu.RUnlock()
	if !ok {
		return "", nil, false
	}
	return e.name, e.factory(), true
}

// Codes returns the registered codes in ascending order.
func (r *Registry) Codes() []Code {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]Code, 0, len(r.entries))
	for c := range r.entries {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
