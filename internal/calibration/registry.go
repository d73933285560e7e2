package calibration

import (
	"sort"
	"sync"

	"codeberg.org/okkola/labdaq/internal/errors"
)

const (
	ErrDuplicateFunction = errors.ErrorCode("calibration_duplicate_function")
	ErrUnknownFunction   = errors.ErrorCode("calibration_unknown_function")
)

// Registry is a closed set of named calibration functions, populated before
// descriptors load so every calibration reference resolves at load time.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{functions: make(map[string]Function)}
}

// DefaultRegistry returns a registry pre-populated with the built-in
// thermometer calibrations.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, fn := range []Function{cernoxCX1050(), dipstickRuO2()} {
		// Built-in names are unique by construction.
		_ = r.Register(fn)
	}
	return r
}

// Register adds a function to the registry. Registering a duplicate name is
// an error; calibrations are immutable once published.
func (r *Registry) Register(fn Function) error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.functions[fn.Name()]; dup {
		return errFactory.WithData(ErrDuplicateFunction, fn.Name())
	}
	r.functions[fn.Name()] = fn

	return nil
}

// Lookup returns the named function.
func (r *Registry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.functions[name]
	return fn, ok
}

// Names lists registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Resolve implements descriptor.CalibrationResolver.
func (r *Registry) Resolve(name string) (min, max float64, unit string, ok bool) {
	fn, ok := r.Lookup(name)
	if !ok {
		return 0, 0, "", false
	}
	d := fn.Domain()
	return d.Min, d.Max, fn.Unit(), true
}
