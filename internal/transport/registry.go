package transport

import (
	"sync"

	"codeberg.org/okkola/labdaq/internal/errors"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register installs a transport factory under a kind name. Kinds are
// registered from init functions; later registrations overwrite earlier ones
// so tests can substitute backends.
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[kind] = factory
}

// Open constructs the transport selected by cfg.Kind. An unregistered kind
// is a configuration-level failure, surfaced before any worker starts.
func Open(cfg Config) (Transport, error) {
	errFactory := errors.New()

	registryMu.RLock()
	factory, ok := factories[cfg.Kind]
	registryMu.RUnlock()

	if !ok {
		return nil, errFactory.WithData(ErrUnknownKind, cfg.Kind)
	}

	return factory(cfg)
}

// Kinds lists the registered transport kinds.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	return kinds
}
