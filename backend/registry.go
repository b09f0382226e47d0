package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/internal/logging"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)

	// Priority for OpenDefault, first to open wins.
	priority = []string{GPU, OpenCL, CPU}
)

// Register adds a factory under name, replacing any previous one.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Unregister removes a factory. Useful in tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether name has a factory.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens the named backend.
func Open(name string, cfg Config) (compute.Device, error) {
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrBackendNotAvailable, name, Available())
	}
	dev, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendNotAvailable, name, err)
	}
	logging.Logger().Info("backend: device opened", "backend", name, "device", dev.Name())
	return dev, nil
}

// OpenDefault opens the first backend in priority order that succeeds.
// Failures fall through to the next backend with a warning.
func OpenDefault(cfg Config) (compute.Device, error) {
	var errs []error
	for _, name := range priority {
		if !IsRegistered(name) {
			continue
		}
		dev, err := Open(name, cfg)
		if err == nil {
			return dev, nil
		}
		logging.Logger().Warn("backend: falling back", "backend", name, "err", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no backend registered", ErrBackendNotAvailable)
	}
	return nil, errors.Join(errs...)
}
