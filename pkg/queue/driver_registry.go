package queue

import (
	"fmt"
	"sync"
)

// DriverRegistry maps driver names to constructed Driver instances, so
// callers can look one up by config (queue.driver, spec section 6) without
// threading concrete driver types through the application. Mirrors the Job
// Registry's "instance passed around, convenience default available"
// guidance (spec 9) for the Driver Registry.
type DriverRegistry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
	def     string
}

// NewDriverRegistry returns an empty registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{drivers: make(map[string]Driver)}
}

// DefaultDriverRegistry is the process-wide convenience instance.
var DefaultDriverRegistry = NewDriverRegistry()

// Register associates name with d. Re-registering an existing name fails
// with ErrDriverAlreadyRegistered.
func (r *DriverRegistry) Register(name string, d Driver) error {
	if name == "" {
		return fmt.Errorf("%w: empty driver name", ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.drivers[name]; exists {
		return fmt.Errorf("%w: %q", ErrDriverAlreadyRegistered, name)
	}
	r.drivers[name] = d
	if r.def == "" {
		r.def = name
	}
	return nil
}

// SetDefault marks name as the default driver returned by Default().
func (r *DriverRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drivers[name]; !ok {
		return fmt.Errorf("%w: %q", ErrDriverNotFound, name)
	}
	r.def = name
	return nil
}

// Get returns the driver registered under name, or ErrDriverNotFound.
func (r *DriverRegistry) Get(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotFound, name)
	}
	return d, nil
}

// Default returns the registry's default driver, or ErrNoDefaultDriver if
// none has been registered.
func (r *DriverRegistry) Default() (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.def == "" {
		return nil, ErrNoDefaultDriver
	}
	return r.drivers[r.def], nil
}
