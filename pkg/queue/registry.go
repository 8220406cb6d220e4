package queue

import (
	"fmt"
	"sync"
	"time"
)

// Registry is a bidirectional mapping between job type names and factory
// functions, used to reconstruct jobs from their serialized form. The zero
// value is unusable; use NewRegistry. A process-wide DefaultRegistry is
// provided for the common case, per the "convenience default, isolated
// instances for tests" guidance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry is the process-wide registry most callers use directly.
var DefaultRegistry = NewRegistry()

// Register associates typeName with factory. Registering an already-present
// name fails with ErrAlreadyRegistered.
func (r *Registry) Register(typeName string, factory Factory) error {
	if typeName == "" {
		return fmt.Errorf("%w: empty type name", ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typeName]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, typeName)
	}
	r.factories[typeName] = factory
	return nil
}

// Create reconstructs a Job of typeName from payload. Fails with
// ErrUnknownType if unregistered, or ErrDeserializationFailed (wrapping the
// underlying cause) if the factory errors.
func (r *Registry) Create(typeName string, payload map[string]any) (Job, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeName]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}

	job, err := factory(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrDeserializationFailed, typeName, err)
	}
	return job, nil
}

// IsRegistered reports whether typeName has a registered factory.
func (r *Registry) IsRegistered(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typeName]
	return ok
}

// Clear removes all registrations. Intended for test isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory)
}

// Serialize produces the envelope { "type", "created_at", ...job.ToMap() }.
// typeName must be the name job was (or will be) registered under.
func Serialize(typeName string, job Job) map[string]any {
	out := map[string]any{
		"type":       typeName,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range job.ToMap() {
		out[k] = v
	}
	return out
}

// Deserialize reads "type" from envelope, looks up the factory on r, and
// invokes it with the remaining fields. Absence of "type" fails with
// ErrMissingType.
func (r *Registry) Deserialize(envelope map[string]any) (Job, error) {
	raw, ok := envelope["type"]
	if !ok {
		return nil, ErrMissingType
	}
	typeName, ok := raw.(string)
	if !ok || typeName == "" {
		return nil, ErrMissingType
	}

	payload := make(map[string]any, len(envelope))
	for k, v := range envelope {
		if k == "type" || k == "created_at" {
			continue
		}
		payload[k] = v
	}

	return r.Create(typeName, payload)
}
