package transcription

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a provider instance from configuration.
type Factory func(cfg map[string]any) (Provider, error)

// Registry manages named provider factories and cached instances. Engines are
// selected once at orchestration start and never re-dispatched mid-pipeline.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Provider
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Provider),
	}
}

// RegisterFactory registers a named factory for creating providers.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates a provider using the named factory and caches it.
func (r *Registry) Create(name string, cfg map[string]any) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider factory %q not registered", name)
	}
	instance, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create provider %q: %w", name, err)
	}
	r.mu.Lock()
	r.instances[name] = instance
	r.mu.Unlock()
	return instance, nil
}

// Get returns a cached provider instance by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// List returns sorted names of all registered factories.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
