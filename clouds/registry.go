// Package clouds provides the pricing adapter plugin system.
// Provider adapters are modular plugins that can be added without
// modifying the refresh pipeline.
package clouds

import (
	"fmt"
	"sort"
	"sync"

	"cloudwright/core/spec"
)

// Registry manages pricing adapter registration
type Registry struct {
	mu       sync.RWMutex
	adapters map[spec.Provider]Adapter
}

// NewRegistry creates a new adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[spec.Provider]Adapter),
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[adapter.Provider()]; exists {
		return fmt.Errorf("adapter already registered: %s", adapter.Provider())
	}
	r.adapters[adapter.Provider()] = adapter
	return nil
}

// Get returns an adapter by provider
func (r *Registry) Get(provider spec.Provider) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[provider]
	return adapter, ok
}

// Providers returns all registered provider IDs sorted
func (r *Registry) Providers() []spec.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]spec.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

// Global default registry
var defaultRegistry = NewRegistry()

// RegisterAdapter adds an adapter to the default registry
func RegisterAdapter(adapter Adapter) error {
	return defaultRegistry.Register(adapter)
}

// DefaultRegistry returns the default registry
func DefaultRegistry() *Registry {
	return defaultRegistry
}
