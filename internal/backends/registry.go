// Registry manages backend construction and lookup.
//
// DESIGN: All four backends are built once at startup from the configuration
// struct; which one serves a request is decided by the provider selector.
package backends

import (
	"fmt"

	"github.com/tabwise/csv-gateway/internal/config"
	"github.com/tabwise/csv-gateway/internal/provider"
)

// Registry maps provider IDs to their constructed backends.
type Registry struct {
	backends map[provider.ID]Backend
}

// NewRegistry builds all built-in backends from configuration.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{backends: make(map[provider.ID]Backend)}
	r.Register(NewAzureBackend(cfg))
	r.Register(NewAnthropicBackend(cfg))
	r.Register(NewOpenAIBackend(cfg))
	r.Register(NewGeminiBackend(cfg))
	return r
}

// Register adds a backend to the registry.
func (r *Registry) Register(b Backend) {
	r.backends[b.Provider()] = b
}

// Get returns the backend for a provider.
func (r *Registry) Get(id provider.ID) (Backend, error) {
	b, ok := r.backends[id]
	if !ok {
		return nil, fmt.Errorf("no backend registered for provider '%s'", id)
	}
	return b, nil
}
