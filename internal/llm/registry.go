package llm

import (
	"fmt"

	"github.com/kadirpekel/codescout/pkg/registry"
)

// Registry is the name->Provider lookup used for config-driven provider
// selection.
type Registry struct {
	base    *registry.BaseRegistry[Provider]
	primary string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Provider]()}
}

// Register adds a provider under name.
func (r *Registry) Register(name string, p Provider) error {
	return r.base.Register(name, p)
}

// SetPrimary designates which registered provider backs the pipeline's LLM
// stages by default.
func (r *Registry) SetPrimary(name string) error {
	if _, ok := r.base.Get(name); !ok {
		return fmt.Errorf("llm: cannot set primary to unregistered provider %q", name)
	}
	r.primary = name
	return nil
}

// Primary returns the designated default provider.
func (r *Registry) Primary() (Provider, error) {
	if r.primary == "" {
		return nil, fmt.Errorf("llm: no primary provider configured")
	}
	p, ok := r.base.Get(r.primary)
	if !ok {
		return nil, fmt.Errorf("llm: primary provider %q not registered", r.primary)
	}
	return p, nil
}

// Get looks up a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	return r.base.Get(name)
}
