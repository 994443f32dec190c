package module

import (
	"fmt"

	"bytemomo/moray/internal/domain"
)

// Registry manages the fixed set of module factories.
type Registry struct {
	factories map[domain.ModuleKind]Factory
}

// NewRegistry creates a new empty module registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[domain.ModuleKind]Factory)}
}

// Register adds a module factory to the registry.
func (r *Registry) Register(kind domain.ModuleKind, f Factory) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("nil factory for module %q", kind)
	}
	if _, dup := r.factories[kind]; dup {
		return fmt.Errorf("module %q registered twice", kind)
	}
	r.factories[kind] = f
	return nil
}

// Kinds returns every registered kind in the canonical order.
func (r *Registry) Kinds() []domain.ModuleKind {
	var out []domain.ModuleKind
	for _, k := range domain.AllModuleKinds() {
		if _, ok := r.factories[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Build instantiates probers for the selected kinds. An unregistered
// kind is a configuration error reported before any scheduling.
func (r *Registry) Build(kinds []domain.ModuleKind, deps Deps) (map[domain.ModuleKind]Prober, error) {
	out := make(map[domain.ModuleKind]Prober, len(kinds))
	for _, k := range kinds {
		f, ok := r.factories[k]
		if !ok {
			return nil, domain.E("module.Registry", fmt.Sprintf("unknown module %q", k), domain.ErrConfiguration)
		}
		out[k] = f(deps)
	}
	return out, nil
}
