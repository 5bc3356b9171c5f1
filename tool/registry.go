package tool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Registry holds the adapters available to the router, in declaration order.
//
// Registration happens once at startup. After Freeze the registry is
// read-only and lookups take no locks beyond a read lock.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	byName   map[string]Adapter
	byAlias  map[string]string
	frozen   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]Adapter),
		byAlias: make(map[string]string),
	}
}

// Register adds adapters in the given order.
func (r *Registry) Register(adapters ...Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	for _, a := range adapters {
		if err := r.registerLocked(a); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerLocked(a Adapter) error {
	if a == nil {
		return ErrNilAdapter
	}
	d := a.Descriptor()
	name := strings.TrimSpace(d.Name)
	if name == "" || name != d.Name || strings.ContainsAny(name, " \t\n:") {
		return fmt.Errorf("%w: %q", ErrInvalidName, d.Name)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	if d.Schema == nil || d.Schema.Type != "object" {
		return fmt.Errorf("%w: %s", ErrInvalidSchema, name)
	}
	for _, c := range d.Capabilities {
		if !c.Valid() {
			return fmt.Errorf("%w: %s declares %q", ErrUnknownCapability, name, c)
		}
	}
	aliases := make([]string, 0, len(d.Aliases))
	for _, alias := range d.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if owner, taken := r.byAlias[alias]; taken {
			return fmt.Errorf("%w: alias %q of %s is owned by %s", ErrDuplicate, alias, name, owner)
		}
		aliases = append(aliases, alias)
	}
	for _, alias := range aliases {
		r.byAlias[alias] = name
	}

	r.adapters = append(r.adapters, a)
	r.byName[name] = a
	return nil
}

// Freeze rejects further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return a, nil
}

// ToolForAlias returns the tool name owning alias, if any.
func (r *Registry) ToolForAlias(alias string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.byAlias[strings.ToLower(alias)]
	return name, ok
}

// Aliases returns a copy of the alias to tool name table.
func (r *Registry) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.byAlias))
	for k, v := range r.byAlias {
		out[k] = v
	}
	return out
}

// Adapters returns the registered adapters in declaration order.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Listing is the externally visible description of one tool.
type Listing struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	ParameterSchema *jsonschema.Schema `json:"parameterSchema"`
	Capabilities    []Category         `json:"capabilities,omitempty"`
	Examples        []string           `json:"examples,omitempty"`
}

// List returns the tool schema listing in declaration order.
func (r *Registry) List() []Listing {
	adapters := r.Adapters()
	out := make([]Listing, 0, len(adapters))
	for _, a := range adapters {
		d := a.Descriptor()
		out = append(out, Listing{
			Name:            d.Name,
			Description:     d.Description,
			ParameterSchema: d.Schema,
			Capabilities:    d.Capabilities,
			Examples:        d.Examples,
		})
	}
	return out
}
