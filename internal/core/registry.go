package core

import (
	"fmt"
	"sync"
)

// Registry holds the entity definitions in registration order.
// Registration order is the load order: parents before children.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]EntityDefinition
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]EntityDefinition)}
}

// Register adds an entity definition to the registry.
// Panics if the key is already registered or the definition is incomplete.
func (r *Registry) Register(def EntityDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Info.Key]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Info.Key))
	}
	if def.KeyField() == "" {
		panic(fmt.Sprintf("entity %s has no key field", def.Info.Key))
	}
	if def.Build == nil {
		panic(fmt.Sprintf("entity %s has no build func", def.Info.Key))
	}

	// Populate Columns from FieldSpecs if not set
	if len(def.Info.Columns) == 0 {
		def.Info.Columns = make([]string, len(def.FieldSpecs))
		for i, spec := range def.FieldSpecs {
			def.Info.Columns[i] = spec.Name
		}
	}

	r.defs[def.Info.Key] = def
	r.order = append(r.order, def.Info.Key)
}

// Get returns an entity definition by key.
// Returns false if not found.
func (r *Registry) Get(key string) (EntityDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[key]
	return def, ok
}

// Lookup is Get with a NotFoundError for unknown keys.
func (r *Registry) Lookup(key string) (EntityDefinition, error) {
	def, ok := r.Get(key)
	if !ok {
		return EntityDefinition{}, &NotFoundError{Kind: "table", Key: key}
	}
	return def, nil
}

// All returns all definitions in registration order.
func (r *Registry) All() []EntityDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]EntityDefinition, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.defs[key])
	}
	return result
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}

// Count returns the number of registered entities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
