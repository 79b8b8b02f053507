package catalog

import (
	"sync"

	"ai-integration/internal/models"
)

// Linkage is how a linked entity type hangs off a template's primary target
// type: the owning field and whether it is a link or a child collection.
type Linkage struct {
	OwningField string           `json:"owning_field"`
	Kind        models.FieldKind `json:"kind"`
}

// Registry maps linked entity types to their Linkage for one template. It is
// rebuilt wholesale each time the template's primary target type is resolved.
//
// When the same linked type is reachable through two fields, the field
// declared last wins.
type Registry struct {
	mu         sync.RWMutex
	primary    string
	entries    map[string]Linkage
	resolution *Resolution
	generation uint64
	committed  uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Linkage)}
}

// Register records (or overwrites) the linkage of entityType.
func (r *Registry) Register(entityType, owningField string, kind models.FieldKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entityType] = Linkage{OwningField: owningField, Kind: kind}
}

// Lookup returns the linkage recorded for entityType.
func (r *Registry) Lookup(entityType string) (Linkage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.entries[entityType]
	if !ok {
		return Linkage{}, models.NotFoundf("linked entity type %s", entityType)
	}
	return l, nil
}

// Primary returns the target type the registry was last built for.
func (r *Registry) Primary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary
}

// Entries returns a copy of all recorded linkages.
func (r *Registry) Entries() map[string]Linkage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Linkage, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Last returns the most recent successful resolution, if any.
func (r *Registry) Last() (Resolution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.resolution == nil {
		return Resolution{}, false
	}
	return r.resolution.clone(), true
}

// begin starts a rebuild and returns its generation.
func (r *Registry) begin() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	return r.generation
}

// commit swaps in a rebuilt registry unless a rebuild started after gen
// already committed. Rebuilds that fail never commit, so they supersede
// nothing.
func (r *Registry) commit(gen uint64, res Resolution, entries map[string]Linkage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen < r.committed {
		return false
	}
	r.committed = gen
	r.primary = res.TargetType
	r.entries = entries
	stored := res.clone()
	r.resolution = &stored
	return true
}

// Registries holds one Registry per template so concurrent edits of
// different templates do not share state.
type Registries struct {
	mu         sync.Mutex
	byTemplate map[string]*Registry
}

// NewRegistries returns an empty set of registries.
func NewRegistries() *Registries {
	return &Registries{byTemplate: make(map[string]*Registry)}
}

// For returns the registry of templateID, creating it on first use.
func (r *Registries) For(templateID string) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byTemplate[templateID]
	if !ok {
		reg = NewRegistry()
		r.byTemplate[templateID] = reg
	}
	return reg
}

// Drop forgets the registry of templateID.
func (r *Registries) Drop(templateID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byTemplate, templateID)
}
