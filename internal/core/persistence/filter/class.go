// Package filter decides which live objects take part in a save or a load.
package filter

import (
	"maps"
	"slices"
	"sync"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
)

// ClassFilter is an allow/deny rule set over types. A type is allowed when the nearest of its
// ancestors (itself included) found in either set is in the allowed set.
//
// The baked set is a cache: any change to the rules marks it stale, and IsAllowed re-bakes
// against the last registry before answering.
type ClassFilter struct {
	mu sync.RWMutex

	BaseType models.TypeRef
	allowed  map[models.TypeRef]struct{}
	denied   map[models.TypeRef]struct{}

	baked    map[models.TypeRef]struct{}
	registry *models.TypeRegistry
	dirty    bool
}

func NewClassFilter(base models.TypeRef) *ClassFilter {
	return &ClassFilter{
		BaseType: base,
		allowed:  make(map[models.TypeRef]struct{}),
		denied:   make(map[models.TypeRef]struct{}),
		dirty:    true,
	}
}

// Allow adds types to the allowed set and removes them from the denied set.
func (f *ClassFilter) Allow(types ...models.TypeRef) *ClassFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range types {
		delete(f.denied, t)
		f.allowed[t] = struct{}{}
	}
	f.dirty = true
	return f
}

// Deny adds types to the denied set and removes them from the allowed set.
func (f *ClassFilter) Deny(types ...models.TypeRef) *ClassFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range types {
		delete(f.allowed, t)
		f.denied[t] = struct{}{}
	}
	f.dirty = true
	return f
}

// Merge applies other's rules on top of f. Entries of other win over conflicting entries of f.
func (f *ClassFilter) Merge(other *ClassFilter) {
	if other == nil || other == f {
		return
	}
	other.mu.RLock()
	allowed := slices.Collect(maps.Keys(other.allowed))
	denied := slices.Collect(maps.Keys(other.denied))
	other.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range allowed {
		delete(f.denied, t)
	}
	for _, t := range denied {
		delete(f.allowed, t)
	}
	for _, t := range allowed {
		f.allowed[t] = struct{}{}
	}
	for _, t := range denied {
		f.denied[t] = struct{}{}
	}
	f.dirty = true
}

// BakeAllowedClasses computes the allowed concrete types of reg. The rule sets are not touched.
func (f *ClassFilter) BakeAllowedClasses(reg *models.TypeRegistry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bake(reg)
}

func (f *ClassFilter) bake(reg *models.TypeRegistry) {
	baked := make(map[models.TypeRef]struct{})
	if reg != nil {
		for _, t := range reg.Concrete() {
			for _, ancestor := range reg.Ancestors(t) {
				if _, ok := f.allowed[ancestor]; ok {
					baked[t] = struct{}{}
					break
				}
				if _, ok := f.denied[ancestor]; ok {
					break
				}
			}
		}
	}
	f.baked = baked
	f.registry = reg
	f.dirty = false
}

// IsAllowed is a set lookup once the filter is baked.
func (f *ClassFilter) IsAllowed(t models.TypeRef) bool {
	f.mu.RLock()
	if !f.dirty {
		_, ok := f.baked[t]
		f.mu.RUnlock()
		return ok
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirty && f.registry != nil {
		f.bake(f.registry)
	}
	_, ok := f.baked[t]
	return ok
}

// IsBaked is false when the rules changed after the last bake.
func (f *ClassFilter) IsBaked() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.dirty
}

func (f *ClassFilter) AllowedTypes() []models.TypeRef {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.allowed))
}

func (f *ClassFilter) DeniedTypes() []models.TypeRef {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.denied))
}

// BakedTypes returns the baked set, sorted.
func (f *ClassFilter) BakedTypes() []models.TypeRef {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.baked))
}

// Clone copies the rules. The copy must be baked again.
func (f *ClassFilter) Clone() *ClassFilter {
	if f == nil {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &ClassFilter{
		BaseType: f.BaseType,
		allowed:  maps.Clone(f.allowed),
		denied:   maps.Clone(f.denied),
		registry: f.registry,
		dirty:    true,
	}
}

func (f *ClassFilter) Encode(w *archive.Writer) {
	w.WriteString(string(f.BaseType))
	w.WriteStrings(typeStrings(f.AllowedTypes()))
	w.WriteStrings(typeStrings(f.DeniedTypes()))
}

func (f *ClassFilter) Decode(r *archive.Reader) {
	base := models.TypeRef(r.ReadString())
	allowed := r.ReadStrings()
	denied := r.ReadStrings()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.BaseType = base
	f.allowed = make(map[models.TypeRef]struct{}, len(allowed))
	f.denied = make(map[models.TypeRef]struct{}, len(denied))
	for _, t := range allowed {
		f.allowed[models.TypeRef(t)] = struct{}{}
	}
	for _, t := range denied {
		f.denied[models.TypeRef(t)] = struct{}{}
	}
	f.dirty = true
}

func typeStrings(types []models.TypeRef) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
