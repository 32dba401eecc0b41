package models

import (
	"errors"
	"fmt"
	"sync"
)

// TypeRef names a type of the object universe, e.g. "Actor" or "Door".
type TypeRef string

// Built-in types every registry starts with.
const (
	TypeObject             TypeRef = "Object"
	TypeActor              TypeRef = "Actor"
	TypeLevelScript        TypeRef = "LevelScript"
	TypeComponent          TypeRef = "Component"
	TypeSceneComponent     TypeRef = "SceneComponent"
	TypePrimitiveComponent TypeRef = "PrimitiveComponent"
	TypeGameInstance       TypeRef = "GameInstance"
	TypeSubsystem          TypeRef = "Subsystem"
)

var (
	ErrTypeExists  = errors.New("type already registered")
	ErrUnknownType = errors.New("unknown type")
	ErrInvalidType = errors.New("invalid type name")
)

type typeInfo struct {
	parent   TypeRef
	abstract bool
}

// TypeRegistry is the type universe used to bake class filters and to validate records.
// It is safe for concurrent use.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[TypeRef]typeInfo
	order []TypeRef
}

// NewTypeRegistry returns a registry that already knows the built-in types.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{types: make(map[TypeRef]typeInfo)}
	r.mustRegister(TypeObject, "", true)
	r.mustRegister(TypeActor, TypeObject, false)
	r.mustRegister(TypeLevelScript, TypeActor, false)
	r.mustRegister(TypeComponent, TypeObject, true)
	r.mustRegister(TypeSceneComponent, TypeComponent, false)
	r.mustRegister(TypePrimitiveComponent, TypeSceneComponent, false)
	r.mustRegister(TypeGameInstance, TypeObject, false)
	r.mustRegister(TypeSubsystem, TypeObject, true)
	return r
}

func (r *TypeRegistry) mustRegister(name, parent TypeRef, abstract bool) {
	if err := r.register(name, parent, abstract); err != nil {
		panic(err)
	}
}

// Register adds a concrete type deriving from parent.
func (r *TypeRegistry) Register(name, parent TypeRef) error {
	return r.register(name, parent, false)
}

// RegisterAbstract adds a type that can be an ancestor but never a live instance type.
func (r *TypeRegistry) RegisterAbstract(name, parent TypeRef) error {
	return r.register(name, parent, true)
}

func (r *TypeRegistry) register(name, parent TypeRef, abstract bool) error {
	if name == "" {
		return ErrInvalidType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; exists {
		return fmt.Errorf("%w: %s", ErrTypeExists, name)
	}
	if parent != "" {
		if _, ok := r.types[parent]; !ok {
			return fmt.Errorf("%w: parent %s of %s", ErrUnknownType, parent, name)
		}
	}

	r.types[name] = typeInfo{parent: parent, abstract: abstract}
	r.order = append(r.order, name)
	return nil
}

func (r *TypeRegistry) Exists(name TypeRef) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Lookup resolves a type name read from a record. Empty or unregistered names do not resolve.
func (r *TypeRegistry) Lookup(name string) (TypeRef, bool) {
	ref := TypeRef(name)
	if ref == "" || !r.Exists(ref) {
		return "", false
	}
	return ref, true
}

func (r *TypeRegistry) Parent(name TypeRef) (TypeRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.types[name]
	if !ok || info.parent == "" {
		return "", false
	}
	return info.parent, true
}

func (r *TypeRegistry) IsAbstract(name TypeRef) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[name].abstract
}

// IsChildOf reports whether name equals base or derives from it.
func (r *TypeRegistry) IsChildOf(name, base TypeRef) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for cur := name; cur != ""; {
		if cur == base {
			return true
		}
		info, ok := r.types[cur]
		if !ok {
			return false
		}
		cur = info.parent
	}
	return false
}

// Ancestors returns name followed by its parents up to the root.
func (r *TypeRegistry) Ancestors(name TypeRef) []TypeRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var chain []TypeRef
	for cur := name; cur != ""; {
		info, ok := r.types[cur]
		if !ok {
			break
		}
		chain = append(chain, cur)
		cur = info.parent
	}
	return chain
}

// Types lists every registered type in registration order.
func (r *TypeRegistry) Types() []TypeRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TypeRef, len(r.order))
	copy(out, r.order)
	return out
}

// Concrete lists the non-abstract types in registration order.
func (r *TypeRegistry) Concrete() []TypeRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TypeRef, 0, len(r.order))
	for _, t := range r.order {
		if !r.types[t].abstract {
			out = append(out, t)
		}
	}
	return out
}
