package interfaces

import (
	"github.com/zeusync/zeusave/internal/core/models"
)

// Object is anything that can be persisted: actors, components, the game instance and subsystems.
type Object interface {
	// Identity

	Name() string
	Type() models.TypeRef
	// Path is the fully-qualified, stable reference path of the object.
	Path() string
}

// Taggable objects carry a set of identifiers.
type Taggable interface {
	Tags() []string
	SetTags([]string)
	HasTag(string) bool
}

// Component is a sub-object owned by an actor.
type Component interface {
	Object
	Taggable

	Owner() Actor
}

// SceneComponent is a component that has a place in the world.
type SceneComponent interface {
	Component

	// Movable reports whether the component may change its transform at runtime.
	Movable() bool
	RelativeTransform() models.Transform
	SetRelativeTransform(models.Transform)
}

// PhysicsBody is implemented by scene components simulating physics.
type PhysicsBody interface {
	LinearVelocity() models.Vector
	SetLinearVelocity(models.Vector)
	AngularVelocity() models.Vector
	SetAngularVelocity(models.Vector)
}

// Actor is a live world object.
type Actor interface {
	Object
	Taggable

	// State

	IsHidden() bool
	SetHidden(bool)
	// IsProcedural is true for actors spawned at runtime rather than placed in the level.
	IsProcedural() bool
	IsValid() bool

	// Placement

	Transform() models.Transform
	SetTransform(models.Transform)
	// Root returns the root scene component, or nil.
	Root() SceneComponent

	Components() []Component
}
