package sim

import (
	"slices"
	"sync"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
)

// Component is a plain actor component.
type Component struct {
	Object
	owner *Actor
}

func (c *Component) Owner() interfaces.Actor { return c.owner }

// SceneComponent has a relative transform and a physics state.
type SceneComponent struct {
	Component

	mu        sync.RWMutex
	movable   bool
	relative  models.Transform
	linearVel models.Vector
	angVel    models.Vector
}

func (c *SceneComponent) Movable() bool { return c.movable }

func (c *SceneComponent) SetMovable(v bool) { c.movable = v }

func (c *SceneComponent) RelativeTransform() models.Transform {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.relative
}

func (c *SceneComponent) SetRelativeTransform(t models.Transform) {
	c.mu.Lock()
	c.relative = t
	c.mu.Unlock()
}

func (c *SceneComponent) LinearVelocity() models.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.linearVel
}

func (c *SceneComponent) SetLinearVelocity(v models.Vector) {
	c.mu.Lock()
	c.linearVel = v
	c.mu.Unlock()
}

func (c *SceneComponent) AngularVelocity() models.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.angVel
}

func (c *SceneComponent) SetAngularVelocity(v models.Vector) {
	c.mu.Lock()
	c.angVel = v
	c.mu.Unlock()
}

// Actor is a live object placed in a Level.
type Actor struct {
	Object

	level      *Level
	mu         sync.RWMutex
	hidden     bool
	procedural bool
	destroyed  bool
	transform  models.Transform
	root       *SceneComponent
	components []interfaces.Component
}

func newActor(level *Level, typ models.TypeRef, name string, t models.Transform) *Actor {
	a := &Actor{level: level, transform: t}
	a.init(name, typ, level.path+":"+name)
	a.root = a.AddSceneComponent("Root", models.TypeSceneComponent, true)
	return a
}

func (a *Actor) IsHidden() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.hidden
}

func (a *Actor) SetHidden(v bool) {
	a.mu.Lock()
	a.hidden = v
	a.mu.Unlock()
}

func (a *Actor) IsProcedural() bool { return a.procedural }

func (a *Actor) IsValid() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return !a.destroyed
}

func (a *Actor) Transform() models.Transform {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.transform
}

func (a *Actor) SetTransform(t models.Transform) {
	a.mu.Lock()
	a.transform = t
	a.mu.Unlock()
}

// Root returns nil once the root was removed with SetRoot(nil).
func (a *Actor) Root() interfaces.SceneComponent {
	if a.root == nil {
		return nil
	}
	return a.root
}

// RootComponent gives typed access to the root.
func (a *Actor) RootComponent() *SceneComponent { return a.root }

func (a *Actor) SetRoot(c *SceneComponent) { a.root = c }

func (a *Actor) Components() []interfaces.Component {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.components)
}

func (a *Actor) Level() *Level { return a.level }

// AddComponent attaches a plain component.
func (a *Actor) AddComponent(name string, typ models.TypeRef) *Component {
	c := &Component{owner: a}
	c.init(name, typ, a.path+"."+name)
	a.mu.Lock()
	a.components = append(a.components, c)
	a.mu.Unlock()
	return c
}

// AddSceneComponent attaches a scene component.
func (a *Actor) AddSceneComponent(name string, typ models.TypeRef, movable bool) *SceneComponent {
	c := &SceneComponent{movable: movable, relative: models.IdentityTransform}
	c.owner = a
	c.init(name, typ, a.path+"."+name)
	a.mu.Lock()
	a.components = append(a.components, c)
	a.mu.Unlock()
	return c
}

// Component finds a component by name.
func (a *Actor) Component(name string) interfaces.Component {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, c := range a.components {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func (a *Actor) markDestroyed() {
	a.mu.Lock()
	a.destroyed = true
	a.mu.Unlock()
}
