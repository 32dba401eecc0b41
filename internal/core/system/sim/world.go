package sim

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
	"github.com/zeusync/zeusave/internal/core/system"
)

var (
	ErrNotActorType = errors.New("sim: not a concrete actor type")
	ErrForeignLevel = errors.New("sim: level does not belong to this world")
	ErrNotFound     = errors.New("sim: actor not found")
)

// Template adds the components an actor of a given type is born with.
type Template func(a *Actor)

// Level is a list of actors plus an optional level script.
type Level struct {
	mu     sync.RWMutex
	name   string
	path   string
	actors []*Actor
	script *Actor
}

func (l *Level) Name() string { return l.name }

func (l *Level) Actors() []interfaces.Actor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]interfaces.Actor, len(l.actors))
	for i, a := range l.actors {
		out[i] = a
	}
	return out
}

func (l *Level) LevelScript() interfaces.Actor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.script == nil {
		return nil
	}
	return l.script
}

// Actor finds a live actor by name.
func (l *Level) Actor(name string) *Actor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, a := range l.actors {
		if a.name == name {
			return a
		}
	}
	return nil
}

func (l *Level) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.actors)
}

func (l *Level) hasName(name string) bool {
	for _, a := range l.actors {
		if a.name == name {
			return true
		}
	}
	return l.script != nil && l.script.name == name
}

// StreamingLevel can be loaded and unloaded at runtime.
type StreamingLevel struct {
	mu     sync.RWMutex
	level  *Level
	loaded bool
}

func (s *StreamingLevel) Name() string { return s.level.name }

func (s *StreamingLevel) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *StreamingLevel) SetLoaded(v bool) {
	s.mu.Lock()
	s.loaded = v
	s.mu.Unlock()
}

func (s *StreamingLevel) Loaded() system.Level {
	if !s.IsLoaded() {
		return nil
	}
	return s.level
}

// Level gives access to the level even while it is unloaded.
func (s *StreamingLevel) Level() *Level { return s.level }

// World implements system.World in memory.
type World struct {
	mu        sync.RWMutex
	mapName   string
	seconds   float64
	authority bool

	types     *models.TypeRegistry
	templates map[models.TypeRef]Template

	persistent *Level
	streaming  []*StreamingLevel

	gameInstance    *Object
	giSubsystems    []*Object
	worldSubsystems []*Object
}

// NewWorld creates a world with an empty persistent level and a game instance.
func NewWorld(mapName string, types *models.TypeRegistry) *World {
	w := &World{
		mapName:   mapName,
		authority: true,
		types:     types,
		templates: make(map[models.TypeRef]Template),
	}
	w.persistent = &Level{name: "Persistent", path: mapName + ".Persistent"}
	w.gameInstance = NewObject("GameInstance", models.TypeGameInstance, "/Game/GameInstance")
	return w
}

func (w *World) MapName() string { return w.mapName }

func (w *World) TimeSeconds() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.seconds
}

func (w *World) SetTimeSeconds(s float64) {
	w.mu.Lock()
	w.seconds = s
	w.mu.Unlock()
}

// Advance moves the world clock forward.
func (w *World) Advance(seconds float64) {
	w.mu.Lock()
	w.seconds += seconds
	w.mu.Unlock()
}

func (w *World) HasAuthority() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.authority
}

func (w *World) SetAuthority(v bool) {
	w.mu.Lock()
	w.authority = v
	w.mu.Unlock()
}

func (w *World) Types() *models.TypeRegistry { return w.types }

func (w *World) PersistentLevel() system.Level { return w.persistent }

// Persistent gives typed access to the persistent level.
func (w *World) Persistent() *Level { return w.persistent }

func (w *World) StreamingLevels() []system.StreamingLevel {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]system.StreamingLevel, len(w.streaming))
	for i, s := range w.streaming {
		out[i] = s
	}
	return out
}

// AddStreamingLevel registers a sublevel. It starts loaded when loaded is true.
func (w *World) AddStreamingLevel(name string, loaded bool) *StreamingLevel {
	s := &StreamingLevel{
		level:  &Level{name: name, path: w.mapName + "." + name},
		loaded: loaded,
	}
	w.mu.Lock()
	w.streaming = append(w.streaming, s)
	w.mu.Unlock()
	return s
}

func (w *World) StreamingLevel(name string) *StreamingLevel {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, s := range w.streaming {
		if s.level.name == name {
			return s
		}
	}
	return nil
}

func (w *World) GameInstance() interfaces.Object {
	if w.gameInstance == nil {
		return nil
	}
	return w.gameInstance
}

// Game gives typed access to the game instance.
func (w *World) Game() *Object { return w.gameInstance }

func (w *World) GameInstanceSubsystems() []interfaces.Object {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return objects(w.giSubsystems)
}

func (w *World) WorldSubsystems() []interfaces.Object {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return objects(w.worldSubsystems)
}

func (w *World) AddGameInstanceSubsystem(name string, typ models.TypeRef) *Object {
	o := NewObject(name, typ, w.gameInstance.path+"."+name)
	w.mu.Lock()
	w.giSubsystems = append(w.giSubsystems, o)
	w.mu.Unlock()
	return o
}

func (w *World) AddWorldSubsystem(name string, typ models.TypeRef) *Object {
	o := NewObject(name, typ, w.mapName+":"+name)
	w.mu.Lock()
	w.worldSubsystems = append(w.worldSubsystems, o)
	w.mu.Unlock()
	return o
}

func objects(in []*Object) []interfaces.Object {
	out := make([]interfaces.Object, len(in))
	for i, o := range in {
		out[i] = o
	}
	return out
}

// RegisterTemplate sets the components spawned actors of typ start with.
func (w *World) RegisterTemplate(typ models.TypeRef, t Template) {
	w.mu.Lock()
	w.templates[typ] = t
	w.mu.Unlock()
}

// Place adds an actor that is part of the level layout, as opposed to one spawned at runtime.
func (w *World) Place(level *Level, typ models.TypeRef, name string, t models.Transform) *Actor {
	a := w.create(level, typ, name, t)
	a.procedural = false
	return a
}

// SetLevelScript creates the level script actor of level.
func (w *World) SetLevelScript(level *Level) *Actor {
	a := newActor(level, models.TypeLevelScript, "LevelScript", models.IdentityTransform)
	level.mu.Lock()
	level.script = a
	level.mu.Unlock()
	return a
}

func (w *World) create(level *Level, typ models.TypeRef, name string, t models.Transform) *Actor {
	level.mu.Lock()
	base := name
	if base == "" {
		base = string(typ)
	}
	unique := base
	for i := 1; level.hasName(unique); i++ {
		unique = fmt.Sprintf("%s_%d", base, i)
	}
	a := newActor(level, typ, unique, t)
	level.actors = append(level.actors, a)
	level.mu.Unlock()

	w.mu.RLock()
	tpl := w.templates[typ]
	w.mu.RUnlock()
	if tpl != nil {
		tpl(a)
	}
	return a
}

func (w *World) owns(level *Level) bool {
	if level == w.persistent {
		return true
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.ContainsFunc(w.streaming, func(s *StreamingLevel) bool { return s.level == level })
}

// Spawn creates a procedural actor. Name collisions get a numeric suffix.
func (w *World) Spawn(level system.Level, typ models.TypeRef, name string, t models.Transform) (interfaces.Actor, error) {
	l, ok := level.(*Level)
	if !ok || !w.owns(l) {
		return nil, ErrForeignLevel
	}
	if w.types != nil && (!w.types.IsChildOf(typ, models.TypeActor) || w.types.IsAbstract(typ)) {
		return nil, fmt.Errorf("%w: %s", ErrNotActorType, typ)
	}
	a := w.create(l, typ, name, t)
	a.procedural = true
	return a, nil
}

func (w *World) Destroy(actor interfaces.Actor) error {
	a, ok := actor.(*Actor)
	if !ok || a.level == nil {
		return ErrNotFound
	}
	l := a.level
	l.mu.Lock()
	idx := slices.Index(l.actors, a)
	if idx >= 0 {
		l.actors = slices.Delete(l.actors, idx, idx+1)
	}
	l.mu.Unlock()
	if idx < 0 {
		return ErrNotFound
	}
	a.markDestroyed()
	return nil
}

// FindObject searches singletons and every loaded level, including components.
func (w *World) FindObject(path string) interfaces.Object {
	if path == "" {
		return nil
	}
	if w.gameInstance != nil && w.gameInstance.path == path {
		return w.gameInstance
	}
	w.mu.RLock()
	for _, o := range append(slices.Clone(w.giSubsystems), w.worldSubsystems...) {
		if o.path == path {
			w.mu.RUnlock()
			return o
		}
	}
	levels := []*Level{w.persistent}
	for _, s := range w.streaming {
		if s.IsLoaded() {
			levels = append(levels, s.level)
		}
	}
	w.mu.RUnlock()

	for _, l := range levels {
		if !strings.HasPrefix(path, l.path+":") {
			continue
		}
		l.mu.RLock()
		candidates := slices.Clone(l.actors)
		if l.script != nil {
			candidates = append(candidates, l.script)
		}
		l.mu.RUnlock()
		for _, a := range candidates {
			if a.path == path {
				return a
			}
			if strings.HasPrefix(path, a.path+".") {
				for _, c := range a.Components() {
					if c.Path() == path {
						return c
					}
				}
			}
		}
	}
	return nil
}
