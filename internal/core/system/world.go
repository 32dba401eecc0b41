package system

import (
	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
)

// Level is a loaded level: a list of actors plus its level script actor.
type Level interface {
	Name() string
	// Actors returns the live actors in a stable order. The slice must not be mutated by callers.
	Actors() []interfaces.Actor
	// LevelScript returns the level script actor, or nil.
	LevelScript() interfaces.Actor
}

// StreamingLevel is a sublevel that can be shown or hidden while the world stays loaded.
type StreamingLevel interface {
	Name() string
	IsLoaded() bool
	// Loaded returns the level when IsLoaded is true, nil otherwise.
	Loaded() Level
}

// World is the live simulation the save system reads from and writes into.
// Every method except Actors enumeration during a save is called from the tick goroutine.
type World interface {
	// State

	MapName() string
	TimeSeconds() float64
	SetTimeSeconds(float64)
	// HasAuthority is false on clients that must not save or load.
	HasAuthority() bool

	// Levels

	PersistentLevel() Level
	StreamingLevels() []StreamingLevel

	// Global singletons

	GameInstance() interfaces.Object
	GameInstanceSubsystems() []interfaces.Object
	WorldSubsystems() []interfaces.Object

	// Lifecycle

	Spawn(level Level, typ models.TypeRef, name string, transform models.Transform) (interfaces.Actor, error)
	Destroy(actor interfaces.Actor) error

	// FindObject resolves a fully-qualified object path. It returns nil if nothing is loaded there.
	FindObject(path string) interfaces.Object
}

// MapLoader opens maps. OpenMap is asynchronous: the host reports the new world
// through the save manager once it is ready.
type MapLoader interface {
	MapExists(name string) bool
	OpenMap(name string) error
}

// ThumbnailCapturer captures a screenshot of the current view.
// done is called exactly once, possibly from another goroutine.
type ThumbnailCapturer interface {
	Capture(width, height int, done func(png []byte, err error))
}
