package tasks

import (
	"context"
	"math"
	"slices"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/internal/core/persistence/filter"
	"github.com/zeusync/zeusave/internal/core/persistence/records"
	"github.com/zeusync/zeusave/internal/core/system"
	"github.com/zeusync/zeusave/pkg/sequence"
)

// MinObjectsPerTask keeps small levels from being split into tiny chunks.
const MinObjectsPerTask = 40

// TasksPerLevel spreads workers plus the calling goroutine over the persistent level and
// every streaming level.
func TasksPerLevel(workers, streamingLevels int) int {
	threads := max(1, workers+1)
	return max(1, int(math.Round(float64(threads)/float64(streamingLevels+1))))
}

// ChunkConfig describes one slice of a level's actor list.
type ChunkConfig struct {
	World      system.World
	Level      system.Level
	Actors     []interfaces.Actor
	Span       sequence.Span
	Filter     *filter.LevelFilter
	Types      *models.TypeRegistry
	Serializer archive.ObjectSerializer
	Versions   archive.VersionInfo
	Logger     log.Log

	// Globals makes the chunk capture the game instance and subsystems.
	Globals           bool
	StoreGameInstance bool
	SubsystemFilter   *filter.ClassFilter
	// LevelScript makes the chunk capture the level script actor.
	LevelScript bool
}

// SerializeChunk turns a contiguous slice of actors into records without touching shared state.
// Results are merged with Dump once every chunk of the save has completed.
type SerializeChunk struct {
	cfg ChunkConfig

	actors      []records.Record
	levelScript records.Record
	skipped     int

	gameInstance    records.Record
	giSubsystems    []records.Record
	worldSubsystems []records.Record
}

func NewSerializeChunk(cfg ChunkConfig) *SerializeChunk {
	if cfg.Serializer == nil {
		cfg.Serializer = archive.DefaultSerializer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.Types == nil {
		cfg.Types = models.NewTypeRegistry()
	}
	return &SerializeChunk{cfg: cfg}
}

// Run serializes the chunk. Objects that fail are skipped. The error is only set when ctx is done.
func (c *SerializeChunk) Run(ctx context.Context) error {
	if c.cfg.Globals {
		c.serializeGlobals()
	}
	if c.cfg.LevelScript && c.cfg.Level != nil {
		if script := c.cfg.Level.LevelScript(); script != nil {
			if rec, ok := c.serializeActor(script); ok {
				c.levelScript = rec
			}
		}
	}

	end := min(c.cfg.Span.End(), len(c.cfg.Actors))
	c.actors = make([]records.Record, 0, max(0, end-c.cfg.Span.Start))
	for i := c.cfg.Span.Start; i < end; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if rec, ok := c.serializeActor(c.cfg.Actors[i]); ok {
			c.actors = append(c.actors, rec)
		} else {
			c.skipped++
		}
	}
	return nil
}

// Serialized is the number of actor records produced.
func (c *SerializeChunk) Serialized() int { return len(c.actors) }

// Skipped counts actors rejected by the filter or that failed to serialize.
func (c *SerializeChunk) Skipped() int { return c.skipped }

// Dump moves the chunk output into the level record and, for the globals chunk, into data.
func (c *SerializeChunk) Dump(level *records.LevelRecord, data *records.SlotData) {
	level.Actors = append(level.Actors, c.actors...)
	c.actors = nil
	if c.levelScript.Valid() {
		level.LevelScript = c.levelScript
	}
	if c.cfg.Globals && data != nil {
		data.GameInstance = c.gameInstance
		data.GameInstanceSubsystems = c.giSubsystems
		data.WorldSubsystems = c.worldSubsystems
	}
}

func (c *SerializeChunk) serializeGlobals() {
	w := c.cfg.World
	if w == nil {
		return
	}
	if c.cfg.StoreGameInstance {
		if gi := w.GameInstance(); gi != nil {
			if rec, ok := c.serializeObject(gi); ok {
				c.gameInstance = rec
			}
		}
		c.giSubsystems = c.serializeSubsystems(w.GameInstanceSubsystems())
	}
	c.worldSubsystems = c.serializeSubsystems(w.WorldSubsystems())
}

func (c *SerializeChunk) serializeSubsystems(objs []interfaces.Object) []records.Record {
	var out []records.Record
	for _, obj := range objs {
		if obj == nil || c.cfg.SubsystemFilter == nil || !c.cfg.SubsystemFilter.IsAllowed(obj.Type()) {
			continue
		}
		if rec, ok := c.serializeObject(obj); ok {
			out = append(out, rec)
		}
	}
	return out
}

func (c *SerializeChunk) serializeObject(obj interfaces.Object) (records.Record, bool) {
	rec := records.ObjectRecord(records.KindObject, obj)
	data, err := archive.SerializeObject(c.cfg.Serializer, obj, c.cfg.Versions)
	if err != nil {
		c.cfg.Logger.Warn("Failed to serialize object", log.String("object", obj.Path()), log.Error(err))
		return rec, false
	}
	rec.Data = data
	return rec, true
}

func (c *SerializeChunk) serializeActor(actor interfaces.Actor) (records.Record, bool) {
	f := c.cfg.Filter
	if actor == nil || !actor.IsValid() || !f.ShouldSave(actor) {
		return records.Record{}, false
	}

	rec := records.ObjectRecord(records.KindActor, actor)
	rec.Hidden = actor.IsHidden()
	rec.Procedural = actor.IsProcedural()
	if filter.StoresTags(actor) {
		rec.Tags = slices.Clone(actor.Tags())
	} else {
		rec.Tags = filter.SaveTagsOnly(actor.Tags())
	}

	if filter.StoresTransform(actor) {
		rec.HasTransform = true
		rec.Transform = actor.Transform()
		if filter.StoresPhysics(actor) {
			if body, ok := actor.Root().(interfaces.PhysicsBody); ok {
				rec.HasVelocity = true
				rec.LinearVelocity = body.LinearVelocity()
				rec.AngularVelocity = body.AngularVelocity()
			}
		}
	}

	if f.StoresAnyComponents() {
		for _, comp := range actor.Components() {
			if comp == nil || !f.ShouldSaveComponent(comp) {
				continue
			}
			rec.Components = append(rec.Components, c.serializeComponent(comp))
		}
	}

	data, err := archive.SerializeObject(c.cfg.Serializer, actor, c.cfg.Versions)
	if err != nil {
		c.cfg.Logger.Warn("Failed to serialize actor", log.String("actor", actor.Path()), log.Error(err))
		return records.Record{}, false
	}
	rec.Data = data
	return rec, true
}

func (c *SerializeChunk) serializeComponent(comp interfaces.Component) records.Record {
	rec := records.ObjectRecord(records.KindComponent, comp)
	if filter.ComponentStoresTransform(comp) {
		if scene := comp.(interfaces.SceneComponent); scene.Movable() {
			rec.HasTransform = true
			rec.Transform = scene.RelativeTransform()
		}
	}
	if filter.ComponentStoresTags(comp) {
		rec.Tags = slices.Clone(comp.Tags())
	}
	if !c.cfg.Types.IsChildOf(comp.Type(), models.TypePrimitiveComponent) {
		data, err := archive.SerializeObject(c.cfg.Serializer, comp, c.cfg.Versions)
		if err != nil {
			c.cfg.Logger.Warn("Failed to serialize component", log.String("component", comp.Path()), log.Error(err))
		} else {
			rec.Data = data
		}
	}
	return rec
}
