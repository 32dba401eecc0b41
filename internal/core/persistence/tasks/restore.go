package tasks

import (
	"slices"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/observability/metrics"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/internal/core/persistence/filter"
	"github.com/zeusync/zeusave/internal/core/persistence/records"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/core/system"
)

// PrepareResult lists the outcome of reconciling one level, by actor name.
type PrepareResult struct {
	Matched   []string
	Destroyed []string
	Respawned []string
}

type binding struct {
	record *records.Record
	actor  interfaces.Actor
}

// levelState is a prepared level: the records bound to live actors, in apply order.
type levelState struct {
	name      string
	streaming system.StreamingLevel
	filter    *filter.LevelFilter
	bindings  []binding
	result    PrepareResult
}

// restorer applies slot data to a world. Reconciliation of a level always completes before any
// payload of that level is applied, so references resolve to respawned actors.
type restorer struct {
	sess   *Session
	logger log.Log
	world  system.World
	slot   *slot.Slot
	data   *records.SlotData
	refs   *archive.ReferenceTable

	levels map[string]*levelState
	order  []string

	// frame sliced cursor
	current *levelState
	index   int
	// single stops the cursor after the current level
	single bool

	mismatch rate.Sometimes
	applied  int
	skipped  int
}

func newRestorer(sess *Session, logger log.Log, world system.World, s *slot.Slot) *restorer {
	return &restorer{
		sess:     sess,
		logger:   logger,
		world:    world,
		slot:     s,
		data:     s.Data(),
		refs:     archive.NewReferenceTable(world, nil),
		levels:   make(map[string]*levelState),
		mismatch: rate.Sometimes{First: 5, Interval: time.Second},
	}
}

// restoreGlobals sets the world clock and applies the game instance and subsystem records.
func (r *restorer) restoreGlobals() {
	r.world.SetTimeSeconds(r.data.TimeSeconds)

	subsystems := r.slot.SubsystemFilter.Clone()
	if subsystems != nil {
		subsystems.BakeAllowedClasses(r.sess.types())
	}

	if gi := r.world.GameInstance(); gi != nil && r.slot.StoreGameInstance {
		if rec := &r.data.GameInstance; rec.Valid() && gi.Type() == rec.Type {
			r.applyPayload(gi, rec.Data)
		}
		r.restoreSubsystems(r.data.GameInstanceSubsystems, r.world.GameInstanceSubsystems(), subsystems)
	}
	r.restoreSubsystems(r.data.WorldSubsystems, r.world.WorldSubsystems(), subsystems)
}

func (r *restorer) restoreSubsystems(recs []records.Record, live []interfaces.Object, allowed *filter.ClassFilter) {
	if allowed == nil {
		return
	}
	for i := range recs {
		rec := &recs[i]
		if !rec.Valid() || !allowed.IsAllowed(rec.Type) {
			continue
		}
		idx := slices.IndexFunc(live, func(o interfaces.Object) bool { return o != nil && o.Type() == rec.Type })
		if idx < 0 {
			continue
		}
		r.applyPayload(live[idx], rec.Data)
	}
}

// prepare reconciles level against rec: live actors without a record that the filter loads are
// destroyed, records without a live actor are respawned, and the rest are bound in place.
func (r *restorer) prepare(name string, streaming system.StreamingLevel, level system.Level, rec *records.LevelRecord) *levelState {
	f := rec.EffectiveFilter(r.slot.Filter)
	f.Bake(r.sess.types())
	st := &levelState{name: name, streaming: streaming, filter: f}

	// record names by hash; the bitmap holds records still waiting for an actor
	byName := make(map[uint64][]uint32, len(rec.Actors))
	pending := roaring.New()
	for i := range rec.Actors {
		h := xxhash.Sum64String(rec.Actors[i].Name)
		byName[h] = append(byName[h], uint32(i))
		pending.Add(uint32(i))
	}
	// find returns the pending record with the actor's identity. retyped is set when a record
	// carries the name but another type.
	find := func(actor interfaces.Actor) (idx uint32, ok, retyped bool) {
		for _, i := range byName[xxhash.Sum64String(actor.Name())] {
			if !pending.Contains(i) {
				continue
			}
			if rec.Actors[i].Matches(actor) {
				return i, true, false
			}
			if rec.Actors[i].Name == actor.Name() {
				retyped = true
			}
		}
		return 0, false, retyped
	}

	if script := level.LevelScript(); script != nil && rec.LevelScript.Valid() && rec.LevelScript.Matches(script) {
		st.bindings = append(st.bindings, binding{record: &rec.LevelScript, actor: script})
	}

	var destroy []interfaces.Actor
	for _, actor := range level.Actors() {
		if actor == nil || !actor.IsValid() {
			continue
		}
		idx, ok, retyped := find(actor)
		switch {
		case ok:
			if f.ShouldLoad(actor) {
				st.bindings = append(st.bindings, binding{record: &rec.Actors[idx], actor: actor})
				st.result.Matched = append(st.result.Matched, actor.Name())
			}
			pending.Remove(idx)
		case f.ShouldLoad(actor):
			if retyped {
				r.mismatch.Do(func() {
					r.logger.Warn("Actor type does not match the record, replacing it",
						log.String("actor", actor.Name()),
						log.String("type", string(actor.Type())))
				})
			}
			destroy = append(destroy, actor)
		}
	}

	for _, actor := range destroy {
		name := actor.Name()
		if err := r.world.Destroy(actor); err != nil {
			r.logger.Warn("Failed to destroy actor", log.String("actor", name), log.Error(err))
			continue
		}
		st.result.Destroyed = append(st.result.Destroyed, name)
	}

	types := r.sess.types()
	it := pending.Iterator()
	for it.HasNext() {
		record := &rec.Actors[it.Next()]
		if !types.Exists(record.Type) {
			r.logger.Warn("Skipping record of unknown type",
				log.String("actor", record.Name), log.String("type", string(record.Type)))
			continue
		}
		if !f.ShouldLoadType(record.Type) {
			continue
		}
		actor, err := r.world.Spawn(level, record.Type, record.Name, record.Transform)
		if err != nil {
			r.logger.Warn("Failed to respawn actor", log.String("actor", record.Name), log.Error(err))
			continue
		}
		if actor.Name() != record.Name {
			r.refs.Put(renamedPath(actor, record.Name), actor)
			record.Name = actor.Name()
		}
		st.bindings = append(st.bindings, binding{record: record, actor: actor})
		st.result.Respawned = append(st.result.Respawned, actor.Name())
	}

	for _, b := range st.bindings {
		r.refs.Add(b.actor)
		for _, c := range b.actor.Components() {
			r.refs.Add(c)
		}
	}

	r.sess.Metrics.AddActors(metrics.ActorsMatched, len(st.result.Matched))
	r.sess.Metrics.AddActors(metrics.ActorsDestroyed, len(st.result.Destroyed))
	r.sess.Metrics.AddActors(metrics.ActorsRespawned, len(st.result.Respawned))
	r.logger.Debug("Level prepared",
		log.String("level", name),
		log.Int("matched", len(st.result.Matched)),
		log.Int("destroyed", len(st.result.Destroyed)),
		log.Int("respawned", len(st.result.Respawned)))

	r.levels[name] = st
	r.order = append(r.order, name)
	return st
}

// renamedPath rebuilds the path a respawned actor had under its recorded name.
func renamedPath(actor interfaces.Actor, recorded string) string {
	path := actor.Path()
	if !strings.HasSuffix(path, actor.Name()) {
		return ""
	}
	return strings.TrimSuffix(path, actor.Name()) + recorded
}

// prepareWorld prepares the persistent level and every loaded streaming level that has a record.
func (r *restorer) prepareWorld() {
	if level := r.world.PersistentLevel(); level != nil {
		r.prepare(records.PersistentLevelName, nil, level, &r.data.RootLevel)
	}
	for _, sl := range r.world.StreamingLevels() {
		level := sl.Loaded()
		if level == nil {
			continue
		}
		if rec := r.data.FindLevel(sl.Name()); rec != nil && sl.Name() != records.PersistentLevelName {
			r.prepare(sl.Name(), sl, level, rec)
		}
	}
}

// applyAll deserializes every prepared level in one go.
func (r *restorer) applyAll() {
	for _, name := range r.order {
		st := r.levels[name]
		for _, b := range st.bindings {
			r.apply(st, b)
		}
	}
}

// resume deserializes bindings until the budget is spent. A level is finished before the next
// one is looked up.
func (r *restorer) resume(budget time.Duration) Progress {
	start := r.sess.now()
	for r.current != nil {
		st := r.current
		for r.index < len(st.bindings) {
			b := st.bindings[r.index]
			r.index++
			r.apply(st, b)
			if r.sess.now().Sub(start) >= budget {
				return Continue
			}
		}
		r.index = 0
		if r.single {
			r.current = nil
		} else {
			r.current = r.nextLevel(st.streaming)
		}
	}
	return Done
}

// nextLevel returns the state of the next prepared streaming level after the given one.
func (r *restorer) nextLevel(after system.StreamingLevel) *levelState {
	for sl := FindNextAsyncLevel(r.world, after); sl != nil; sl = FindNextAsyncLevel(r.world, sl) {
		if st := r.levels[sl.Name()]; st != nil && st.streaming == sl {
			return st
		}
	}
	return nil
}

// FindNextAsyncLevel returns the loaded streaming level following after, or the first loaded
// one when after is nil. It returns nil when there is none.
func FindNextAsyncLevel(world system.World, after system.StreamingLevel) system.StreamingLevel {
	levels := world.StreamingLevels()
	next := 0
	if after != nil {
		idx := slices.Index(levels, after)
		if idx < 0 {
			return nil
		}
		next = idx + 1
	}
	for ; next < len(levels); next++ {
		if levels[next].IsLoaded() {
			return levels[next]
		}
	}
	return nil
}

func (r *restorer) apply(st *levelState, b binding) {
	if b.actor == nil || !b.actor.IsValid() {
		return
	}
	if r.deserializeActor(b.actor, b.record, st.filter) {
		r.applied++
	} else {
		r.skipped++
	}
}

func (r *restorer) deserializeActor(actor interfaces.Actor, rec *records.Record, f *filter.LevelFilter) bool {
	if !rec.Matches(actor) {
		return false
	}

	actor.SetTags(slices.Clone(rec.Tags))

	if filter.StoresTransform(actor) && rec.HasTransform {
		actor.SetTransform(rec.Transform)
		if filter.StoresPhysics(actor) && rec.HasVelocity {
			if body, ok := actor.Root().(interfaces.PhysicsBody); ok {
				body.SetLinearVelocity(rec.LinearVelocity)
				body.SetAngularVelocity(rec.AngularVelocity)
			}
		}
	}
	actor.SetHidden(rec.Hidden)

	if f.StoresAnyComponents() {
		r.deserializeComponents(actor, rec, f)
	}

	r.applyPayload(actor, rec.Data)
	return true
}

func (r *restorer) deserializeComponents(actor interfaces.Actor, rec *records.Record, f *filter.LevelFilter) {
	types := r.sess.types()
	for _, comp := range actor.Components() {
		if comp == nil || !f.ShouldLoadComponent(comp) {
			continue
		}
		cr := rec.FindComponent(comp.Name())
		if cr == nil {
			r.logger.Debug("Component record not found",
				log.String("actor", actor.Name()), log.String("component", comp.Name()))
			continue
		}
		if filter.ComponentStoresTransform(comp) && cr.HasTransform {
			if scene := comp.(interfaces.SceneComponent); scene.Movable() {
				scene.SetRelativeTransform(cr.Transform)
			}
		}
		if filter.ComponentStoresTags(comp) {
			comp.SetTags(slices.Clone(cr.Tags))
		}
		if !types.IsChildOf(comp.Type(), models.TypePrimitiveComponent) {
			r.applyPayload(comp, cr.Data)
		}
	}
}

func (r *restorer) applyPayload(obj interfaces.Object, data []byte) {
	err := archive.DeserializeObject(r.sess.serializer(), obj, data, r.data.Versions, r.refs)
	if err != nil {
		r.logger.Warn("Failed to deserialize object", log.String("object", obj.Path()), log.Error(err))
	}
}

// results returns the reconciliation of every prepared level.
func (r *restorer) results() map[string]PrepareResult {
	out := make(map[string]PrepareResult, len(r.levels))
	for name, st := range r.levels {
		out[name] = st.result
	}
	return out
}
