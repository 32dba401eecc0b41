package tasks

import (
	"context"
	"time"

	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/persistence/records"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/core/system"
	"github.com/zeusync/zeusave/pkg/concurrent"
)

type LoadState uint8

const (
	LoadNotStarted LoadState = iota
	LoadingFile
	LoadingMap
	WaitingForData
	Deserializing
	LoadFinished
)

func (s LoadState) String() string {
	switch s {
	case LoadNotStarted:
		return "not_started"
	case LoadingFile:
		return "loading_file"
	case LoadingMap:
		return "loading_map"
	case WaitingForData:
		return "waiting_for_data"
	case Deserializing:
		return "deserializing"
	case LoadFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// LoadTask reads a slot file, switches map when needed and applies the saved state to the world.
type LoadTask struct {
	base
	name     string
	onLoaded func(*slot.Slot)
	state    LoadState

	preloaded *slot.Slot
	file      *concurrent.Future[*slot.Slot]
	slot      *slot.Slot
	world     system.World

	restorer *restorer
}

func NewLoadTask(sess *Session, name string, onLoaded func(*slot.Slot)) *LoadTask {
	return &LoadTask{
		base:     newBase(KindLoad, sess, log.String("slot", name)),
		name:     name,
		onLoaded: onLoaded,
	}
}

func (t *LoadTask) State() LoadState    { return t.state }
func (t *LoadTask) SlotName() string    { return t.name }
func (t *LoadTask) World() system.World { return t.world }

// Reconciliation returns what preparing each level did, keyed by level name.
func (t *LoadTask) Reconciliation() map[string]PrepareResult {
	if t.restorer == nil {
		return nil
	}
	return t.restorer.results()
}

func (t *LoadTask) Start(ctx context.Context) {
	t.begin(ctx)
	sess := t.sess

	t.preloaded = sess.Host.PreloadSlot(t.name)
	if t.preloaded == nil {
		t.logger.Info("Slot not found")
		t.finish(false)
		return
	}

	// the lane fills a private copy so the preloaded slot is never shared with it
	hint := t.preloaded.Clone()
	t.state = LoadingFile
	if t.preloaded.IsMTFilesLoad() {
		t.file = sess.Files.Load(t.ctx, t.name, hint, true)
	} else {
		t.file = concurrent.Resolved(sess.Files.LoadSync(t.ctx, t.name, hint, true))
	}

	t.world = sess.World
	target := t.preloaded.Map
	if t.world == nil || (target != "" && target != t.world.MapName()) {
		t.state = LoadingMap
		if sess.Maps == nil || !sess.Maps.MapExists(target) {
			t.logger.Warn("Slot map does not exist", log.String("map", target))
			t.finish(false)
			return
		}
		t.logger.Debug("Opening map", log.String("map", target))
		if err := sess.Maps.OpenMap(target); err != nil {
			t.logger.Warn("Failed to open map", log.String("map", target), log.Error(err))
			t.finish(false)
		}
		return
	}
	t.checkFileLoaded()
}

// OnMapLoaded resumes the task once the slot map is the current world.
func (t *LoadTask) OnMapLoaded(world system.World) {
	if t.finished || t.state != LoadingMap {
		return
	}
	if world == nil {
		t.logger.Warn("Map loaded without a world")
		t.finish(false)
		return
	}
	t.world = world
	if target := t.preloaded.Map; target != "" && world.MapName() != target {
		t.logger.Debug("Ignoring unrelated map", log.String("map", world.MapName()))
		return
	}
	t.checkFileLoaded()
}

func (t *LoadTask) checkFileLoaded() {
	if !t.file.Done() {
		t.state = WaitingForData
		return
	}
	s, err := t.file.Wait()
	if err != nil || s == nil {
		t.logger.Warn("Failed to load slot file", log.Error(err))
		t.finish(false)
		return
	}
	t.slot = s
	t.startDeserialization()
}

func (t *LoadTask) startDeserialization() {
	sess := t.sess
	t.state = Deserializing
	t.slot.Stats.LoadDate = sess.now()
	sess.Host.SetActiveSlot(t.slot)
	sess.Host.OnLoadBegan(t.slot)

	t.restorer = newRestorer(sess, t.logger, t.world, t.slot)
	t.restorer.restoreGlobals()
	t.restorer.prepareWorld()

	if t.slot.IsFrameSplitLoad() {
		// payloads are applied from Tick, one budget per frame
		t.restorer.current = t.restorer.levels[records.PersistentLevelName]
		if t.restorer.current == nil {
			t.restorer.current = t.restorer.nextLevel(nil)
		}
		return
	}
	t.restorer.applyAll()
	t.finishedDeserializing()
}

// Resume applies actors until budget is spent. It is a no-op outside the deserializing state.
func (t *LoadTask) Resume(budget time.Duration) Progress {
	if t.state != Deserializing || t.restorer == nil {
		return Done
	}
	if t.restorer.resume(budget) == Continue {
		return Continue
	}
	t.finishedDeserializing()
	return Done
}

func (t *LoadTask) finishedDeserializing() {
	t.slot.Data().CleanRecords(true)
	t.logger.Info("Finished loading",
		log.Int("applied", t.restorer.applied),
		log.Int("skipped", t.restorer.skipped))
	t.finish(true)
}

func (t *LoadTask) Tick(time.Duration) {
	switch t.state {
	case WaitingForData:
		t.checkFileLoaded()
	case Deserializing:
		if t.slot.IsFrameSplitLoad() {
			t.Resume(t.slot.FrameBudget())
		}
	}
}

func (t *LoadTask) Cancel() {
	if t.finished {
		return
	}
	if t.file != nil {
		_, _ = t.file.Wait()
	}
	t.finish(false)
}

func (t *LoadTask) finish(ok bool) {
	if !t.end(ok) {
		return
	}
	t.state = LoadFinished

	var loaded *slot.Slot
	if ok {
		loaded = t.slot
	}
	if t.onLoaded != nil {
		t.onLoaded(loaded)
	}
	t.sess.Host.OnLoadFinished(t.slot, !ok)
}
