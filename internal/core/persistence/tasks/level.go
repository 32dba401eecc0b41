package tasks

import (
	"context"
	"time"

	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/observability/metrics"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/core/system"
	"github.com/zeusync/zeusave/pkg/concurrent"
)

// SaveLevelTask captures one streaming level into the active slot data, typically right before
// the level unloads. Nothing is written to disk.
type SaveLevelTask struct {
	base
	level system.StreamingLevel
}

func NewSaveLevelTask(sess *Session, level system.StreamingLevel) *SaveLevelTask {
	name := ""
	if level != nil {
		name = level.Name()
	}
	return &SaveLevelTask{
		base:  newBase(KindSaveLevel, sess, log.String("level", name)),
		level: level,
	}
}

func (t *SaveLevelTask) Start(ctx context.Context) {
	t.begin(ctx)
	s := t.sess.Host.ActiveSlot()
	world := t.sess.World
	if s == nil || world == nil || t.level == nil || t.level.Loaded() == nil {
		t.logger.Debug("Nothing to save for level")
		t.end(false)
		return
	}
	if !world.HasAuthority() {
		t.end(false)
		return
	}

	data := s.Data()
	if t.sess.Files != nil {
		data.Versions = t.sess.Files.Versions()
	}
	rec := data.EnsureSubLevel(t.level.Name())
	perLevel := TasksPerLevel(t.sess.workers(), len(world.StreamingLevels()))
	chunks := planLevel(t.sess, world, s, t.level.Loaded(), rec, perLevel, false)

	jobs := make([]func(context.Context) error, len(chunks))
	for i, c := range chunks {
		jobs[i] = c.Run
	}
	err := concurrent.FanOut(t.ctx, s.IsMTSerializationSave(), jobs...)
	var serialized int
	for _, c := range chunks {
		serialized += c.Serialized()
		c.Dump(rec, data)
	}
	t.sess.Metrics.AddActors(metrics.ActorsSerialized, serialized)
	if err != nil {
		t.logger.Warn("Level serialization interrupted", log.Error(err))
	}
	t.end(err == nil)
}

func (t *SaveLevelTask) Tick(time.Duration) {}

func (t *SaveLevelTask) Cancel() {
	t.end(false)
}

// LoadLevelTask applies the active slot record of one streaming level after it finished loading.
// Records of other levels are left untouched.
type LoadLevelTask struct {
	base
	level    system.StreamingLevel
	slot     *slot.Slot
	restorer *restorer
}

func NewLoadLevelTask(sess *Session, level system.StreamingLevel) *LoadLevelTask {
	name := ""
	if level != nil {
		name = level.Name()
	}
	return &LoadLevelTask{
		base:  newBase(KindLoadLevel, sess, log.String("level", name)),
		level: level,
	}
}

// Reconciliation returns what preparing the level did.
func (t *LoadLevelTask) Reconciliation() PrepareResult {
	if t.restorer == nil || t.level == nil {
		return PrepareResult{}
	}
	return t.restorer.results()[t.level.Name()]
}

func (t *LoadLevelTask) Start(ctx context.Context) {
	t.begin(ctx)
	t.slot = t.sess.Host.ActiveSlot()
	world := t.sess.World
	if t.slot == nil || world == nil || t.level == nil {
		t.end(false)
		return
	}
	level := t.level.Loaded()
	if level == nil {
		t.end(false)
		return
	}
	rec := t.slot.Data().FindLevel(t.level.Name())
	if rec == nil {
		t.logger.Debug("No record for level")
		t.end(false)
		return
	}

	t.restorer = newRestorer(t.sess, t.logger, world, t.slot)
	t.restorer.single = true
	t.restorer.current = t.restorer.prepare(t.level.Name(), t.level, level, rec)

	if t.slot.IsFrameSplitLoad() {
		return
	}
	t.restorer.applyAll()
	t.end(true)
}

func (t *LoadLevelTask) Tick(time.Duration) {
	if t.finished || t.restorer == nil {
		return
	}
	if t.restorer.resume(t.slot.FrameBudget()) == Done {
		t.end(true)
	}
}

func (t *LoadLevelTask) Cancel() {
	t.end(false)
}
