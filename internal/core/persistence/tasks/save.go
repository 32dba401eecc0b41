package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/observability/metrics"
	"github.com/zeusync/zeusave/internal/core/persistence/records"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/core/system"
	"github.com/zeusync/zeusave/pkg/concurrent"
	"github.com/zeusync/zeusave/pkg/sequence"
)

type SaveState uint8

const (
	SaveNotStarted SaveState = iota
	SaveSerializingWorld
	SaveWaitingForThumbnail
	SaveWritingFile
	SaveFinished
)

// SaveOptions tune a single save.
type SaveOptions struct {
	// Override replaces an existing file. Without it saving over an existing slot fails.
	Override bool
	// Thumbnail captures a screenshot of Width x Height pixels stored beside the slot.
	Thumbnail     bool
	Width, Height int
	// OnSaved receives the saved slot, or nil on failure.
	OnSaved func(*slot.Slot)
}

// SaveTask serializes the world into the active slot and writes it to a file.
type SaveTask struct {
	base
	name  string
	opts  SaveOptions
	state SaveState

	slot *slot.Slot
	data *records.SlotData

	thumbMu   sync.Mutex
	thumbDone bool
	thumbPNG  []byte

	write *concurrent.Future[struct{}]
}

func NewSaveTask(sess *Session, name string, opts SaveOptions) *SaveTask {
	return &SaveTask{
		base: newBase(KindSave, sess, log.String("slot", name)),
		name: name,
		opts: opts,
	}
}

func (t *SaveTask) State() SaveState { return t.state }
func (t *SaveTask) SlotName() string { return t.name }

func (t *SaveTask) Start(ctx context.Context) {
	t.begin(ctx)
	sess := t.sess
	sess.Host.AssureActiveSlot()

	exists := sess.Files.Exists(t.ctx, t.name)
	if exists && !t.opts.Override {
		t.logger.Info("Slot already exists and override is disabled")
		t.finish(false)
		return
	}
	if exists {
		if err := sess.Files.Delete(t.ctx, t.name); err != nil {
			t.logger.Warn("Failed to delete previous save", log.Error(err))
		}
	}

	world := sess.World
	if world == nil {
		t.logger.Warn("No world to save")
		t.finish(false)
		return
	}

	t.slot = sess.Host.ActiveSlot()
	sess.Host.OnSaveBegan(t.slot)
	t.data = t.slot.Data()
	t.data.CleanRecords(true)
	t.data.Versions = sess.Files.Versions()

	sameFile := t.slot.FileName == t.name
	t.slot.FileName = t.name

	if t.opts.Thumbnail && sess.Thumbnails != nil {
		sess.Thumbnails.Capture(t.opts.Width, t.opts.Height, t.onThumbnail)
	} else {
		t.opts.Thumbnail = false
	}

	t.stampStats(world, sameFile)
	t.slot.Map = world.MapName()
	t.data.Map = t.slot.Map
	t.data.StoreGameInstance = t.slot.StoreGameInstance

	t.state = SaveSerializingWorld
	if err := t.serializeWorld(world); err != nil {
		t.logger.Error("World serialization failed", log.Error(err))
		t.finish(false)
		return
	}

	if t.opts.Thumbnail && !t.thumbnailReady() {
		t.state = SaveWaitingForThumbnail
		return
	}
	t.writeFile()
}

func (t *SaveTask) stampStats(world system.World, sameFile bool) {
	stats := &t.slot.Stats
	stats.SaveDate = t.sess.now()
	if stats.WasLoaded() {
		session := stats.SaveDate.Sub(stats.LoadDate)
		stats.PlayedTime += session
		if sameFile {
			stats.SlotPlayedTime += session
		} else {
			stats.SlotPlayedTime = session
		}
	} else {
		stats.PlayedTime = time.Duration(world.TimeSeconds() * float64(time.Second))
		stats.SlotPlayedTime = stats.PlayedTime
	}
	t.data.TimeSeconds = world.TimeSeconds()
}

func (t *SaveTask) serializeWorld(world system.World) error {
	if !world.HasAuthority() {
		t.logger.Info("World has no authority, skipping serialization")
		return nil
	}

	streaming := world.StreamingLevels()
	for _, sl := range streaming {
		if sl.IsLoaded() {
			t.data.EnsureSubLevel(sl.Name())
		}
	}

	perLevel := TasksPerLevel(t.sess.workers(), len(streaming))
	type planned struct {
		chunk *SerializeChunk
		level *records.LevelRecord
	}
	var plan []planned
	add := func(level system.Level, rec *records.LevelRecord, root bool) {
		for _, c := range planLevel(t.sess, world, t.slot, level, rec, perLevel, root) {
			plan = append(plan, planned{chunk: c, level: rec})
		}
	}

	add(world.PersistentLevel(), &t.data.RootLevel, true)
	for _, sl := range streaming {
		if level := sl.Loaded(); level != nil {
			add(level, t.data.FindLevel(sl.Name()), false)
		}
	}

	jobs := make([]func(context.Context) error, len(plan))
	for i, p := range plan {
		jobs[i] = p.chunk.Run
	}
	err := concurrent.FanOut(t.ctx, t.slot.IsMTSerializationSave(), jobs...)

	var serialized, skipped int
	for _, p := range plan {
		serialized += p.chunk.Serialized()
		skipped += p.chunk.Skipped()
		p.chunk.Dump(p.level, t.data)
	}
	t.sess.Metrics.AddActors(metrics.ActorsSerialized, serialized)
	t.sess.Metrics.AddActors(metrics.ActorsSkipped, skipped)
	t.logger.Debug("World serialized",
		log.Int("chunks", len(plan)),
		log.Int("actors", serialized),
		log.Int("skipped", skipped))
	return err
}

// planLevel clears rec and splits the level into chunks. The first chunk of the root level
// captures the global singletons and the first chunk of every level its level script.
func planLevel(sess *Session, world system.World, s *slot.Slot, level system.Level, rec *records.LevelRecord, tasks int, root bool) []*SerializeChunk {
	if level == nil || rec == nil {
		return nil
	}
	if !s.IsMTSerializationSave() {
		tasks = 1
	}
	rec.CleanRecords()

	f := rec.EffectiveFilter(s.Filter)
	f.Bake(sess.types())
	subsystems := s.SubsystemFilter.Clone()
	if subsystems != nil {
		subsystems.BakeAllowedClasses(sess.types())
	}

	actors := level.Actors()
	spans := sequence.Split(len(actors), tasks, MinObjectsPerTask)
	if len(spans) == 0 {
		spans = []sequence.Span{{}}
	}

	chunks := make([]*SerializeChunk, len(spans))
	for i, span := range spans {
		chunks[i] = NewSerializeChunk(ChunkConfig{
			World:             world,
			Level:             level,
			Actors:            actors,
			Span:              span,
			Filter:            f,
			Types:             sess.types(),
			Serializer:        sess.serializer(),
			Versions:          s.Data().Versions,
			Logger:            sess.logger(),
			Globals:           root && i == 0,
			StoreGameInstance: s.StoreGameInstance,
			SubsystemFilter:   subsystems,
			LevelScript:       i == 0,
		})
	}
	return chunks
}

func (t *SaveTask) onThumbnail(png []byte, err error) {
	if err != nil {
		t.logger.Warn("Thumbnail capture failed", log.Error(err))
		png = nil
	}
	t.thumbMu.Lock()
	t.thumbDone = true
	t.thumbPNG = png
	t.thumbMu.Unlock()
}

func (t *SaveTask) thumbnailReady() bool {
	t.thumbMu.Lock()
	defer t.thumbMu.Unlock()
	return t.thumbDone
}

func (t *SaveTask) thumbnail() []byte {
	t.thumbMu.Lock()
	defer t.thumbMu.Unlock()
	return t.thumbPNG
}

func (t *SaveTask) writeFile() {
	t.state = SaveWritingFile
	if t.slot.IsMTFilesSave() {
		t.write = t.sess.Files.Save(t.ctx, t.slot, t.data, t.thumbnail())
		return
	}
	err := t.sess.Files.SaveSync(t.ctx, t.slot, t.data, t.thumbnail())
	t.finish(err == nil)
}

func (t *SaveTask) Tick(time.Duration) {
	switch t.state {
	case SaveWaitingForThumbnail:
		if t.thumbnailReady() {
			t.writeFile()
		}
	case SaveWritingFile:
		if t.write != nil && t.write.Done() {
			_, err := t.write.Wait()
			t.finish(err == nil)
		}
	}
}

func (t *SaveTask) Cancel() {
	if t.finished {
		return
	}
	if t.write != nil {
		_, err := t.write.Wait()
		t.finish(err == nil)
		return
	}
	t.finish(false)
}

func (t *SaveTask) finish(ok bool) {
	if !t.end(ok) {
		return
	}
	t.state = SaveFinished
	if t.data != nil && ok {
		t.data.CleanRecords(true)
	}

	var saved *slot.Slot
	if ok {
		saved = t.sess.Host.ActiveSlot()
		t.logger.Info("Finished saving")
	}
	if t.opts.OnSaved != nil {
		t.opts.OnSaved(saved)
	}
	t.sess.Host.OnSaveFinished(t.slot, !ok)
}
