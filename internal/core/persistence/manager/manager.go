// Package manager owns the active slot and runs save and load tasks one at a time.
package manager

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/zeusync/zeusave/internal/core/events/bus"
	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/observability/metrics"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/internal/core/persistence/fileformat"
	"github.com/zeusync/zeusave/internal/core/persistence/files"
	"github.com/zeusync/zeusave/internal/core/persistence/settings"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/core/persistence/tasks"
	"github.com/zeusync/zeusave/internal/core/storage/interfaces"
	"github.com/zeusync/zeusave/internal/core/system"
	"github.com/zeusync/zeusave/pkg/concurrent"
	"github.com/zeusync/zeusave/pkg/sequence"
)

var (
	ErrNoStore = errors.New("manager: no blob storage")
	ErrClosed  = errors.New("manager: closed")
)

// Options wire a Manager. Only Store is required.
type Options struct {
	Settings   *settings.Settings
	World      system.World
	Store      interfaces.BlobStorage
	Types      *models.TypeRegistry
	Serializer archive.ObjectSerializer
	Maps       system.MapLoader
	Thumbnails system.ThumbnailCapturer
	Logger     log.Log
	Metrics    *metrics.Collector
	Bus        bus.EventBus
	Clock      func() time.Time
}

// Manager queues save and load tasks and runs them strictly in order: only the head of the
// queue is started or ticked. Unless noted, methods must be called from the goroutine that
// calls Tick.
type Manager struct {
	settings *settings.Settings
	logger   log.Log
	metrics  *metrics.Collector
	bus      bus.EventBus
	store    interfaces.BlobStorage
	lane     *concurrent.Lane
	files    *files.Files
	sess     *tasks.Session

	ctx       context.Context
	queue     *sequence.Queue[tasks.Task]
	active    *slot.Slot
	lastLoad  map[string]tasks.PrepareResult
	deferred  []func() bool
	sinceSave time.Duration
	closed    bool

	subsMu    sync.Mutex
	listeners map[Listener][]bus.Subscription
}

func New(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.Settings == nil {
		opts.Settings = settings.Default()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	if opts.Bus == nil {
		opts.Bus = bus.New()
	}
	if opts.Types == nil {
		opts.Types = models.NewTypeRegistry()
	}

	logger := opts.Logger.Named("manager")
	lane := concurrent.NewLane(64)
	format := fileformat.New(opts.Settings.FormatOptions(), opts.Logger)
	f := files.New(opts.Store, lane, format, opts.Settings.NewSlot, opts.Logger, opts.Metrics)

	m := &Manager{
		settings:  opts.Settings,
		logger:    logger,
		metrics:   opts.Metrics,
		bus:       opts.Bus,
		store:     opts.Store,
		lane:      lane,
		files:     f,
		ctx:       context.Background(),
		queue:     sequence.NewQueue[tasks.Task](4),
		listeners: make(map[Listener][]bus.Subscription),
	}
	m.sess = &tasks.Session{
		World:      opts.World,
		Types:      opts.Types,
		Serializer: opts.Serializer,
		Files:      f,
		Maps:       opts.Maps,
		Thumbnails: opts.Thumbnails,
		Host:       host{m},
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
		Workers:    opts.Settings.Workers,
		Clock:      opts.Clock,
	}
	return m, nil
}

func (m *Manager) Settings() *settings.Settings { return m.settings }

// Files gives access to slot files. It is safe for concurrent use.
func (m *Manager) Files() *files.Files { return m.files }

func (m *Manager) World() system.World { return m.sess.World }

// SetWorld replaces the world without going through a map load.
func (m *Manager) SetWorld(w system.World) { m.sess.World = w }

// CanLoadOrSave checks the preconditions shared by every save and load.
func (m *Manager) CanLoadOrSave(name string) bool {
	w := m.sess.World
	return !m.closed && w != nil && w.HasAuthority() && name != ""
}

// SaveSlot queues a save of the world into the named slot. It returns false when the save could
// not be queued. The outcome arrives through opts.OnSaved and the save.finished event.
func (m *Manager) SaveSlot(name string, opts tasks.SaveOptions) bool {
	if !m.CanLoadOrSave(name) {
		m.logger.Debug("Cannot save now", log.String("slot", name))
		return false
	}
	if !m.hasRoomFor(name) {
		m.logger.Warn("Slot limit reached", log.String("slot", name), log.Int("max_slots", m.settings.MaxSlots))
		return false
	}
	if opts.Thumbnail && (opts.Width <= 0 || opts.Height <= 0) {
		opts.Width, opts.Height = m.settings.Thumbnail.Width, m.settings.Thumbnail.Height
	}
	m.enqueue(tasks.NewSaveTask(m.sess, name, opts))
	return true
}

// SaveCurrentSlot saves over the active slot, or into the default slot when there is none.
func (m *Manager) SaveCurrentSlot(opts tasks.SaveOptions) bool {
	opts.Override = true
	if !opts.Thumbnail {
		opts.Thumbnail = m.settings.Thumbnail.Enabled
	}
	return m.SaveSlot(m.currentSlotName(), opts)
}

// LoadSlot queues a load of the named slot. onLoaded receives the loaded slot or nil.
func (m *Manager) LoadSlot(name string, onLoaded func(*slot.Slot)) bool {
	if !m.CanLoadOrSave(name) || !m.IsSlotSaved(name) {
		m.logger.Debug("Cannot load now", log.String("slot", name))
		return false
	}
	m.enqueue(tasks.NewLoadTask(m.sess, name, onLoaded))
	return true
}

func (m *Manager) ReloadCurrentSlot(onLoaded func(*slot.Slot)) bool {
	return m.LoadSlot(m.currentSlotName(), onLoaded)
}

func (m *Manager) currentSlotName() string {
	if m.active != nil && m.active.FileName != "" && m.active.FileName != slot.DefaultFileName {
		return m.active.FileName
	}
	return m.settings.DefaultSlot
}

func (m *Manager) hasRoomFor(name string) bool {
	if m.settings.MaxSlots <= 0 || m.files.Exists(m.ctx, name) {
		return true
	}
	names, err := m.files.List(m.ctx)
	if err != nil {
		m.logger.Warn("Failed to count slots", log.Error(err))
		return false
	}
	return len(names) < m.settings.MaxSlots
}

// PreloadSlot reads the metadata of a slot without its world data. Safe for concurrent use.
func (m *Manager) PreloadSlot(name string) *slot.Slot {
	s, err := m.files.LoadSync(m.ctx, name, nil, false)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			m.logger.Warn("Failed to preload slot", log.String("slot", name), log.Error(err))
		}
		return nil
	}
	return s
}

// LoadAllSlots reads the metadata of every slot on the file lane. cb runs on a later Tick.
func (m *Manager) LoadAllSlots(sortByRecent bool, cb func([]*slot.Slot)) {
	ctx := m.ctx
	f := concurrent.Submit(m.lane, func() ([]*slot.Slot, error) {
		return m.files.LoadAll(ctx, false)
	})
	m.defer_(f.Done, func() {
		slots, err := f.Wait()
		if err != nil {
			m.logger.Warn("Failed to list slots", log.Error(err))
		}
		if sortByRecent {
			SortByRecent(slots)
		}
		if cb != nil {
			cb(slots)
		}
	})
}

// SortByRecent orders slots by save date, newest first.
func SortByRecent(slots []*slot.Slot) {
	slices.SortStableFunc(slots, func(a, b *slot.Slot) int {
		return cmp.Compare(b.Stats.SaveDate.UnixNano(), a.Stats.SaveDate.UnixNano())
	})
}

// DeleteSlot removes a slot file and its thumbnail.
func (m *Manager) DeleteSlot(name string) bool {
	if err := m.files.Delete(m.ctx, name); err != nil {
		m.logger.Warn("Failed to delete slot", log.String("slot", name), log.Error(err))
		return false
	}
	return true
}

// DeleteAllSlots removes every slot on the file lane. cb receives the number deleted on a later Tick.
func (m *Manager) DeleteAllSlots(cb func(int)) {
	ctx := m.ctx
	f := concurrent.Submit(m.lane, func() (int, error) {
		return m.files.DeleteAll(ctx)
	})
	m.defer_(f.Done, func() {
		n, err := f.Wait()
		if err != nil {
			m.logger.Warn("Failed to delete some slots", log.Error(err))
		}
		if cb != nil {
			cb(n)
		}
	})
}

func (m *Manager) IsSlotSaved(name string) bool {
	return m.files.Exists(m.ctx, name)
}

// FindSlotNames lists stored slot names. Safe for concurrent use.
func (m *Manager) FindSlotNames() ([]string, error) {
	return m.files.List(m.ctx)
}

// ListSlots preloads the metadata of every slot, newest first. Safe for concurrent use.
func (m *Manager) ListSlots(ctx context.Context) ([]*slot.Slot, error) {
	slots, err := m.files.LoadAll(ctx, false)
	if err != nil {
		return nil, err
	}
	SortByRecent(slots)
	return slots, nil
}

func (m *Manager) ActiveSlot() *slot.Slot     { return m.active }
func (m *Manager) SetActiveSlot(s *slot.Slot) { m.active = s }
func (m *Manager) IsInSlot() bool             { return m.active != nil }

// LastReconciliation reports, per level, how the last successful full load matched saved
// actors against the world.
func (m *Manager) LastReconciliation() map[string]tasks.PrepareResult { return m.lastLoad }

// IsSavingOrLoading is true while any task is queued or running.
func (m *Manager) IsSavingOrLoading() bool { return !m.queue.IsEmpty() }

// Tick advances the head task, runs finished deferred callbacks and the periodic save.
func (m *Manager) Tick(dt time.Duration) {
	m.runDeferred()
	m.advance(dt)
	m.periodicSave(dt)
}

func (m *Manager) advance(dt time.Duration) {
	head, ok := m.queue.Peek()
	if !ok {
		return
	}
	if !head.Started() {
		head.Start(m.ctx)
	} else if !head.Finished() {
		head.Tick(dt)
	}
	m.drain()
}

func (m *Manager) enqueue(t tasks.Task) {
	isHead := m.queue.Enqueue(t)
	m.metrics.SetQueueDepth(m.queue.Len())
	if isHead {
		t.Start(m.ctx)
		m.drain()
	}
}

// drain pops finished tasks and starts the next head.
func (m *Manager) drain() {
	for {
		head, ok := m.queue.Peek()
		if !ok || !head.Finished() {
			break
		}
		m.queue.Dequeue()
		m.metrics.SetQueueDepth(m.queue.Len())
		if lt, ok := head.(*tasks.LoadTask); ok && lt.Succeeded() {
			m.lastLoad = lt.Reconciliation()
		}
		if next, ok := m.queue.Peek(); ok && !next.Started() {
			next.Start(m.ctx)
		}
	}
}

func (m *Manager) periodicSave(dt time.Duration) {
	if !m.settings.PeriodicSave || m.active == nil {
		m.sinceSave = 0
		return
	}
	m.sinceSave += dt
	if m.sinceSave < m.settings.PeriodicSaveInterval || m.IsSavingOrLoading() {
		return
	}
	m.sinceSave = 0
	m.logger.Debug("Periodic save")
	m.SaveCurrentSlot(tasks.SaveOptions{})
}

func (m *Manager) defer_(done func() bool, fn func()) {
	m.deferred = append(m.deferred, func() bool {
		if !done() {
			return false
		}
		fn()
		return true
	})
}

func (m *Manager) runDeferred() {
	if len(m.deferred) == 0 {
		return
	}
	pending := m.deferred
	m.deferred = nil
	for _, fn := range pending {
		if !fn() {
			m.deferred = append(m.deferred, fn)
		}
	}
}

// OnMapLoadStarted is called by the host before the world is torn down for a map change.
func (m *Manager) OnMapLoadStarted(name string) {
	m.logger.Debug("Map load started", log.String("map", name))
}

// OnMapLoadFinished installs the new world and resumes a load waiting for it.
func (m *Manager) OnMapLoadFinished(world system.World) {
	m.sess.World = world
	if head, ok := m.queue.Peek(); ok {
		if lt, ok := head.(*tasks.LoadTask); ok {
			lt.OnMapLoaded(world)
			m.drain()
		}
	}
}

// OnLevelShown restores a streaming level from the active slot.
func (m *Manager) OnLevelShown(level system.StreamingLevel) {
	if m.settings.SaveAndLoadSublevels && m.IsInSlot() && level != nil {
		m.enqueue(tasks.NewLoadLevelTask(m.sess, level))
	}
}

// OnLevelHidden captures a streaming level into the active slot before it unloads.
func (m *Manager) OnLevelHidden(level system.StreamingLevel) {
	if m.settings.SaveAndLoadSublevels && m.IsInSlot() && level != nil {
		m.enqueue(tasks.NewSaveLevelTask(m.sess, level))
	}
}

// Start loads the most recent slot when LoadOnStart is set. Otherwise it creates an empty
// active slot so periodic saves have a target.
func (m *Manager) Start(ctx context.Context) error {
	if m.closed {
		return ErrClosed
	}
	m.ctx = ctx
	if m.settings.LoadOnStart {
		slots, err := m.ListSlots(ctx)
		if err != nil {
			return err
		}
		if len(slots) > 0 && m.LoadSlot(slots[0].FileName, nil) {
			m.logger.Info("Loading most recent slot", log.String("slot", slots[0].FileName))
			return nil
		}
	}
	host{m}.AssureActiveSlot()
	return nil
}

// Shutdown saves the active slot when SaveOnClose is set and runs queued tasks to completion.
// When ctx ends first the running task is cancelled and the rest are dropped.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.closed {
		return nil
	}
	// The context given to Start is usually done by now; ctx alone bounds the drain.
	m.ctx = context.WithoutCancel(m.ctx)
	if m.settings.SaveOnClose && m.IsInSlot() {
		m.SaveCurrentSlot(tasks.SaveOptions{})
	}

	for !m.queue.IsEmpty() {
		if ctx.Err() != nil {
			if head, ok := m.queue.Peek(); ok && head.Started() {
				head.Cancel()
			}
			dropped := m.queue.Len()
			m.queue = sequence.NewQueue[tasks.Task](0)
			m.logger.Warn("Shutdown interrupted, dropping tasks", log.Int("tasks", dropped))
			break
		}
		m.advance(0)
		if !m.queue.IsEmpty() {
			time.Sleep(time.Millisecond)
		}
	}
	m.metrics.SetQueueDepth(0)
	m.runDeferred()

	m.closed = true
	m.lane.Close()
	return m.store.Close()
}

// host is the Manager seen from a task.
type host struct{ m *Manager }

func (h host) ActiveSlot() *slot.Slot { return h.m.active }

func (h host) AssureActiveSlot() *slot.Slot {
	if h.m.active == nil {
		h.m.active = h.m.settings.NewSlot()
	}
	return h.m.active
}

func (h host) SetActiveSlot(s *slot.Slot)         { h.m.active = s }
func (h host) PreloadSlot(name string) *slot.Slot { return h.m.PreloadSlot(name) }

func (h host) OnSaveBegan(s *slot.Slot) { h.m.publish(EventSaveBegan, s, false) }
func (h host) OnSaveFinished(s *slot.Slot, failed bool) {
	h.m.publish(EventSaveFinished, s, failed)
}
func (h host) OnLoadBegan(s *slot.Slot) { h.m.publish(EventLoadBegan, s, false) }
func (h host) OnLoadFinished(s *slot.Slot, failed bool) {
	h.m.publish(EventLoadFinished, s, failed)
}
