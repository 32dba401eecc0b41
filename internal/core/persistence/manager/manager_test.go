package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/persistence/files"
	"github.com/zeusync/zeusave/internal/core/persistence/settings"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/core/persistence/tasks"
	"github.com/zeusync/zeusave/internal/core/storage/local"
	"github.com/zeusync/zeusave/internal/core/system/sim"
)

// stepClock moves forward one second on every read so save dates are strictly ordered.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recorder struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (r *recorder) add(e LifecycleEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) listener() *ListenerFuncs {
	return &ListenerFuncs{SaveBegan: r.add, SaveFinished: r.add, LoadBegan: r.add, LoadFinished: r.add}
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	dir   string
	types *models.TypeRegistry
	world *sim.World
	maps  *sim.Maps
	cfg   *settings.Settings
	m     *Manager
	rec   *recorder
}

func testSettings() *settings.Settings {
	cfg := settings.Default()
	cfg.Workers = 4
	cfg.PeriodicSave = false
	cfg.LoadOnStart = false
	cfg.Log.Level = "silent"
	return cfg
}

func newFixture(t *testing.T, cfg *settings.Settings) *fixture {
	t.Helper()
	fx := &fixture{dir: t.TempDir(), types: models.NewTypeRegistry(), maps: sim.NewMaps(), cfg: cfg}
	fx.world = sim.NewDemoWorld("Overworld", fx.types, 30, 3)
	fx.maps.Register("Overworld", sim.DemoBuilder(fx.types, 30, 3))
	fx.m = fx.open(t, fx.world)
	return fx
}

func (fx *fixture) open(t *testing.T, world *sim.World) *Manager {
	t.Helper()
	store, err := local.New(fx.dir, 0)
	require.NoError(t, err)
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m, err := New(Options{
		Settings: fx.cfg,
		World:    world,
		Store:    store,
		Types:    fx.types,
		Maps:     fx.maps,
		Clock:    clock.Now,
	})
	require.NoError(t, err)
	fx.rec = &recorder{}
	require.NoError(t, m.Subscribe(fx.rec.listener()))
	return m
}

// settle ticks until the queue is empty, delivering pending maps the way a host would.
func (fx *fixture) settle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for fx.m.IsSavingOrLoading() || len(fx.m.deferred) > 0 {
		require.True(t, time.Now().Before(deadline), "manager did not settle")
		fx.m.Tick(16 * time.Millisecond)
		if w := fx.maps.TakePending(); w != nil {
			fx.m.OnMapLoadStarted(w.MapName())
			fx.m.OnMapLoadFinished(w)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestManager_SaveThenLoad(t *testing.T) {
	fx := newFixture(t, testSettings())

	var saved *slot.Slot
	require.True(t, fx.m.SaveSlot("one", tasks.SaveOptions{OnSaved: func(s *slot.Slot) { saved = s }}))
	fx.settle(t)
	require.NotNil(t, saved)
	assert.Equal(t, "one", fx.m.ActiveSlot().FileName)
	assert.True(t, fx.m.IsSlotSaved("one"))
	assert.Equal(t, []string{EventSaveBegan, EventSaveFinished}, fx.rec.types())

	assert.Nil(t, fx.m.LastReconciliation(), "saves do not record a reconciliation")

	door := fx.world.Persistent().Actors()[2].(*sim.Actor)
	door.SetText("label", "moved")

	var loaded *slot.Slot
	require.True(t, fx.m.LoadSlot("one", func(s *slot.Slot) { loaded = s }))
	fx.settle(t)
	require.NotNil(t, loaded)
	assert.Equal(t, "actor-2", door.Text("label"))
	recon := fx.m.LastReconciliation()
	require.Contains(t, recon, "Persistent")
	assert.Len(t, recon["Persistent"].Matched, 30)
	assert.Empty(t, recon["Persistent"].Destroyed)
	assert.Empty(t, recon["Persistent"].Respawned)
	assert.Equal(t, []string{EventSaveBegan, EventSaveFinished, EventLoadBegan, EventLoadFinished}, fx.rec.types())
	assert.False(t, fx.rec.events[3].Failed)
	assert.Equal(t, "one", fx.rec.events[3].Name)
}

func TestManager_RunsTasksInOrder(t *testing.T) {
	fx := newFixture(t, testSettings())

	require.True(t, fx.m.SaveSlot("a", tasks.SaveOptions{}))
	require.True(t, fx.m.SaveSlot("b", tasks.SaveOptions{}))
	assert.True(t, fx.m.IsSavingOrLoading())
	fx.settle(t)

	var finished []string
	for _, e := range fx.rec.events {
		if e.Type == EventSaveFinished {
			finished = append(finished, e.Name)
		}
	}
	assert.Equal(t, []string{"a", "b"}, finished)
	assert.Equal(t, "b", fx.m.ActiveSlot().FileName)
}

func TestManager_Preconditions(t *testing.T) {
	fx := newFixture(t, testSettings())

	assert.False(t, fx.m.SaveSlot("", tasks.SaveOptions{}))
	assert.False(t, fx.m.LoadSlot("missing", nil))

	fx.world.SetAuthority(false)
	assert.False(t, fx.m.CanLoadOrSave("x"))
	assert.False(t, fx.m.SaveSlot("x", tasks.SaveOptions{}))
	fx.world.SetAuthority(true)

	fx.m.SetWorld(nil)
	assert.False(t, fx.m.CanLoadOrSave("x"))
	assert.False(t, fx.m.IsSavingOrLoading())
}

func TestManager_MaxSlots(t *testing.T) {
	cfg := testSettings()
	cfg.MaxSlots = 1
	fx := newFixture(t, cfg)

	require.True(t, fx.m.SaveSlot("a", tasks.SaveOptions{}))
	fx.settle(t)
	assert.False(t, fx.m.SaveSlot("b", tasks.SaveOptions{}))
	assert.True(t, fx.m.SaveSlot("a", tasks.SaveOptions{Override: true}))
	fx.settle(t)

	names, err := fx.m.FindSlotNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
}

func TestManager_LoadAllAndDeleteAll(t *testing.T) {
	fx := newFixture(t, testSettings())
	for _, name := range []string{"first", "second", "third"} {
		require.True(t, fx.m.SaveSlot(name, tasks.SaveOptions{}))
		fx.settle(t)
	}

	var listed []*slot.Slot
	fx.m.LoadAllSlots(true, func(s []*slot.Slot) { listed = s })
	assert.Nil(t, listed)
	fx.settle(t)
	require.Len(t, listed, 3)
	assert.Equal(t, "third", listed[0].FileName)
	assert.Equal(t, "first", listed[2].FileName)
	assert.Empty(t, listed[0].Data().RootLevel.Actors)

	assert.True(t, fx.m.DeleteSlot("second"))
	assert.False(t, fx.m.IsSlotSaved("second"))

	deleted := -1
	fx.m.DeleteAllSlots(func(n int) { deleted = n })
	fx.settle(t)
	assert.Equal(t, 2, deleted)
	names, err := fx.m.FindSlotNames()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestManager_PeriodicSave(t *testing.T) {
	cfg := testSettings()
	cfg.PeriodicSave = true
	cfg.PeriodicSaveInterval = time.Second
	fx := newFixture(t, cfg)
	require.NoError(t, fx.m.Start(context.Background()))
	require.True(t, fx.m.IsInSlot())

	fx.m.Tick(500 * time.Millisecond)
	assert.False(t, fx.m.IsSavingOrLoading())
	fx.m.Tick(600 * time.Millisecond)
	fx.settle(t)
	assert.True(t, fx.m.IsSlotSaved(cfg.DefaultSlot))
	assert.Equal(t, cfg.DefaultSlot, fx.m.ActiveSlot().FileName)
}

func TestManager_StartLoadsMostRecent(t *testing.T) {
	fx := newFixture(t, testSettings())
	require.True(t, fx.m.SaveSlot("old", tasks.SaveOptions{}))
	fx.settle(t)
	require.True(t, fx.m.SaveSlot("new", tasks.SaveOptions{}))
	fx.settle(t)
	require.NoError(t, fx.m.Shutdown(context.Background()))

	fx.cfg.LoadOnStart = true
	fx.m = fx.open(t, sim.NewDemoWorld("Overworld", fx.types, 30, 3))
	require.NoError(t, fx.m.Start(context.Background()))
	fx.settle(t)
	assert.Equal(t, "new", fx.m.ActiveSlot().FileName)
	assert.Equal(t, []string{EventLoadBegan, EventLoadFinished}, fx.rec.types())
}

func TestManager_LoadSwitchesMap(t *testing.T) {
	fx := newFixture(t, testSettings())
	require.True(t, fx.m.SaveSlot("travel", tasks.SaveOptions{}))
	fx.settle(t)

	fx.m.SetWorld(sim.NewDemoWorld("Elsewhere", fx.types, 5, 1))
	require.True(t, fx.m.LoadSlot("travel", nil))
	fx.settle(t)

	assert.Equal(t, "Overworld", fx.m.World().MapName())
	assert.Equal(t, []string{"Overworld"}, fx.maps.Opened())
	assert.False(t, fx.rec.events[len(fx.rec.events)-1].Failed)
}

func TestManager_SublevelRoundTrip(t *testing.T) {
	fx := newFixture(t, testSettings())
	require.True(t, fx.m.SaveSlot("one", tasks.SaveOptions{}))
	fx.settle(t)

	dungeon := fx.world.StreamingLevel("Dungeon")
	guard := dungeon.Level().Actor("Guard_00")
	require.NotNil(t, guard)

	guard.SetTransform(models.At(models.Vector{X: 42}))
	fx.m.OnLevelHidden(dungeon)
	fx.settle(t)

	guard.SetTransform(models.At(models.Vector{X: 7}))
	fx.m.OnLevelShown(dungeon)
	fx.settle(t)
	assert.InDelta(t, 42, guard.Transform().Location.X, 1e-9)
}

func TestManager_UnsubscribeStopsEvents(t *testing.T) {
	fx := newFixture(t, testSettings())
	other := &recorder{}
	l := other.listener()
	require.NoError(t, fx.m.Subscribe(l))
	require.NoError(t, fx.m.Subscribe(l))

	require.True(t, fx.m.SaveSlot("a", tasks.SaveOptions{}))
	fx.settle(t)
	assert.Len(t, other.types(), 2)

	fx.m.Unsubscribe(l)
	require.True(t, fx.m.SaveSlot("a", tasks.SaveOptions{Override: true}))
	fx.settle(t)
	assert.Len(t, other.types(), 2)
	assert.Len(t, fx.rec.types(), 4)
}

func TestManager_ShutdownSavesOnClose(t *testing.T) {
	cfg := testSettings()
	cfg.SaveOnClose = true
	fx := newFixture(t, cfg)
	require.NoError(t, fx.m.Start(context.Background()))

	require.NoError(t, fx.m.Shutdown(context.Background()))
	_, err := os.Stat(filepath.Join(fx.dir, files.SlotKey(cfg.DefaultSlot)))
	assert.NoError(t, err)
	assert.False(t, fx.m.SaveSlot("late", tasks.SaveOptions{}))
	assert.ErrorIs(t, fx.m.Start(context.Background()), ErrClosed)
}
