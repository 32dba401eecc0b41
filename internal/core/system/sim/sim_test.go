package sim

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
)

func TestWorld_SpawnAndDestroy(t *testing.T) {
	reg := models.NewTypeRegistry()
	RegisterDemoTypes(reg)
	w := NewWorld("Overworld", reg)

	placed := w.Place(w.Persistent(), TypeDoor, "Door", models.IdentityTransform)
	assert.False(t, placed.IsProcedural())

	spawned, err := w.Spawn(w.PersistentLevel(), TypeDoor, "Door", models.At(models.Vector{X: 5}))
	require.NoError(t, err)
	assert.Equal(t, "Door_1", spawned.Name())
	assert.True(t, spawned.IsProcedural())
	assert.Equal(t, 5.0, spawned.Transform().Location.X)

	_, err = w.Spawn(w.PersistentLevel(), TypeHealth, "Bad", models.IdentityTransform)
	require.ErrorIs(t, err, ErrNotActorType)
	_, err = w.Spawn(&Level{name: "Other"}, TypeDoor, "Bad", models.IdentityTransform)
	require.ErrorIs(t, err, ErrForeignLevel)

	require.NoError(t, w.Destroy(placed))
	assert.False(t, placed.IsValid())
	assert.Equal(t, 1, w.Persistent().Len())
	require.ErrorIs(t, w.Destroy(placed), ErrNotFound)
}

func TestWorld_FindObject(t *testing.T) {
	reg := models.NewTypeRegistry()
	w := NewDemoWorld("Overworld", reg, 5, 1)

	enemy := w.Place(w.Persistent(), TypeEnemy, "Boss", models.IdentityTransform)
	assert.Same(t, enemy, w.FindObject(enemy.Path()))
	assert.Equal(t, enemy.Component("Health"), w.FindObject(enemy.Path()+".Health"))
	assert.NotNil(t, w.FindObject("/Game/GameInstance.Quests"))
	assert.NotNil(t, w.FindObject("Overworld:Weather"))
	assert.Nil(t, w.FindObject("Overworld.Persistent:Nobody"))

	guard := w.StreamingLevel("Dungeon").Level().Actor("Guard_00")
	require.NotNil(t, guard)
	assert.NotNil(t, w.FindObject(guard.Path()))
	w.StreamingLevel("Dungeon").SetLoaded(false)
	assert.Nil(t, w.FindObject(guard.Path()))
	assert.Nil(t, w.StreamingLevel("Dungeon").Loaded())
}

func TestObject_FieldsRoundTrip(t *testing.T) {
	target := NewObject("Target", models.TypeActor, "/t")
	src := NewObject("Src", models.TypeActor, "/s")
	src.SetInt("gold", 42)
	src.SetText("name", "bob")
	src.SetRef("target", target)

	data, err := archive.SerializeObject(archive.DefaultSerializer{}, src, archive.VersionInfo{})
	require.NoError(t, err)

	table := archive.NewReferenceTable(nil, nil)
	table.Add(target)
	dst := NewObject("Src", models.TypeActor, "/s")
	dst.SetInt("stale", 1)
	require.NoError(t, archive.DeserializeObject(archive.DefaultSerializer{}, dst, data, archive.VersionInfo{}, table))

	assert.Equal(t, int64(42), dst.Int("gold"))
	assert.Zero(t, dst.Int("stale"))
	assert.Equal(t, "bob", dst.Text("name"))
	assert.Same(t, target, dst.Ref("target"))
}

func TestMaps(t *testing.T) {
	reg := models.NewTypeRegistry()
	m := NewMaps()
	m.Register("Arena", DemoBuilder(reg, 3, 7))

	assert.True(t, m.MapExists("Arena"))
	assert.False(t, m.MapExists("Moon"))
	require.ErrorIs(t, m.OpenMap("Moon"), ErrUnknownMap)
	assert.Nil(t, m.TakePending())

	require.NoError(t, m.OpenMap("Arena"))
	w := m.TakePending()
	require.NotNil(t, w)
	assert.Equal(t, "Arena", w.MapName())
	assert.Nil(t, m.TakePending())
	assert.Equal(t, []string{"Arena"}, m.Opened())
}

func TestThumbnails(t *testing.T) {
	th := &Thumbnails{Async: true}
	done := make(chan []byte, 1)
	th.Capture(8, 4, func(data []byte, err error) {
		assert.NoError(t, err)
		done <- data
	})

	select {
	case data := <-done:
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 8, img.Bounds().Dx())
	case <-time.After(time.Second):
		t.Fatal("capture callback not called")
	}

	sync := &Thumbnails{}
	var gotErr error
	sync.Capture(0, 0, func(_ []byte, err error) { gotErr = err })
	assert.ErrorIs(t, gotErr, ErrInvalidSize)
	assert.Equal(t, 1, sync.Captures())
}
