package files

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/persistence/fileformat"
	"github.com/zeusync/zeusave/internal/core/persistence/records"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/core/storage/local"
	"github.com/zeusync/zeusave/pkg/concurrent"
)

func newTestFiles(t *testing.T) *Files {
	t.Helper()
	store, err := local.New(t.TempDir(), 0)
	require.NoError(t, err)
	lane := concurrent.NewLane(8)
	t.Cleanup(lane.Close)
	return New(store, lane, fileformat.New(fileformat.Options{Codec: fileformat.CodecZstd}, nil), nil, nil, nil)
}

func newSlot(name string) (*slot.Slot, *records.SlotData) {
	s := slot.New()
	s.FileName = name
	s.DisplayName = "Slot " + name
	s.Stats.SaveDate = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d := records.NewSlotData()
	d.Map = "/Game/Maps/Field"
	d.RootLevel.Actors = append(d.RootLevel.Actors, records.Record{
		Kind: records.KindActor, Name: "Barrel", Type: models.TypeActor,
	})
	return s, d
}

func TestFiles_SaveLoad(t *testing.T) {
	ctx := context.Background()
	f := newTestFiles(t)

	s, d := newSlot("alpha")
	_, err := f.Save(ctx, s, d, nil).Wait()
	require.NoError(t, err)
	assert.True(t, f.Exists(ctx, "alpha"))
	assert.False(t, f.Exists(ctx, "beta"))
	assert.False(t, f.Exists(ctx, ""))

	meta, err := f.LoadSync(ctx, "alpha", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Slot alpha", meta.DisplayName)
	assert.Empty(t, meta.Data().RootLevel.Actors)

	full, err := f.Load(ctx, "alpha", nil, true).Wait()
	require.NoError(t, err)
	assert.Equal(t, "/Game/Maps/Field", full.Data().Map)
	require.Len(t, full.Data().RootLevel.Actors, 1)
	assert.Equal(t, "Barrel", full.Data().RootLevel.Actors[0].Name)
}

func TestFiles_LoadIntoHint(t *testing.T) {
	ctx := context.Background()
	f := newTestFiles(t)
	s, d := newSlot("alpha")
	require.NoError(t, f.SaveSync(ctx, s, d, nil))

	hint := slot.New()
	got, err := f.LoadSync(ctx, "alpha", hint, true)
	require.NoError(t, err)
	assert.Same(t, hint, got)
	assert.Equal(t, "alpha", got.FileName)
}

func TestFiles_MetadataOnlySave(t *testing.T) {
	ctx := context.Background()
	f := newTestFiles(t)
	s, _ := newSlot("meta")
	require.NoError(t, f.SaveSync(ctx, s, nil, nil))

	got, err := f.LoadSync(ctx, "meta", nil, true)
	require.NoError(t, err)
	assert.Empty(t, got.Data().RootLevel.Actors)
}

func TestFiles_ListDelete(t *testing.T) {
	ctx := context.Background()
	f := newTestFiles(t)
	for _, name := range []string{"b", "c"} {
		s, d := newSlot(name)
		require.NoError(t, f.SaveSync(ctx, s, d, nil))
	}
	s, d := newSlot("a")
	require.NoError(t, f.SaveSync(ctx, s, d, []byte{0x89, 'P', 'N', 'G'}))
	assert.Equal(t, "a.png", s.ThumbnailPath)

	names, err := f.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	png, err := f.ReadThumbnail(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, png, 4)

	require.NoError(t, f.Delete(ctx, "a"))
	assert.False(t, f.Exists(ctx, "a"))
	_, err = f.ReadThumbnail(ctx, "a")
	assert.Error(t, err)

	slots, err := f.LoadAll(ctx, false)
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	n, err := f.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	names, err = f.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFiles_LoadMissing(t *testing.T) {
	f := newTestFiles(t)
	_, err := f.LoadSync(context.Background(), "nope", nil, true)
	assert.Error(t, err)
	_, err = f.LoadSync(context.Background(), "", nil, true)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestFiles_LoadAllKeepsOrderAndSkipsUnreadable(t *testing.T) {
	ctx := context.Background()
	f := newTestFiles(t)

	names := []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"}
	for _, name := range names {
		s, d := newSlot(name)
		require.NoError(t, f.SaveSync(ctx, s, d, nil))
	}
	_, err := f.store.Write(ctx, SlotKey("s4"), func(w io.Writer) error {
		_, err := w.Write([]byte("not a save"))
		return err
	})
	require.NoError(t, err)

	slots, err := f.LoadAll(ctx, true)
	require.NoError(t, err)
	var got []string
	for _, s := range slots {
		got = append(got, s.FileName)
		assert.Len(t, s.Data().RootLevel.Actors, 1)
	}
	assert.Equal(t, []string{"s0", "s1", "s2", "s3", "s5", "s6", "s7", "s8"}, got)
}
