package archive

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
)

type testObject struct {
	name   string
	health int32
	target interfaces.Object
}

func (o *testObject) Name() string         { return o.name }
func (o *testObject) Type() models.TypeRef { return models.TypeActor }
func (o *testObject) Path() string         { return "/Game/Map.Persistent:" + o.name }

func (o *testObject) SaveFields(w *Writer) error {
	w.WriteInt32(o.health)
	w.WriteObjectRef(o.target)
	return nil
}

func (o *testObject) LoadFields(r *Reader) error {
	o.health = r.ReadInt32()
	o.target = r.ReadObjectRef()
	return nil
}

type finderFunc func(string) interfaces.Object

func (f finderFunc) FindObject(path string) interfaces.Object { return f(path) }

func TestWriterReader_Primitives(t *testing.T) {
	key := uuid.New()
	w := NewWriter()
	defer w.Release()

	w.WriteBool(true)
	w.WriteUint8(7)
	w.WriteUint16(65000)
	w.WriteInt32(-42)
	w.WriteInt64(-1 << 40)
	w.WriteFloat64(3.25)
	w.WriteString("hello")
	w.WriteBytes(nil)
	w.WriteStrings([]string{"a", "bc"})
	w.WriteTransform(models.At(models.Vector{X: 1, Y: 2, Z: 3}))
	w.WriteEngineVersion(EngineVersion{Major: 5, Minor: 3, Patch: 1, Changelist: 99, Branch: "main"})
	w.WriteCustomVersions([]CustomVersion{{Key: key, Version: 4, Name: "Inventory"}})

	r := NewReader(w.Bytes())
	assert.True(t, r.ReadBool())
	assert.Equal(t, uint8(7), r.ReadUint8())
	assert.Equal(t, uint16(65000), r.ReadUint16())
	assert.Equal(t, int32(-42), r.ReadInt32())
	assert.Equal(t, int64(-1<<40), r.ReadInt64())
	assert.Equal(t, 3.25, r.ReadFloat64())
	assert.Equal(t, "hello", r.ReadString())
	assert.Nil(t, r.ReadBytes())
	assert.Equal(t, []string{"a", "bc"}, r.ReadStrings())
	assert.Equal(t, models.At(models.Vector{X: 1, Y: 2, Z: 3}), r.ReadTransform())
	assert.Equal(t, "5.3.1-99+main", r.ReadEngineVersion().String())

	custom := r.ReadCustomVersions()
	require.NoError(t, r.Err())
	require.Len(t, custom, 1)
	v, ok := VersionInfo{Custom: custom}.CustomVersion(key)
	assert.True(t, ok)
	assert.Equal(t, int32(4), v)
}

func TestReader_StickyError(t *testing.T) {
	r := NewReader([]byte{1, 0})
	assert.Equal(t, uint32(0), r.ReadUint32())
	require.ErrorIs(t, r.Err(), ErrCorrupt)

	// following reads keep the first error and return zero values
	assert.Equal(t, "", r.ReadString())
	require.ErrorIs(t, r.Err(), ErrCorrupt)
}

func TestReader_NegativeAndTruncatedLengths(t *testing.T) {
	w := NewWriter()
	w.WriteInt32(-5)
	r := NewReader(w.Bytes())
	assert.Nil(t, r.ReadBytes())
	assert.ErrorIs(t, r.Err(), ErrCorrupt)
	w.Release()

	w = NewWriter()
	w.WriteInt32(100)
	w.WriteUint8(1)
	r = NewReader(w.Bytes())
	assert.Nil(t, r.ReadBytes())
	assert.ErrorIs(t, r.Err(), ErrCorrupt)
	w.Release()
}

func TestReader_SeekAndSkip(t *testing.T) {
	w := NewWriter()
	w.WriteBytes([]byte("skip me"))
	w.WriteString("tail")
	data := w.Bytes()
	w.Release()

	r := NewStreamReader(bytes.NewReader(data))
	r.SkipBytes()
	assert.Equal(t, "tail", r.ReadString())

	require.NoError(t, r.Seek(0))
	assert.Equal(t, []byte("skip me"), r.ReadBytes())
}

func TestObjectRefs(t *testing.T) {
	target := &testObject{name: "Door"}
	obj := &testObject{name: "Key", health: 10, target: target}

	data, err := SerializeObject(DefaultSerializer{}, obj, VersionInfo{})
	require.NoError(t, err)

	t.Run("resolved", func(t *testing.T) {
		table := NewReferenceTable(nil, nil)
		table.Add(target)
		restored := &testObject{name: "Key"}
		require.NoError(t, DeserializeObject(DefaultSerializer{}, restored, data, VersionInfo{}, table))
		assert.Equal(t, int32(10), restored.health)
		assert.Same(t, target, restored.target)
	})

	t.Run("missing path yields nil", func(t *testing.T) {
		restored := &testObject{name: "Key", target: obj}
		table := NewReferenceTable(finderFunc(func(string) interfaces.Object { return nil }), nil)
		require.NoError(t, DeserializeObject(DefaultSerializer{}, restored, data, VersionInfo{}, table))
		assert.Nil(t, restored.target)
	})

	t.Run("loader only when enabled", func(t *testing.T) {
		loads := 0
		loader := func(path string) interfaces.Object {
			loads++
			return target
		}
		table := NewReferenceTable(nil, loader)
		assert.Nil(t, table.Resolve(target.Path()))
		assert.Zero(t, loads)

		table.LoadIfMissing = true
		assert.Same(t, target, table.Resolve(target.Path()))
		assert.Same(t, target, table.Resolve(target.Path()))
		assert.Equal(t, 1, loads)
	})

	t.Run("nil reference", func(t *testing.T) {
		w := NewWriter()
		defer w.Release()
		w.WriteObjectRef(nil)
		assert.Nil(t, NewReader(w.Bytes()).WithResolver(NewReferenceTable(nil, nil)).ReadObjectRef())
	})
}

func TestReferenceTable_PutRemove(t *testing.T) {
	table := NewReferenceTable(nil, nil)
	a := &testObject{name: "A"}
	b := &testObject{name: "B"}

	table.Add(a)
	table.Put(a.Path(), b)
	table.Put("", a)
	assert.Equal(t, 1, table.Len())

	got, ok := table.Get(a.Path())
	require.True(t, ok)
	assert.Same(t, b, got)

	table.Remove(a.Path())
	_, ok = table.Get(a.Path())
	assert.False(t, ok)
	assert.Zero(t, table.Len())
}

func TestDefaultSerializer_NonPersistent(t *testing.T) {
	data, err := SerializeObject(DefaultSerializer{}, finderObj{}, VersionInfo{})
	require.NoError(t, err)
	assert.Empty(t, data)
	require.NoError(t, DeserializeObject(DefaultSerializer{}, finderObj{}, []byte{1, 2}, VersionInfo{}, nil))
}

type finderObj struct{}

func (finderObj) Name() string         { return "x" }
func (finderObj) Type() models.TypeRef { return models.TypeActor }
func (finderObj) Path() string         { return "/x" }
