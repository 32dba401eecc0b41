package archive

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
	"github.com/zeusync/zeusave/pkg/generic"
)

var bufferPool = generic.NewPool(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	func(b *bytes.Buffer) { b.Reset() },
)

// Writer appends little-endian values to an in-memory buffer.
// Strings and byte arrays are prefixed with their int32 length.
type Writer struct {
	buf      *bytes.Buffer
	scratch  [8]byte
	Versions VersionInfo
}

// NewWriter returns a Writer backed by a pooled buffer. Call Release when done.
func NewWriter() *Writer {
	return &Writer{buf: bufferPool.Get()}
}

// Release hands the buffer back to the pool. The Writer must not be used afterwards.
func (w *Writer) Release() {
	if w.buf != nil {
		bufferPool.Put(w.buf)
		w.buf = nil
	}
}

// Bytes returns a copy of everything written so far.
func (w *Writer) Bytes() []byte {
	return bytes.Clone(w.buf.Bytes())
}

func (w *Writer) Len() int { return w.buf.Len() }

func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	n, err := dst.Write(w.buf.Bytes())
	return int64(n), err
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *Writer) WriteUint16(v uint16) {
	binary.LittleEndian.PutUint16(w.scratch[:2], v)
	w.buf.Write(w.scratch[:2])
}

func (w *Writer) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.scratch[:4], v)
	w.buf.Write(w.scratch[:4])
}

func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *Writer) WriteUint64(v uint64) {
	binary.LittleEndian.PutUint64(w.scratch[:8], v)
	w.buf.Write(w.scratch[:8])
}

func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

func (w *Writer) WriteBytes(v []byte) {
	w.WriteInt32(int32(len(v)))
	w.buf.Write(v)
}

func (w *Writer) WriteString(v string) {
	w.WriteInt32(int32(len(v)))
	w.buf.WriteString(v)
}

func (w *Writer) WriteStrings(v []string) {
	w.WriteInt32(int32(len(v)))
	for _, s := range v {
		w.WriteString(s)
	}
}

func (w *Writer) WriteVector(v models.Vector) {
	w.WriteFloat64(v.X)
	w.WriteFloat64(v.Y)
	w.WriteFloat64(v.Z)
}

func (w *Writer) WriteQuat(q models.Quat) {
	w.WriteFloat64(q.X)
	w.WriteFloat64(q.Y)
	w.WriteFloat64(q.Z)
	w.WriteFloat64(q.W)
}

func (w *Writer) WriteTransform(t models.Transform) {
	w.WriteVector(t.Location)
	w.WriteQuat(t.Rotation)
	w.WriteVector(t.Scale)
}

func (w *Writer) WriteEngineVersion(v EngineVersion) {
	w.WriteUint16(v.Major)
	w.WriteUint16(v.Minor)
	w.WriteUint16(v.Patch)
	w.WriteUint32(v.Changelist)
	w.WriteString(v.Branch)
}

func (w *Writer) WriteCustomVersions(list []CustomVersion) {
	w.WriteInt32(int32(len(list)))
	for _, c := range list {
		w.buf.Write(c.Key[:])
		w.WriteInt32(c.Version)
		w.WriteString(c.Name)
	}
}

// WriteObjectRef stores obj by its path. A nil object is stored as an empty path.
func (w *Writer) WriteObjectRef(obj interfaces.Object) {
	if obj == nil {
		w.WriteString("")
		return
	}
	w.WriteString(obj.Path())
}
