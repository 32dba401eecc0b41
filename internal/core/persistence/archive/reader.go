package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
)

// Resolver turns a stored object path back into a live object.
type Resolver interface {
	Resolve(path string) interfaces.Object
}

// Reader decodes values written by Writer. The first failure is sticky: every following
// read returns a zero value and Err reports the failure.
type Reader struct {
	src      io.Reader
	scratch  [16]byte
	err      error
	resolver Resolver
	Versions VersionInfo
}

// NewReader reads from an in-memory buffer.
func NewReader(data []byte) *Reader {
	return &Reader{src: bytes.NewReader(data)}
}

// NewStreamReader reads from src. Seek is only available when src is an io.Seeker.
func NewStreamReader(src io.Reader) *Reader {
	return &Reader{src: src}
}

// WithResolver sets the resolver used by ReadObjectRef.
func (r *Reader) WithResolver(res Resolver) *Reader {
	r.resolver = res
	return r
}

func (r *Reader) Err() error { return r.err }

// Seek moves the cursor to an absolute offset and clears a previous failure.
func (r *Reader) Seek(offset int64) error {
	s, ok := r.src.(io.Seeker)
	if !ok {
		return errors.New("archive: source is not seekable")
	}
	if _, err := s.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	r.err = nil
	return nil
}

// Fail records err unless the reader already failed.
func (r *Reader) Fail(err error) {
	r.fail(err)
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) fill(n int) []byte {
	if r.err != nil {
		return nil
	}
	if _, err := io.ReadFull(r.src, r.scratch[:n]); err != nil {
		r.fail(fmt.Errorf("%w: %w", ErrCorrupt, err))
		return nil
	}
	return r.scratch[:n]
}

func (r *Reader) ReadBool() bool {
	return r.ReadUint8() != 0
}

func (r *Reader) ReadUint8() uint8 {
	b := r.fill(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) ReadUint16() uint16 {
	b := r.fill(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) ReadUint32() uint32 {
	b := r.fill(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

func (r *Reader) ReadUint64() uint64 {
	b := r.fill(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) ReadInt64() int64 {
	return int64(r.ReadUint64())
}

func (r *Reader) ReadFloat64() float64 {
	return math.Float64frombits(r.ReadUint64())
}

// ReadLen reads an int32 length prefix and validates it.
func (r *Reader) ReadLen() int {
	n := r.ReadInt32()
	if r.err != nil {
		return 0
	}
	if n < 0 {
		r.fail(fmt.Errorf("%w: negative length %d", ErrCorrupt, n))
		return 0
	}
	if n > MaxBlobSize {
		r.fail(fmt.Errorf("%w: %d bytes", ErrTooLarge, n))
		return 0
	}
	return int(n)
}

func (r *Reader) ReadBytes() []byte {
	n := r.ReadLen()
	if r.err != nil || n == 0 {
		return nil
	}

	// copy in steps so that a corrupt length cannot force a huge allocation up front
	var buf bytes.Buffer
	buf.Grow(min(n, 64<<10))
	if _, err := io.CopyN(&buf, r.src, int64(n)); err != nil {
		r.fail(fmt.Errorf("%w: %w", ErrCorrupt, err))
		return nil
	}
	return buf.Bytes()
}

// SkipBytes skips a length-prefixed byte array without keeping it.
func (r *Reader) SkipBytes() {
	n := r.ReadLen()
	if r.err != nil || n == 0 {
		return
	}
	if s, ok := r.src.(io.Seeker); ok {
		if _, err := s.Seek(int64(n), io.SeekCurrent); err != nil {
			r.fail(err)
		}
		return
	}
	if _, err := io.CopyN(io.Discard, r.src, int64(n)); err != nil {
		r.fail(fmt.Errorf("%w: %w", ErrCorrupt, err))
	}
}

func (r *Reader) ReadString() string {
	return string(r.ReadBytes())
}

func (r *Reader) ReadStrings() []string {
	n := r.ReadLen()
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]string, 0, min(n, 1024))
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.ReadString())
	}
	if r.err != nil {
		return nil
	}
	return out
}

func (r *Reader) ReadVector() models.Vector {
	return models.Vector{X: r.ReadFloat64(), Y: r.ReadFloat64(), Z: r.ReadFloat64()}
}

func (r *Reader) ReadQuat() models.Quat {
	return models.Quat{X: r.ReadFloat64(), Y: r.ReadFloat64(), Z: r.ReadFloat64(), W: r.ReadFloat64()}
}

func (r *Reader) ReadTransform() models.Transform {
	return models.Transform{
		Location: r.ReadVector(),
		Rotation: r.ReadQuat(),
		Scale:    r.ReadVector(),
	}
}

func (r *Reader) ReadEngineVersion() EngineVersion {
	return EngineVersion{
		Major:      r.ReadUint16(),
		Minor:      r.ReadUint16(),
		Patch:      r.ReadUint16(),
		Changelist: r.ReadUint32(),
		Branch:     r.ReadString(),
	}
}

func (r *Reader) ReadCustomVersions() []CustomVersion {
	n := r.ReadLen()
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]CustomVersion, 0, min(n, 256))
	for i := 0; i < n && r.err == nil; i++ {
		var c CustomVersion
		if key := r.fill(16); key != nil {
			c.Key = uuid.UUID(key)
		}
		c.Version = r.ReadInt32()
		c.Name = r.ReadString()
		out = append(out, c)
	}
	if r.err != nil {
		return nil
	}
	return out
}

// ReadObjectRef reads a path written by WriteObjectRef and resolves it.
// Empty or unresolvable paths yield nil and never fail the reader.
func (r *Reader) ReadObjectRef() interfaces.Object {
	path := r.ReadString()
	if path == "" || r.err != nil || r.resolver == nil {
		return nil
	}
	return r.resolver.Resolve(path)
}
