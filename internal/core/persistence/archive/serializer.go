package archive

import (
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
)

// ObjectSerializer writes and reads the declared persisted fields of one object.
// The save system never inspects field layouts itself.
type ObjectSerializer interface {
	Serialize(w *Writer, obj interfaces.Object) error
	Deserialize(r *Reader, obj interfaces.Object) error
}

// Persistent is implemented by objects that know how to write their own fields.
type Persistent interface {
	SaveFields(w *Writer) error
	LoadFields(r *Reader) error
}

// DefaultSerializer dispatches to Persistent. Other objects have an empty payload.
type DefaultSerializer struct{}

func (DefaultSerializer) Serialize(w *Writer, obj interfaces.Object) error {
	if p, ok := obj.(Persistent); ok {
		if err := p.SaveFields(w); err != nil {
			return err
		}
	}
	return nil
}

func (DefaultSerializer) Deserialize(r *Reader, obj interfaces.Object) error {
	if p, ok := obj.(Persistent); ok {
		if err := p.LoadFields(r); err != nil {
			return err
		}
		return r.Err()
	}
	return nil
}

// SerializeObject runs s over obj and returns the payload bytes.
func SerializeObject(s ObjectSerializer, obj interfaces.Object, versions VersionInfo) ([]byte, error) {
	w := NewWriter()
	defer w.Release()
	w.Versions = versions

	if err := s.Serialize(w, obj); err != nil {
		return nil, err
	}
	if w.Len() == 0 {
		return nil, nil
	}
	return w.Bytes(), nil
}

// DeserializeObject applies a payload produced by SerializeObject. Empty payloads are a no-op.
func DeserializeObject(s ObjectSerializer, obj interfaces.Object, data []byte, versions VersionInfo, res Resolver) error {
	if len(data) == 0 {
		return nil
	}
	r := NewReader(data).WithResolver(res)
	r.Versions = versions
	if err := s.Deserialize(r, obj); err != nil {
		return err
	}
	return r.Err()
}
