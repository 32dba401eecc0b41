// Package records holds the in-memory snapshot of a save: object, component, actor and level
// records, and the SlotData aggregate.
package records

import (
	"fmt"
	"slices"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
)

// Kind tags the variant a Record holds.
type Kind uint8

const (
	KindObject Kind = iota + 1
	KindComponent
	KindActor
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindComponent:
		return "component"
	case KindActor:
		return "actor"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

const (
	actorHidden uint8 = 1 << iota
	actorProcedural
	actorHasTransform
	actorHasVelocity
)

// Record is the serialized state of one object. Fields beyond the object part are only
// meaningful for the kinds noted on them.
type Record struct {
	Kind Kind
	Name string
	Type models.TypeRef
	Data []byte
	Tags []string

	// Component and Actor
	HasTransform bool
	Transform    models.Transform

	// Actor
	HasVelocity     bool
	LinearVelocity  models.Vector
	AngularVelocity models.Vector
	Hidden          bool
	Procedural      bool
	Components      []Record
}

// ObjectRecord starts a record describing obj.
func ObjectRecord(kind Kind, obj interfaces.Object) Record {
	if obj == nil {
		return Record{Kind: kind}
	}
	return Record{Kind: kind, Name: obj.Name(), Type: obj.Type()}
}

// Valid is true when the record names an object and its type.
func (rec *Record) Valid() bool {
	return rec.Name != "" && rec.Type != ""
}

// Matches compares identity: name and type.
func (rec *Record) Matches(obj interfaces.Object) bool {
	return obj != nil && rec.Name == obj.Name() && rec.Type == obj.Type()
}

func (rec *Record) FindComponent(name string) *Record {
	for i := range rec.Components {
		if rec.Components[i].Name == name {
			return &rec.Components[i]
		}
	}
	return nil
}

// Encode writes the record envelope. Payload bytes are written as-is.
func (rec *Record) Encode(w *archive.Writer) {
	w.WriteUint8(uint8(rec.Kind))
	w.WriteString(rec.Name)
	w.WriteString(string(rec.Type))
	w.WriteBytes(rec.Data)
	w.WriteStrings(rec.Tags)

	switch rec.Kind {
	case KindComponent:
		w.WriteBool(rec.HasTransform)
		if rec.HasTransform {
			w.WriteTransform(rec.Transform)
		}
	case KindActor:
		var flags uint8
		if rec.Hidden {
			flags |= actorHidden
		}
		if rec.Procedural {
			flags |= actorProcedural
		}
		if rec.HasTransform {
			flags |= actorHasTransform
		}
		if rec.HasVelocity {
			flags |= actorHasVelocity
		}
		w.WriteUint8(flags)
		if rec.HasTransform {
			w.WriteTransform(rec.Transform)
		}
		if rec.HasVelocity {
			w.WriteVector(rec.LinearVelocity)
			w.WriteVector(rec.AngularVelocity)
		}
		w.WriteInt32(int32(len(rec.Components)))
		for i := range rec.Components {
			rec.Components[i].Encode(w)
		}
	}
}

// maxNesting bounds how deep component lists may nest inside a decoded record.
const maxNesting = 8

// Decode reads a record written by Encode. Failures are reported through r.Err.
func (rec *Record) Decode(r *archive.Reader) {
	rec.decode(r, 0)
}

func (rec *Record) decode(r *archive.Reader, depth int) {
	*rec = Record{}
	if depth > maxNesting {
		r.Fail(fmt.Errorf("%w: records nested deeper than %d", archive.ErrCorrupt, maxNesting))
		return
	}
	rec.Kind = Kind(r.ReadUint8())
	rec.Name = r.ReadString()
	rec.Type = models.TypeRef(r.ReadString())
	rec.Data = r.ReadBytes()
	rec.Tags = r.ReadStrings()

	switch rec.Kind {
	case KindObject:
	case KindComponent:
		if rec.HasTransform = r.ReadBool(); rec.HasTransform {
			rec.Transform = r.ReadTransform()
		}
	case KindActor:
		flags := r.ReadUint8()
		rec.Hidden = flags&actorHidden != 0
		rec.Procedural = flags&actorProcedural != 0
		rec.HasTransform = flags&actorHasTransform != 0
		rec.HasVelocity = flags&actorHasVelocity != 0
		if rec.HasTransform {
			rec.Transform = r.ReadTransform()
		}
		if rec.HasVelocity {
			rec.LinearVelocity = r.ReadVector()
			rec.AngularVelocity = r.ReadVector()
		}
		n := r.ReadLen()
		if n > 0 && r.Err() == nil {
			rec.Components = make([]Record, 0, min(n, 256))
			for i := 0; i < n && r.Err() == nil; i++ {
				var c Record
				c.decode(r, depth+1)
				rec.Components = append(rec.Components, c)
			}
		}
	default:
		if rec.Kind != 0 {
			r.Fail(fmt.Errorf("%w: record kind %d", archive.ErrCorrupt, rec.Kind))
		}
	}
}

func (rec *Record) Clone() Record {
	out := *rec
	out.Data = slices.Clone(rec.Data)
	out.Tags = slices.Clone(rec.Tags)
	if rec.Components != nil {
		out.Components = make([]Record, len(rec.Components))
		for i := range rec.Components {
			out.Components[i] = rec.Components[i].Clone()
		}
	}
	return out
}
