// Package sim is an in-memory world used by the CLI and as the collaborator double in tests.
package sim

import (
	"maps"
	"slices"
	"sync"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
)

// Object carries generic persisted fields: integers, strings and references to other objects.
type Object struct {
	mu   sync.RWMutex
	name string
	typ  models.TypeRef
	path string
	tags []string

	ints    map[string]int64
	strings map[string]string
	refs    map[string]interfaces.Object
}

func NewObject(name string, typ models.TypeRef, path string) *Object {
	o := &Object{}
	o.init(name, typ, path)
	return o
}

func (o *Object) init(name string, typ models.TypeRef, path string) {
	o.name = name
	o.typ = typ
	o.path = path
	o.ints = make(map[string]int64)
	o.strings = make(map[string]string)
	o.refs = make(map[string]interfaces.Object)
}

func (o *Object) Name() string         { return o.name }
func (o *Object) Type() models.TypeRef { return o.typ }
func (o *Object) Path() string         { return o.path }

func (o *Object) Tags() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.tags)
}

func (o *Object) SetTags(tags []string) {
	o.mu.Lock()
	o.tags = slices.Clone(tags)
	o.mu.Unlock()
}

func (o *Object) HasTag(tag string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Contains(o.tags, tag)
}

func (o *Object) AddTag(tag string) {
	o.mu.Lock()
	if !slices.Contains(o.tags, tag) {
		o.tags = append(o.tags, tag)
	}
	o.mu.Unlock()
}

func (o *Object) SetInt(key string, v int64) {
	o.mu.Lock()
	o.ints[key] = v
	o.mu.Unlock()
}

func (o *Object) Int(key string) int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ints[key]
}

func (o *Object) SetText(key, v string) {
	o.mu.Lock()
	o.strings[key] = v
	o.mu.Unlock()
}

func (o *Object) Text(key string) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.strings[key]
}

func (o *Object) SetRef(key string, target interfaces.Object) {
	o.mu.Lock()
	o.refs[key] = target
	o.mu.Unlock()
}

func (o *Object) Ref(key string) interfaces.Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.refs[key]
}

// SaveFields writes every field in key order.
func (o *Object) SaveFields(w *archive.Writer) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	w.WriteInt32(int32(len(o.ints)))
	for _, k := range slices.Sorted(maps.Keys(o.ints)) {
		w.WriteString(k)
		w.WriteInt64(o.ints[k])
	}
	w.WriteInt32(int32(len(o.strings)))
	for _, k := range slices.Sorted(maps.Keys(o.strings)) {
		w.WriteString(k)
		w.WriteString(o.strings[k])
	}
	w.WriteInt32(int32(len(o.refs)))
	for _, k := range slices.Sorted(maps.Keys(o.refs)) {
		w.WriteString(k)
		w.WriteObjectRef(o.refs[k])
	}
	return nil
}

// LoadFields replaces every field with the stored ones. Unresolved references become nil.
func (o *Object) LoadFields(r *archive.Reader) error {
	ints := make(map[string]int64)
	for n := r.ReadLen(); n > 0 && r.Err() == nil; n-- {
		k := r.ReadString()
		ints[k] = r.ReadInt64()
	}
	strs := make(map[string]string)
	for n := r.ReadLen(); n > 0 && r.Err() == nil; n-- {
		k := r.ReadString()
		strs[k] = r.ReadString()
	}
	refs := make(map[string]interfaces.Object)
	for n := r.ReadLen(); n > 0 && r.Err() == nil; n-- {
		k := r.ReadString()
		refs[k] = r.ReadObjectRef()
	}
	if err := r.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	o.ints, o.strings, o.refs = ints, strs, refs
	o.mu.Unlock()
	return nil
}
