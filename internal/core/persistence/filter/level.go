package filter

import (
	"slices"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/models/interfaces"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
)

// Reserved tags controlling what is stored per object.
const (
	TagNoTransform = "!SaveTransform"
	TagNoPhysics   = "!SavePhysics"
	TagNoTags      = "!SaveTags"
	// TagTransform opts a scene component into storing its relative transform.
	TagTransform = "SaveTransform"
)

// LevelFilter groups the class filters applied to one level. A nil load filter uses its save counterpart.
type LevelFilter struct {
	ActorFilter         *ClassFilter
	LoadActorFilter     *ClassFilter
	StoreComponents     bool
	ComponentFilter     *ClassFilter
	LoadComponentFilter *ClassFilter
}

// NewLevelFilter saves every actor and no component.
func NewLevelFilter() *LevelFilter {
	return &LevelFilter{
		ActorFilter:     NewClassFilter(models.TypeActor).Allow(models.TypeActor),
		ComponentFilter: NewClassFilter(models.TypeComponent),
	}
}

func (f *LevelFilter) loadActors() *ClassFilter {
	if f.LoadActorFilter != nil {
		return f.LoadActorFilter
	}
	return f.ActorFilter
}

func (f *LevelFilter) loadComponents() *ClassFilter {
	if f.LoadComponentFilter != nil {
		return f.LoadComponentFilter
	}
	return f.ComponentFilter
}

// Bake bakes every class filter against reg. Call it once per save or load session.
func (f *LevelFilter) Bake(reg *models.TypeRegistry) {
	for _, cf := range []*ClassFilter{f.ActorFilter, f.LoadActorFilter, f.ComponentFilter, f.LoadComponentFilter} {
		if cf != nil {
			cf.BakeAllowedClasses(reg)
		}
	}
}

func (f *LevelFilter) ShouldSave(actor interfaces.Actor) bool {
	return actor != nil && f.ActorFilter != nil && f.ActorFilter.IsAllowed(actor.Type())
}

func (f *LevelFilter) ShouldLoad(actor interfaces.Actor) bool {
	cf := f.loadActors()
	return actor != nil && cf != nil && cf.IsAllowed(actor.Type())
}

// ShouldLoadType checks a recorded type against the load filter.
func (f *LevelFilter) ShouldLoadType(t models.TypeRef) bool {
	cf := f.loadActors()
	return cf != nil && cf.IsAllowed(t)
}

func (f *LevelFilter) ShouldSaveComponent(c interfaces.Component) bool {
	return f.StoreComponents && c != nil && f.ComponentFilter != nil && f.ComponentFilter.IsAllowed(c.Type())
}

func (f *LevelFilter) ShouldLoadComponent(c interfaces.Component) bool {
	cf := f.loadComponents()
	return f.StoreComponents && c != nil && cf != nil && cf.IsAllowed(c.Type())
}

// StoresAnyComponents is true when components are stored at all.
func (f *LevelFilter) StoresAnyComponents() bool {
	return f.StoreComponents
}

// StoresTransform is true when the actor root is movable and the actor does not opt out.
func StoresTransform(actor interfaces.Actor) bool {
	root := actor.Root()
	return root != nil && root.Movable() && !actor.HasTag(TagNoTransform)
}

func StoresPhysics(actor interfaces.Actor) bool {
	return !actor.HasTag(TagNoPhysics)
}

func StoresTags(actor interfaces.Actor) bool {
	return !actor.HasTag(TagNoTags)
}

// ComponentStoresTransform is true for scene components tagged with TagTransform.
func ComponentStoresTransform(c interfaces.Component) bool {
	_, scene := c.(interfaces.SceneComponent)
	return scene && c.HasTag(TagTransform)
}

func ComponentStoresTags(c interfaces.Component) bool {
	return !c.HasTag(TagNoTags)
}

// IsSaveTag reports whether tag is one of the reserved actor control tags.
func IsSaveTag(tag string) bool {
	return tag == TagNoTransform || tag == TagNoPhysics || tag == TagNoTags
}

// SaveTagsOnly keeps the reserved control tags of tags.
func SaveTagsOnly(tags []string) []string {
	var out []string
	for _, t := range tags {
		if IsSaveTag(t) {
			out = append(out, t)
		}
	}
	return out
}

// Merge applies other on top of f. Component storage is enabled if either stores components.
func (f *LevelFilter) Merge(other *LevelFilter) {
	if other == nil {
		return
	}
	f.ActorFilter = mergeClass(f.ActorFilter, other.ActorFilter)
	f.LoadActorFilter = mergeClass(f.LoadActorFilter, other.LoadActorFilter)
	f.ComponentFilter = mergeClass(f.ComponentFilter, other.ComponentFilter)
	f.LoadComponentFilter = mergeClass(f.LoadComponentFilter, other.LoadComponentFilter)
	f.StoreComponents = f.StoreComponents || other.StoreComponents
}

func mergeClass(dst, src *ClassFilter) *ClassFilter {
	if src == nil {
		return dst
	}
	if dst == nil {
		return src.Clone()
	}
	dst.Merge(src)
	return dst
}

func (f *LevelFilter) Clone() *LevelFilter {
	if f == nil {
		return nil
	}
	return &LevelFilter{
		ActorFilter:         f.ActorFilter.Clone(),
		LoadActorFilter:     f.LoadActorFilter.Clone(),
		StoreComponents:     f.StoreComponents,
		ComponentFilter:     f.ComponentFilter.Clone(),
		LoadComponentFilter: f.LoadComponentFilter.Clone(),
	}
}

// Equal compares the rule sets, ignoring baked state.
func (f *LevelFilter) Equal(o *LevelFilter) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.StoreComponents == o.StoreComponents &&
		classEqual(f.ActorFilter, o.ActorFilter) &&
		classEqual(f.LoadActorFilter, o.LoadActorFilter) &&
		classEqual(f.ComponentFilter, o.ComponentFilter) &&
		classEqual(f.LoadComponentFilter, o.LoadComponentFilter)
}

func classEqual(a, b *ClassFilter) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.BaseType == b.BaseType &&
		slices.Equal(a.AllowedTypes(), b.AllowedTypes()) &&
		slices.Equal(a.DeniedTypes(), b.DeniedTypes())
}

func (f *LevelFilter) Encode(w *archive.Writer) {
	w.WriteBool(f.StoreComponents)
	for _, cf := range []*ClassFilter{f.ActorFilter, f.LoadActorFilter, f.ComponentFilter, f.LoadComponentFilter} {
		w.WriteBool(cf != nil)
		if cf != nil {
			cf.Encode(w)
		}
	}
}

func (f *LevelFilter) Decode(r *archive.Reader) {
	f.StoreComponents = r.ReadBool()
	for _, dst := range []**ClassFilter{&f.ActorFilter, &f.LoadActorFilter, &f.ComponentFilter, &f.LoadComponentFilter} {
		if !r.ReadBool() {
			*dst = nil
			continue
		}
		cf := NewClassFilter("")
		cf.Decode(r)
		*dst = cf
	}
}
