package archive

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/zeusave/internal/core/models/interfaces"
)

// ObjectFinder looks up objects that are already loaded.
type ObjectFinder interface {
	FindObject(path string) interfaces.Object
}

// Loader forces loading of the resource behind path. It returns nil when nothing can be loaded.
type Loader func(path string) interfaces.Object

type refEntry struct {
	path string
	obj  interfaces.Object
}

// ReferenceTable maps stored paths to live handles. It is populated while reconciling a level
// and consulted while applying payloads. Lookups fall back to the finder, then to the loader
// when LoadIfMissing is set.
type ReferenceTable struct {
	mu      sync.RWMutex
	entries map[uint64][]refEntry
	size    int

	finder        ObjectFinder
	loader        Loader
	LoadIfMissing bool
}

func NewReferenceTable(finder ObjectFinder, loader Loader) *ReferenceTable {
	return &ReferenceTable{
		entries: make(map[uint64][]refEntry),
		finder:  finder,
		loader:  loader,
	}
}

// Add registers obj under its own path, replacing any previous handle.
func (t *ReferenceTable) Add(obj interfaces.Object) {
	if obj == nil {
		return
	}
	t.Put(obj.Path(), obj)
}

func (t *ReferenceTable) Put(path string, obj interfaces.Object) {
	if path == "" || obj == nil {
		return
	}
	key := xxhash.Sum64String(path)

	t.mu.Lock()
	defer t.mu.Unlock()
	bucket := t.entries[key]
	for i := range bucket {
		if bucket[i].path == path {
			bucket[i].obj = obj
			return
		}
	}
	t.entries[key] = append(bucket, refEntry{path: path, obj: obj})
	t.size++
}

func (t *ReferenceTable) Remove(path string) {
	key := xxhash.Sum64String(path)

	t.mu.Lock()
	defer t.mu.Unlock()
	bucket := t.entries[key]
	for i := range bucket {
		if bucket[i].path == path {
			bucket = append(bucket[:i], bucket[i+1:]...)
			t.size--
			break
		}
	}
	if len(bucket) == 0 {
		delete(t.entries, key)
	} else {
		t.entries[key] = bucket
	}
}

// Get only consults the table itself.
func (t *ReferenceTable) Get(path string) (interfaces.Object, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries[xxhash.Sum64String(path)] {
		if e.path == path {
			return e.obj, true
		}
	}
	return nil, false
}

func (t *ReferenceTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

func (t *ReferenceTable) Reset() {
	t.mu.Lock()
	t.entries = make(map[uint64][]refEntry)
	t.size = 0
	t.mu.Unlock()
}

// Resolve implements Resolver.
func (t *ReferenceTable) Resolve(path string) interfaces.Object {
	if path == "" {
		return nil
	}
	if obj, ok := t.Get(path); ok {
		return obj
	}
	if t.finder != nil {
		if obj := t.finder.FindObject(path); obj != nil {
			return obj
		}
	}
	if t.LoadIfMissing && t.loader != nil {
		if obj := t.loader(path); obj != nil {
			t.Put(path, obj)
			return obj
		}
	}
	return nil
}
