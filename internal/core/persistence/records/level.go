package records

import (
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/internal/core/persistence/filter"
)

// PersistentLevelName names the record of the always-loaded root level.
const PersistentLevelName = "Persistent"

// LevelRecord holds the actors of one level. Actor order is the order chunks were merged in
// and carries no meaning: loads match records by identity.
type LevelRecord struct {
	Name           string
	FilterOverride *filter.LevelFilter
	LevelScript    Record
	Actors         []Record
}

func NewLevelRecord(name string) LevelRecord {
	return LevelRecord{Name: name}
}

// CleanRecords drops every record but keeps the level identity and its filter override.
func (l *LevelRecord) CleanRecords() {
	l.LevelScript = Record{}
	l.Actors = nil
}

// FindActor returns the index of the actor record named name, or -1.
func (l *LevelRecord) FindActor(name string) int {
	for i := range l.Actors {
		if l.Actors[i].Name == name {
			return i
		}
	}
	return -1
}

// EffectiveFilter returns base with the level override merged on top. base is not modified.
func (l *LevelRecord) EffectiveFilter(base *filter.LevelFilter) *filter.LevelFilter {
	f := base.Clone()
	if f == nil {
		f = filter.NewLevelFilter()
	}
	f.Merge(l.FilterOverride)
	return f
}

func (l *LevelRecord) Encode(w *archive.Writer) {
	w.WriteString(l.Name)
	w.WriteBool(l.FilterOverride != nil)
	if l.FilterOverride != nil {
		l.FilterOverride.Encode(w)
	}
	l.LevelScript.Encode(w)
	w.WriteInt32(int32(len(l.Actors)))
	for i := range l.Actors {
		l.Actors[i].Encode(w)
	}
}

func (l *LevelRecord) Decode(r *archive.Reader) {
	*l = LevelRecord{Name: r.ReadString()}
	if r.ReadBool() {
		l.FilterOverride = &filter.LevelFilter{}
		l.FilterOverride.Decode(r)
	}
	l.LevelScript.Decode(r)
	n := r.ReadLen()
	if n == 0 || r.Err() != nil {
		return
	}
	l.Actors = make([]Record, 0, min(n, 4096))
	for i := 0; i < n && r.Err() == nil; i++ {
		var rec Record
		rec.Decode(r)
		l.Actors = append(l.Actors, rec)
	}
}
