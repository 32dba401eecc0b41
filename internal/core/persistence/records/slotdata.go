package records

import (
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
)

const SlotDataTypeName = "SaveSlotData"

// SlotData is the heavy part of a save: every level and the global singletons.
// It is owned by the running task and must not be shared across goroutines while a task runs.
type SlotData struct {
	Map               string
	TimeSeconds       float64
	StoreGameInstance bool

	GameInstance           Record
	GameInstanceSubsystems []Record
	WorldSubsystems        []Record

	RootLevel LevelRecord
	SubLevels []LevelRecord

	// Versions is stamped on payload archives. It is not persisted.
	Versions archive.VersionInfo
}

func NewSlotData() *SlotData {
	return &SlotData{RootLevel: NewLevelRecord(PersistentLevelName)}
}

func (d *SlotData) TypeName() string { return SlotDataTypeName }

// FindLevel returns the record of the named level. The persistent name maps to RootLevel.
func (d *SlotData) FindLevel(name string) *LevelRecord {
	if name == "" || name == PersistentLevelName {
		return &d.RootLevel
	}
	for i := range d.SubLevels {
		if d.SubLevels[i].Name == name {
			return &d.SubLevels[i]
		}
	}
	return nil
}

// EnsureSubLevel adds a sublevel record unless one with that name exists.
func (d *SlotData) EnsureSubLevel(name string) *LevelRecord {
	if l := d.FindLevel(name); l != nil {
		return l
	}
	d.SubLevels = append(d.SubLevels, NewLevelRecord(name))
	return &d.SubLevels[len(d.SubLevels)-1]
}

// CleanRecords releases record memory. With keepSublevels the sublevel list keeps its shape so
// the next save does not have to rediscover levels.
func (d *SlotData) CleanRecords(keepSublevels bool) {
	d.GameInstance = Record{}
	d.GameInstanceSubsystems = nil
	d.WorldSubsystems = nil
	d.RootLevel.CleanRecords()
	if !keepSublevels {
		d.SubLevels = nil
		return
	}
	for i := range d.SubLevels {
		d.SubLevels[i].CleanRecords()
	}
}

// ActorCount counts actor records over every level.
func (d *SlotData) ActorCount() int {
	n := len(d.RootLevel.Actors)
	for i := range d.SubLevels {
		n += len(d.SubLevels[i].Actors)
	}
	return n
}

func (d *SlotData) Serialize() ([]byte, error) {
	w := archive.NewWriter()
	defer w.Release()
	w.Versions = d.Versions

	w.WriteString(d.Map)
	w.WriteFloat64(d.TimeSeconds)
	w.WriteBool(d.StoreGameInstance)
	d.GameInstance.Encode(w)
	writeRecords(w, d.GameInstanceSubsystems)
	writeRecords(w, d.WorldSubsystems)
	d.RootLevel.Encode(w)
	w.WriteInt32(int32(len(d.SubLevels)))
	for i := range d.SubLevels {
		d.SubLevels[i].Encode(w)
	}
	return w.Bytes(), nil
}

// Deserialize replaces the contents of d. Versions is kept.
func (d *SlotData) Deserialize(data []byte) error {
	r := archive.NewReader(data)
	out := SlotData{Versions: d.Versions}

	out.Map = r.ReadString()
	out.TimeSeconds = r.ReadFloat64()
	out.StoreGameInstance = r.ReadBool()
	out.GameInstance.Decode(r)
	out.GameInstanceSubsystems = readRecords(r)
	out.WorldSubsystems = readRecords(r)
	out.RootLevel.Decode(r)
	if n := r.ReadLen(); n > 0 && r.Err() == nil {
		out.SubLevels = make([]LevelRecord, 0, min(n, 256))
		for i := 0; i < n && r.Err() == nil; i++ {
			var l LevelRecord
			l.Decode(r)
			out.SubLevels = append(out.SubLevels, l)
		}
	}
	if err := r.Err(); err != nil {
		return err
	}
	*d = out
	return nil
}

func writeRecords(w *archive.Writer, recs []Record) {
	w.WriteInt32(int32(len(recs)))
	for i := range recs {
		recs[i].Encode(w)
	}
}

func readRecords(r *archive.Reader) []Record {
	n := r.ReadLen()
	if n == 0 || r.Err() != nil {
		return nil
	}
	out := make([]Record, 0, min(n, 256))
	for i := 0; i < n && r.Err() == nil; i++ {
		var rec Record
		rec.Decode(r)
		out = append(out, rec)
	}
	return out
}
