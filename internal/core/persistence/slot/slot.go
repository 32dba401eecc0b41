// Package slot holds the lightweight metadata of a save, readable without its world data.
package slot

import (
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/internal/core/persistence/filter"
	"github.com/zeusync/zeusave/internal/core/persistence/records"
)

const (
	TypeName        = "SaveSlot"
	DefaultFileName = "Default"
	// slotVersion guards the metadata layout below.
	slotVersion int32 = 1
)

var ErrUnsupportedVersion = errors.New("slot: unsupported metadata version")

// Stats tracks play time and dates. LoadDate is not persisted.
type Stats struct {
	// PlayedTime accumulates over every slot this game was saved to.
	PlayedTime time.Duration
	// SlotPlayedTime accumulates only while saving back to the same file.
	SlotPlayedTime time.Duration
	SaveDate       time.Time
	LoadDate       time.Time
}

// WasLoaded reports whether the slot was loaded during this session.
func (s Stats) WasLoaded() bool {
	return !s.LoadDate.IsZero()
}

// Slot is the metadata of one save.
type Slot struct {
	FileName      string
	DisplayName   string
	Map           string
	Stats         Stats
	ThumbnailPath string

	StoreGameInstance bool
	UseCompression    bool
	Filter            *filter.LevelFilter
	SubsystemFilter   *filter.ClassFilter

	MultithreadedSerialization AsyncMode
	MultithreadedFiles         AsyncMode
	FrameSplittedSerialization AsyncMode
	MaxFrameMs                 float64

	data *records.SlotData
}

// New returns a slot with default policy and empty data.
func New() *Slot {
	return &Slot{
		FileName:                   DefaultFileName,
		StoreGameInstance:          true,
		UseCompression:             true,
		Filter:                     filter.NewLevelFilter(),
		SubsystemFilter:            filter.NewClassFilter(models.TypeSubsystem).Allow(models.TypeSubsystem),
		MultithreadedSerialization: SaveAsync,
		MultithreadedFiles:         SaveAndLoadAsync,
		FrameSplittedSerialization: OnlySync,
		MaxFrameMs:                 5,
		data:                       records.NewSlotData(),
	}
}

func (s *Slot) TypeName() string { return TypeName }

// Data never returns nil.
func (s *Slot) Data() *records.SlotData {
	if s.data == nil {
		s.data = records.NewSlotData()
	}
	return s.data
}

func (s *Slot) AssignData(d *records.SlotData) {
	s.data = d
}

func (s *Slot) IsMTSerializationSave() bool { return s.MultithreadedSerialization.Save() }
func (s *Slot) IsMTSerializationLoad() bool { return s.MultithreadedSerialization.Load() }
func (s *Slot) IsMTFilesSave() bool         { return s.MultithreadedFiles.Save() }
func (s *Slot) IsMTFilesLoad() bool         { return s.MultithreadedFiles.Load() }

// IsFrameSplitLoad is true when load is frame split and not deserialized on workers.
func (s *Slot) IsFrameSplitLoad() bool {
	return !s.IsMTSerializationLoad() && s.FrameSplittedSerialization.Load()
}

func (s *Slot) IsFrameSplitSave() bool {
	return !s.IsMTSerializationSave() && s.FrameSplittedSerialization.Save()
}

// FrameBudget converts MaxFrameMs to a duration.
func (s *Slot) FrameBudget() time.Duration {
	return time.Duration(s.MaxFrameMs * float64(time.Millisecond))
}

// LevelFilter returns a private copy of the slot filter.
func (s *Slot) LevelFilter() *filter.LevelFilter {
	if s.Filter == nil {
		return filter.NewLevelFilter()
	}
	return s.Filter.Clone()
}

// Clone copies the metadata. The copy gets fresh, empty data.
func (s *Slot) Clone() *Slot {
	out := *s
	out.Filter = s.Filter.Clone()
	out.SubsystemFilter = s.SubsystemFilter.Clone()
	out.data = records.NewSlotData()
	return &out
}

func (s *Slot) Serialize() ([]byte, error) {
	w := archive.NewWriter()
	defer w.Release()

	w.WriteInt32(slotVersion)
	w.WriteString(s.FileName)
	w.WriteString(s.DisplayName)
	w.WriteString(s.Map)
	w.WriteInt64(int64(s.Stats.PlayedTime))
	w.WriteInt64(int64(s.Stats.SlotPlayedTime))
	w.WriteInt64(unixNano(s.Stats.SaveDate))
	w.WriteString(s.ThumbnailPath)
	w.WriteBool(s.StoreGameInstance)
	w.WriteBool(s.UseCompression)
	w.WriteUint8(uint8(s.MultithreadedSerialization))
	w.WriteUint8(uint8(s.MultithreadedFiles))
	w.WriteUint8(uint8(s.FrameSplittedSerialization))
	w.WriteFloat64(s.MaxFrameMs)

	w.WriteBool(s.Filter != nil)
	if s.Filter != nil {
		s.Filter.Encode(w)
	}
	w.WriteBool(s.SubsystemFilter != nil)
	if s.SubsystemFilter != nil {
		s.SubsystemFilter.Encode(w)
	}
	return w.Bytes(), nil
}

// Deserialize overwrites the persisted fields. LoadDate and data are left untouched.
func (s *Slot) Deserialize(data []byte) error {
	r := archive.NewReader(data)
	if v := r.ReadInt32(); r.Err() == nil && v != slotVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	out := *s
	out.FileName = r.ReadString()
	out.DisplayName = r.ReadString()
	out.Map = r.ReadString()
	out.Stats.PlayedTime = time.Duration(r.ReadInt64())
	out.Stats.SlotPlayedTime = time.Duration(r.ReadInt64())
	out.Stats.SaveDate = fromUnixNano(r.ReadInt64())
	out.ThumbnailPath = r.ReadString()
	out.StoreGameInstance = r.ReadBool()
	out.UseCompression = r.ReadBool()
	out.MultithreadedSerialization = AsyncMode(r.ReadUint8())
	out.MultithreadedFiles = AsyncMode(r.ReadUint8())
	out.FrameSplittedSerialization = AsyncMode(r.ReadUint8())
	out.MaxFrameMs = r.ReadFloat64()

	out.Filter = nil
	if r.ReadBool() {
		out.Filter = &filter.LevelFilter{}
		out.Filter.Decode(r)
	}
	out.SubsystemFilter = nil
	if r.ReadBool() {
		out.SubsystemFilter = filter.NewClassFilter(models.TypeSubsystem)
		out.SubsystemFilter.Decode(r)
	}
	if err := r.Err(); err != nil {
		return err
	}
	*s = out
	return nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
