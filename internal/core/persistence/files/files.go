// Package files maps slot names to stored save files and runs file IO on a background lane.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/observability/metrics"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/internal/core/persistence/fileformat"
	"github.com/zeusync/zeusave/internal/core/persistence/records"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/core/storage/interfaces"
	"github.com/zeusync/zeusave/pkg/concurrent"
	"github.com/zeusync/zeusave/pkg/encoding"
)

const (
	SlotExt      = ".sav"
	ThumbnailExt = ".png"
)

var ErrEmptyName = errors.New("files: empty slot name")

// SlotFactory builds the slot used when a load has no hint.
type SlotFactory func() *slot.Slot

func SlotKey(name string) string      { return name + SlotExt }
func ThumbnailKey(name string) string { return name + ThumbnailExt }

type Files struct {
	store   interfaces.BlobStorage
	lane    *concurrent.Lane
	format  *fileformat.Format
	newSlot SlotFactory
	logger  log.Log
	metrics *metrics.Collector
}

// New wires the helpers. The lane is shared with the caller, who closes it.
func New(store interfaces.BlobStorage, lane *concurrent.Lane, format *fileformat.Format, newSlot SlotFactory, logger log.Log, m *metrics.Collector) *Files {
	if newSlot == nil {
		newSlot = slot.New
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Files{
		store:   store,
		lane:    lane,
		format:  format,
		newSlot: newSlot,
		logger:  logger.Named("files"),
		metrics: m,
	}
}

func (f *Files) Store() interfaces.BlobStorage { return f.store }

func (f *Files) Exists(ctx context.Context, name string) bool {
	if name == "" {
		return false
	}
	ok, err := f.store.Exists(ctx, SlotKey(name))
	if err != nil {
		f.logger.Warn("Failed to check slot file", log.String("slot", name), log.Error(err))
		return false
	}
	return ok
}

// Versions is the version stamp written into every file header.
func (f *Files) Versions() archive.VersionInfo {
	opts := f.format.Options()
	return archive.VersionInfo{Engine: opts.Engine, Custom: opts.CustomVersions}
}

// SaveSync writes the slot and, when data is not nil, its data. A non-empty png is written as
// the slot thumbnail first.
func (f *Files) SaveSync(ctx context.Context, s *slot.Slot, data *records.SlotData, png []byte) error {
	if s == nil || s.FileName == "" {
		return ErrEmptyName
	}
	if len(png) > 0 {
		if err := f.WriteThumbnail(ctx, s.FileName, png); err != nil {
			f.logger.Warn("Failed to write thumbnail", log.String("slot", s.FileName), log.Error(err))
		} else {
			s.ThumbnailPath = ThumbnailKey(s.FileName)
		}
	}
	var payload encoding.Serializable
	if data != nil {
		payload = data
	}

	n, err := f.store.Write(ctx, SlotKey(s.FileName), func(w io.Writer) error {
		_, err := f.format.Write(w, s, payload, s.UseCompression)
		return err
	})
	if err != nil {
		f.logger.Error("Failed to write slot file", log.String("slot", s.FileName), log.Error(err))
		return fmt.Errorf("save slot %s: %w", s.FileName, err)
	}
	f.metrics.ObserveFile("write", int(n))
	f.logger.Debug("Slot file written", log.String("slot", s.FileName), log.Int64("bytes", n))
	return nil
}

// Save queues SaveSync on the lane.
func (f *Files) Save(ctx context.Context, s *slot.Slot, data *records.SlotData, png []byte) *concurrent.Future[struct{}] {
	return concurrent.Submit(f.lane, func() (struct{}, error) {
		return struct{}{}, f.SaveSync(ctx, s, data, png)
	})
}

// LoadSync reads a slot file. The metadata is decoded into hint, or into a new slot when hint
// is nil. With loadData the slot gets the decoded data assigned.
func (f *Files) LoadSync(ctx context.Context, name string, hint *slot.Slot, loadData bool) (*slot.Slot, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	rc, err := f.store.Open(ctx, SlotKey(name))
	if err != nil {
		return nil, fmt.Errorf("open slot %s: %w", name, err)
	}
	defer rc.Close()

	file, err := f.format.Read(rc, !loadData)
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", name, err)
	}
	f.metrics.ObserveFile("read", len(file.SlotBlob)+len(file.DataBlob))

	s := hint
	if s == nil {
		s = f.newSlot()
	}
	var data *records.SlotData
	if loadData {
		data = records.NewSlotData()
		data.Versions = file.Versions()
	}

	var payload encoding.Serializable
	if data != nil {
		payload = data
	}
	if err := file.Decode(s, payload); err != nil {
		return nil, fmt.Errorf("decode slot %s: %w", name, err)
	}
	if s.FileName == "" || s.FileName == slot.DefaultFileName {
		s.FileName = name
	}
	if data != nil {
		s.AssignData(data)
	}
	if file.Legacy {
		f.logger.Info("Loaded legacy slot file", log.String("slot", name))
	}
	return s, nil
}

// Load queues LoadSync on the lane.
func (f *Files) Load(ctx context.Context, name string, hint *slot.Slot, loadData bool) *concurrent.Future[*slot.Slot] {
	return concurrent.Submit(f.lane, func() (*slot.Slot, error) {
		return f.LoadSync(ctx, name, hint, loadData)
	})
}

// Delete removes the slot file and its thumbnail.
func (f *Files) Delete(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	return errors.Join(
		f.store.Delete(ctx, SlotKey(name)),
		f.store.Delete(ctx, ThumbnailKey(name)),
	)
}

// DeleteAll removes every slot and returns how many were deleted.
func (f *Files) DeleteAll(ctx context.Context) (int, error) {
	names, err := f.List(ctx)
	if err != nil {
		return 0, err
	}
	var (
		deleted int
		all     error
	)
	for _, name := range names {
		if err := f.Delete(ctx, name); err != nil {
			all = errors.Join(all, err)
			continue
		}
		deleted++
	}
	return deleted, all
}

// List returns the sorted names of every stored slot.
func (f *Files) List(ctx context.Context) ([]string, error) {
	keys, err := f.store.List(ctx, SlotExt)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if name := strings.TrimSuffix(k, SlotExt); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// loadAllWorkers bounds concurrent reads in LoadAll.
const loadAllWorkers = 4

// LoadAll loads every slot, in List order. Unreadable files are logged and skipped.
func (f *Files) LoadAll(ctx context.Context, loadData bool) ([]*slot.Slot, error) {
	names, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	loaded, err := concurrent.ParallelMap(ctx, names, loadAllWorkers, func(ctx context.Context, name string) (*slot.Slot, error) {
		s, err := f.LoadSync(ctx, name, nil, loadData)
		if err != nil {
			f.logger.Warn("Skipping unreadable slot", log.String("slot", name), log.Error(err))
			return nil, nil
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(loaded, func(s *slot.Slot) bool { return s == nil }), nil
}

func (f *Files) WriteThumbnail(ctx context.Context, name string, png []byte) error {
	if name == "" {
		return ErrEmptyName
	}
	_, err := f.store.Write(ctx, ThumbnailKey(name), func(w io.Writer) error {
		_, err := w.Write(png)
		return err
	})
	if err != nil {
		return fmt.Errorf("write thumbnail %s: %w", name, err)
	}
	return nil
}

// ReadThumbnail returns interfaces.ErrNotFound when the slot has no thumbnail.
func (f *Files) ReadThumbnail(ctx context.Context, name string) ([]byte, error) {
	rc, err := f.store.Open(ctx, ThumbnailKey(name))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
