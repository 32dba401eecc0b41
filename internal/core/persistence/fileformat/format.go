// Package fileformat reads and writes save files: a versioned header, the slot metadata blob and
// the optionally compressed slot data blob.
package fileformat

import (
	"errors"
	"fmt"
	"io"

	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/pkg/encoding"
)

const (
	// Magic marks files written with a versioned header.
	Magic int32 = 0x0001

	InitialVersion      int32 = 1
	AddedCustomVersions int32 = 2
	LatestVersion             = AddedCustomVersions

	// PackageVersion is the layout version of the records inside the blobs.
	PackageVersion int32 = 1
	// CustomVersionFormat tags the layout of the custom version table.
	CustomVersionFormat int32 = 3
)

var ErrTypeMismatch = errors.New("fileformat: stored type does not match")

// Options describe what Write stamps into the header.
type Options struct {
	Engine         archive.EngineVersion
	CustomVersions []archive.CustomVersion
	Codec          Codec
}

// File is the decoded content of a save file. Blobs are raw and decoded with Decode.
type File struct {
	Version        int32
	Legacy         bool
	PackageVersion int32
	Engine         archive.EngineVersion
	CustomFormat   int32
	Custom         []archive.CustomVersion

	SlotType string
	SlotBlob []byte

	// DataSkipped is set when the data section was not read.
	DataSkipped bool
	DataType    string
	Compressed  bool
	DataBlob    []byte
}

// Versions exposes the header versions to object serializers.
func (f *File) Versions() archive.VersionInfo {
	return archive.VersionInfo{Engine: f.Engine, Custom: f.Custom}
}

// Decode fills slot and data from the blobs. Either may be nil. Empty blobs are skipped.
func (f *File) Decode(slot, data encoding.Serializable) error {
	if slot != nil && len(f.SlotBlob) > 0 {
		if f.SlotType != slot.TypeName() {
			return fmt.Errorf("%w: slot is %q, want %q", ErrTypeMismatch, f.SlotType, slot.TypeName())
		}
		if err := slot.Deserialize(f.SlotBlob); err != nil {
			return fmt.Errorf("decode slot: %w", err)
		}
	}
	if data != nil && len(f.DataBlob) > 0 {
		if f.DataType != data.TypeName() {
			return fmt.Errorf("%w: data is %q, want %q", ErrTypeMismatch, f.DataType, data.TypeName())
		}
		if err := data.Deserialize(f.DataBlob); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// Format writes and reads save files with a fixed set of Options.
type Format struct {
	opts   Options
	logger log.Log
}

func New(opts Options, logger log.Log) *Format {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Format{opts: opts, logger: logger.Named("fileformat")}
}

func (f *Format) Options() Options { return f.opts }

// Write serializes slot and data and writes every section to dst. data may be nil, in which
// case the data section is empty.
func (f *Format) Write(dst io.Writer, slot, data encoding.Serializable, compressData bool) (int64, error) {
	slotBlob, err := slot.Serialize()
	if err != nil {
		return 0, fmt.Errorf("serialize slot: %w", err)
	}

	var (
		dataType string
		dataBlob []byte
	)
	if data != nil {
		dataType = data.TypeName()
		if dataBlob, err = data.Serialize(); err != nil {
			return 0, fmt.Errorf("serialize data: %w", err)
		}
		if compressData {
			if dataBlob, err = compress(dataBlob, f.opts.Codec); err != nil {
				return 0, fmt.Errorf("compress data: %w", err)
			}
		}
	}

	w := archive.NewWriter()
	defer w.Release()

	w.WriteInt32(Magic)
	w.WriteInt32(LatestVersion)
	w.WriteInt32(PackageVersion)
	w.WriteEngineVersion(f.opts.Engine)
	w.WriteInt32(CustomVersionFormat)
	w.WriteCustomVersions(f.opts.CustomVersions)

	w.WriteString(slot.TypeName())
	w.WriteBytes(slotBlob)

	w.WriteString(dataType)
	w.WriteBool(compressData && data != nil)
	w.WriteBytes(dataBlob)

	return w.WriteTo(dst)
}

// Read parses a save file. With skipData it stops after the slot section.
//
// A file that does not start with Magic is read as a headerless version 1 file from offset 0,
// which requires src to be an io.Seeker. A data blob that fails to decompress is logged and
// returned empty.
func (f *Format) Read(src io.Reader, skipData bool) (*File, error) {
	r := archive.NewStreamReader(src)
	file := &File{}

	magic := r.ReadInt32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if magic != Magic {
		if err := r.Seek(0); err != nil {
			return nil, fmt.Errorf("rewind legacy file: %w", err)
		}
		file.Version = InitialVersion
		file.Legacy = true
	} else {
		file.Version = r.ReadInt32()
		file.PackageVersion = r.ReadInt32()
		file.Engine = r.ReadEngineVersion()
		if file.Version >= AddedCustomVersions {
			file.CustomFormat = r.ReadInt32()
			file.Custom = r.ReadCustomVersions()
		}
	}

	file.SlotType = r.ReadString()
	file.SlotBlob = r.ReadBytes()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read slot section: %w", err)
	}
	if skipData {
		file.DataSkipped = true
		return file, nil
	}

	file.DataType = r.ReadString()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read data section: %w", err)
	}
	if file.DataType == "" {
		return file, nil
	}
	file.Compressed = r.ReadBool()
	blob := r.ReadBytes()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read data section: %w", err)
	}

	if file.Compressed && len(blob) > 0 {
		raw, err := decompress(blob)
		if err != nil {
			f.logger.Warn("Failed to decompress slot data, continuing without it",
				log.String("type", file.DataType),
				log.Int("size", len(blob)),
				log.Error(err))
			return file, nil
		}
		blob = raw
	}
	file.DataBlob = blob
	return file, nil
}
