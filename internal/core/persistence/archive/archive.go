// Package archive implements the little-endian binary cursor used by every persisted structure,
// and the path based object reference policy.
package archive

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrCorrupt is returned when the input ends early or carries an impossible length.
	ErrCorrupt  = errors.New("archive: corrupt data")
	ErrTooLarge = errors.New("archive: value too large")
)

// MaxBlobSize bounds every length-prefixed value read from an archive.
const MaxBlobSize = 1 << 30

// EngineVersion identifies the runtime that produced an archive.
type EngineVersion struct {
	Major      uint16
	Minor      uint16
	Patch      uint16
	Changelist uint32
	Branch     string
}

func (v EngineVersion) String() string {
	return fmt.Sprintf("%d.%d.%d-%d+%s", v.Major, v.Minor, v.Patch, v.Changelist, v.Branch)
}

// CustomVersion is a namespaced version consumed by object serializers to adapt field layouts.
type CustomVersion struct {
	Key     uuid.UUID
	Version int32
	Name    string
}

// VersionInfo travels with a Writer or Reader so object serializers can branch on it.
type VersionInfo struct {
	Engine EngineVersion
	Custom []CustomVersion
}

// CustomVersion returns the version registered under key.
func (v VersionInfo) CustomVersion(key uuid.UUID) (int32, bool) {
	for _, c := range v.Custom {
		if c.Key == key {
			return c.Version, true
		}
	}
	return 0, false
}
