package slot

import (
	"fmt"
	"strings"
)

// AsyncMode selects which of save and load run a feature asynchronously.
type AsyncMode uint8

const (
	OnlySync AsyncMode = iota
	LoadAsync
	SaveAsync
	SaveAndLoadAsync
)

func (m AsyncMode) Load() bool { return m == LoadAsync || m == SaveAndLoadAsync }
func (m AsyncMode) Save() bool { return m == SaveAsync || m == SaveAndLoadAsync }

func (m AsyncMode) String() string {
	switch m {
	case OnlySync:
		return "sync"
	case LoadAsync:
		return "load"
	case SaveAsync:
		return "save"
	case SaveAndLoadAsync:
		return "save_and_load"
	default:
		return fmt.Sprintf("AsyncMode(%d)", uint8(m))
	}
}

// ParseAsyncMode accepts the names produced by String.
func ParseAsyncMode(s string) (AsyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sync", "only_sync", "":
		return OnlySync, nil
	case "load":
		return LoadAsync, nil
	case "save":
		return SaveAsync, nil
	case "save_and_load", "both":
		return SaveAndLoadAsync, nil
	}
	return OnlySync, fmt.Errorf("unknown async mode %q", s)
}

func (m AsyncMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *AsyncMode) UnmarshalText(text []byte) error {
	v, err := ParseAsyncMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
