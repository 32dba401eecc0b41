// Package tasks implements the save and load state machines driven by the manager tick.
package tasks

import (
	"runtime"
	"time"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/observability/metrics"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/internal/core/persistence/files"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/core/system"
)

// Host is the owner of the active slot and the lifecycle notifications.
type Host interface {
	ActiveSlot() *slot.Slot
	// AssureActiveSlot creates a default active slot when there is none.
	AssureActiveSlot() *slot.Slot
	SetActiveSlot(s *slot.Slot)
	// PreloadSlot reads slot metadata only. It returns nil if the slot does not exist.
	PreloadSlot(name string) *slot.Slot

	OnSaveBegan(s *slot.Slot)
	OnSaveFinished(s *slot.Slot, failed bool)
	OnLoadBegan(s *slot.Slot)
	OnLoadFinished(s *slot.Slot, failed bool)
}

// Session carries every collaborator a task needs. World is replaced by the host when a
// map finishes loading.
type Session struct {
	World      system.World
	Types      *models.TypeRegistry
	Serializer archive.ObjectSerializer
	Files      *files.Files
	Maps       system.MapLoader
	Thumbnails system.ThumbnailCapturer
	Host       Host
	Logger     log.Log
	Metrics    *metrics.Collector

	// Workers is the number of background serialization workers. Zero uses NumCPU-1.
	Workers int
	// Clock measures frame budgets and stamps slot dates. Nil uses time.Now.
	Clock func() time.Time
}

func (s *Session) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Session) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return max(1, runtime.NumCPU()-1)
}

func (s *Session) serializer() archive.ObjectSerializer {
	if s.Serializer != nil {
		return s.Serializer
	}
	return archive.DefaultSerializer{}
}

func (s *Session) logger() log.Log {
	if s.Logger != nil {
		return s.Logger
	}
	return log.NewNop()
}

func (s *Session) types() *models.TypeRegistry {
	if s.Types != nil {
		return s.Types
	}
	return models.NewTypeRegistry()
}
