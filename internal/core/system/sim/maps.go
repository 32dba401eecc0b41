package sim

import (
	"errors"
	"sync"

	"github.com/zeusync/zeusave/internal/core/system"
)

var ErrUnknownMap = errors.New("sim: unknown map")

// Builder creates a fresh world for a map.
type Builder func(mapName string) *World

// Maps is a MapLoader over registered builders. OpenMap only queues the world: the driver
// delivers it with TakePending, the way an engine finishes a map load on a later frame.
type Maps struct {
	mu       sync.Mutex
	builders map[string]Builder
	pending  *World
	opened   []string
}

func NewMaps() *Maps {
	return &Maps{builders: make(map[string]Builder)}
}

func (m *Maps) Register(name string, b Builder) {
	m.mu.Lock()
	m.builders[name] = b
	m.mu.Unlock()
}

func (m *Maps) MapExists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.builders[name]
	return ok
}

func (m *Maps) OpenMap(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.builders[name]
	if !ok {
		return ErrUnknownMap
	}
	m.pending = b(name)
	m.opened = append(m.opened, name)
	return nil
}

// TakePending returns the world opened since the last call, or nil.
func (m *Maps) TakePending() system.World {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	w := m.pending
	m.pending = nil
	return w
}

// Opened lists every map name passed to OpenMap.
func (m *Maps) Opened() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.opened...)
}
