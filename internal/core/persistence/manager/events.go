package manager

import (
	"github.com/zeusync/zeusave/internal/core/events/bus"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
)

// Lifecycle event types published on the manager bus.
const (
	EventSaveBegan    = "save.began"
	EventSaveFinished = "save.finished"
	EventLoadBegan    = "load.began"
	EventLoadFinished = "load.finished"
)

const eventSource = "zeusave.manager"

// LifecycleEvent is the payload of every lifecycle event. Slot may be nil when a task failed
// before it owned a slot.
type LifecycleEvent struct {
	Type   string
	Slot   *slot.Slot
	Name   string
	Failed bool
}

// Listener receives lifecycle notifications on the goroutine that ticks the manager.
type Listener interface {
	OnSaveBegan(LifecycleEvent)
	OnSaveFinished(LifecycleEvent)
	OnLoadBegan(LifecycleEvent)
	OnLoadFinished(LifecycleEvent)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	SaveBegan    func(LifecycleEvent)
	SaveFinished func(LifecycleEvent)
	LoadBegan    func(LifecycleEvent)
	LoadFinished func(LifecycleEvent)
}

func (f *ListenerFuncs) OnSaveBegan(e LifecycleEvent)    { call(f.SaveBegan, e) }
func (f *ListenerFuncs) OnSaveFinished(e LifecycleEvent) { call(f.SaveFinished, e) }
func (f *ListenerFuncs) OnLoadBegan(e LifecycleEvent)    { call(f.LoadBegan, e) }
func (f *ListenerFuncs) OnLoadFinished(e LifecycleEvent) { call(f.LoadFinished, e) }

func call(fn func(LifecycleEvent), e LifecycleEvent) {
	if fn != nil {
		fn(e)
	}
}

func newLifecycleEvent(typ string, s *slot.Slot, failed bool) bus.Event {
	ev := LifecycleEvent{Type: typ, Slot: s, Failed: failed}
	if s != nil {
		ev.Name = s.FileName
	}
	return bus.NewEvent(typ, eventSource, ev)
}

// Subscribe routes the four lifecycle events to l. Subscribing the same listener twice is a no-op.
func (m *Manager) Subscribe(l Listener) error {
	if l == nil {
		return nil
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if _, ok := m.listeners[l]; ok {
		return nil
	}

	route := map[string]func(LifecycleEvent){
		EventSaveBegan:    l.OnSaveBegan,
		EventSaveFinished: l.OnSaveFinished,
		EventLoadBegan:    l.OnLoadBegan,
		EventLoadFinished: l.OnLoadFinished,
	}
	subs := make([]bus.Subscription, 0, len(route))
	for typ, fn := range route {
		sub, err := m.bus.Subscribe(typ, func(e bus.Event) error {
			if ev, ok := e.Data().(LifecycleEvent); ok {
				fn(ev)
			}
			return nil
		})
		if err != nil {
			for _, s := range subs {
				_ = s.Cancel()
			}
			return err
		}
		subs = append(subs, sub)
	}
	m.listeners[l] = subs
	return nil
}

func (m *Manager) Unsubscribe(l Listener) {
	m.subsMu.Lock()
	subs := m.listeners[l]
	delete(m.listeners, l)
	m.subsMu.Unlock()
	for _, s := range subs {
		_ = m.bus.Unsubscribe(s)
	}
}

// Events exposes the raw bus, e.g. for forwarding lifecycle events over the network.
func (m *Manager) Events() bus.EventBus { return m.bus }

func (m *Manager) publish(typ string, s *slot.Slot, failed bool) {
	if err := m.bus.Publish(newLifecycleEvent(typ, s, failed)); err != nil {
		m.logger.Warn("Lifecycle listener failed", log.String("event", typ), log.Error(err))
	}
}
