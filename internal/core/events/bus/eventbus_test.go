package bus

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type testObserver struct {
	mu             sync.Mutex
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.mu.Lock()
	o.publishCount++
	o.mu.Unlock()
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ time.Duration) {
	o.mu.Lock()
	o.deliveredCount += handlers
	o.lastErr = err
	o.mu.Unlock()
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	_, err := b.Subscribe("save.finished", func(e Event) error {
		got = e
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.Publish(NewEvent("save.finished", "manager", 123)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got == nil {
		t.Fatal("handler not called")
	}
	if got.Data().(int) != 123 || got.Source() != "manager" {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestOtherTypesAreNotDelivered(t *testing.T) {
	b := New()
	called := false
	_, _ = b.Subscribe("load.began", func(Event) error {
		called = true
		return nil
	})
	_ = b.Publish(NewEvent("save.began", "manager", nil))
	if called {
		t.Fatal("handler of another event type was called")
	}
}

func TestPublishAsyncReturnsErrorChannel(t *testing.T) {
	b := New()
	handlerErr := errors.New("fail")
	if _, err := b.Subscribe("x", func(e Event) error { return handlerErr }); err != nil {
		t.Fatalf("sub: %v", err)
	}
	select {
	case e := <-b.PublishAsync(NewEvent("x", "src", nil)):
		if !errors.Is(e, handlerErr) {
			t.Fatalf("expected handler error, got %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("async publish did not complete")
	}
}

func TestErrorsAreJoined(t *testing.T) {
	b := New()
	errA, errB := errors.New("a"), errors.New("b")
	_, _ = b.Subscribe("x", func(Event) error { return errA })
	_, _ = b.Subscribe("x", func(Event) error { return errB })

	err := b.Publish(NewEvent("x", "src", nil))
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both errors, got %v", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	sub, _ := b.Subscribe("x", func(Event) error {
		calls++
		return nil
	})
	if b.Subscribers("x") != 1 {
		t.Fatalf("expected one subscriber")
	}
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	_ = sub.Cancel()
	_ = b.Unsubscribe(nil)
	_ = b.Publish(NewEvent("x", "src", nil))

	if calls != 0 || sub.IsActive() || b.Subscribers("x") != 0 {
		t.Fatalf("subscription still active: calls=%d", calls)
	}
}

func TestNilHandlerRejected(t *testing.T) {
	if _, err := New().Subscribe("x", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestObserverMetrics(t *testing.T) {
	b := New()
	obs := &testObserver{}
	b.AddObserver(obs)
	_, _ = b.Subscribe("x", func(Event) error { return nil })
	_, _ = b.Subscribe("x", func(Event) error { return errors.New("boom") })

	_ = b.Publish(NewEvent("x", "src", nil))

	if obs.publishCount != 1 || obs.deliveredCount != 2 || obs.lastErr == nil {
		t.Fatalf("observer saw publish=%d delivered=%d err=%v", obs.publishCount, obs.deliveredCount, obs.lastErr)
	}
	m := b.GetMetrics()
	if m.Published != 1 || m.DeliveredHandlers != 2 || m.Errors != 1 || m.SubscribersActive != 2 {
		t.Fatalf("unexpected metrics %+v", m)
	}

	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("x", "src", nil))
	if obs.publishCount != 1 {
		t.Fatal("removed observer still notified")
	}
}
