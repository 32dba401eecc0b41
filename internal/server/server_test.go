package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusave/internal/core/events/bus"
	"github.com/zeusync/zeusave/internal/core/observability/metrics"
	"github.com/zeusync/zeusave/internal/core/persistence/manager"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
)

type staticSlots struct {
	slots []*slot.Slot
	err   error
}

func (s staticSlots) ListSlots(context.Context) ([]*slot.Slot, error) { return s.slots, s.err }

func newTestServer(t *testing.T, slots SlotLister, gatherer prometheus.Gatherer) (*Server, bus.EventBus, *httptest.Server) {
	t.Helper()
	events := bus.New()
	cfg := DefaultServerConfig()
	cfg.MaxClients = 2
	srv, err := NewServer(cfg, events, slots, gatherer, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Close()
		ts.Close()
	})
	return srv, events, ts
}

func dial(t *testing.T, ts *httptest.Server) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return websocket.DefaultDialer.Dial(u, nil)
}

func TestWebSocketFeed(t *testing.T) {
	srv, events, ts := newTestServer(t, nil, nil)

	conn, _, err := dial(t, ts)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.GetStats().ClientCount == 1 }, time.Second, 5*time.Millisecond)

	s := slot.New()
	s.FileName = "one"
	s.Map = "Overworld"
	require.NoError(t, events.Publish(bus.NewEvent(manager.EventSaveFinished, "test",
		manager.LifecycleEvent{Type: manager.EventSaveFinished, Slot: s, Name: "one", Failed: true})))
	// Foreign payloads are ignored.
	require.NoError(t, events.Publish(bus.NewEvent(manager.EventLoadBegan, "test", "not an event")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, manager.EventSaveFinished, f.Type)
	assert.Equal(t, "one", f.Slot)
	assert.Equal(t, "Overworld", f.Map)
	assert.True(t, f.Failed)
	assert.False(t, f.Time.IsZero())

	conn.Close()
	require.Eventually(t, func() bool { return srv.GetStats().ClientCount == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketMaxClients(t *testing.T) {
	srv, _, ts := newTestServer(t, nil, nil)

	for range 2 {
		conn, _, err := dial(t, ts)
		require.NoError(t, err)
		defer conn.Close()
	}
	require.Eventually(t, func() bool { return srv.GetStats().ClientCount == 2 }, time.Second, 5*time.Millisecond)

	_, resp, err := dial(t, ts)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSlotsEndpoint(t *testing.T) {
	s := slot.New()
	s.FileName = "autosave"
	s.Map = "Overworld"
	s.Stats.PlayedTime = 90 * time.Second
	_, _, ts := newTestServer(t, staticSlots{slots: []*slot.Slot{s}}, nil)

	resp, err := http.Get(ts.URL + "/slots")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got []SlotInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "autosave", got[0].Name)
	assert.Equal(t, "Overworld", got[0].Map)
	assert.InDelta(t, 90, got[0].PlayedSeconds, 1e-9)
}

func TestSlotsEndpoint_Errors(t *testing.T) {
	_, _, ts := newTestServer(t, staticSlots{err: errors.New("disk gone")}, nil)
	resp, err := http.Get(ts.URL + "/slots")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	_, _, bare := newTestServer(t, nil, nil)
	resp, err = http.Get(bare.URL + "/slots")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollector(reg)
	require.NoError(t, err)
	col.ObserveTask("save", 20*time.Millisecond, true)

	_, _, ts := newTestServer(t, nil, reg)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `zeusave_tasks_total{kind="save",status="success"} 1`)
}

func TestStartStop(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	srv, err := NewServer(cfg, bus.New(), nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerAlreadyRunning)
	assert.True(t, srv.GetStats().Running)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.ErrorIs(t, srv.Stop(ctx), ErrServerNotRunning)

	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerClosed)
}

func TestNewServer_InvalidConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxClients = 0
	_, err := NewServer(cfg, bus.New(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewServer(DefaultServerConfig(), nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
