package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/zeusync/zeusave/internal/core/events/bus"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/persistence/manager"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Frame is one lifecycle event on the wire.
type Frame struct {
	Type   string    `json:"type"`
	Slot   string    `json:"slot,omitempty"`
	Map    string    `json:"map,omitempty"`
	Failed bool      `json:"failed"`
	Time   time.Time `json:"time"`
}

func frameOf(e bus.Event) (Frame, bool) {
	ev, ok := e.Data().(manager.LifecycleEvent)
	if !ok {
		return Frame{}, false
	}
	f := Frame{Type: e.Type(), Slot: ev.Name, Failed: ev.Failed, Time: e.Timestamp()}
	if ev.Slot != nil {
		f.Map = ev.Slot.Map
	}
	return f, true
}

type client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.closed) == 1 {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	if atomic.AddInt64(&s.clientCount, 1) > int64(s.config.MaxClients) {
		atomic.AddInt64(&s.clientCount, -1)
		s.logger.Warn("Rejecting client", log.Error(ErrMaxClientsReached))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		atomic.AddInt64(&s.clientCount, -1)
		s.logger.Debug("WebSocket upgrade failed", log.Error(err))
		return
	}

	c := &client{
		id:   atomic.AddUint64(&s.nextID, 1),
		conn: conn,
		send: make(chan []byte, s.config.ClientBuffer),
		done: make(chan struct{}),
	}
	s.clients.Store(c.id, c)
	s.logger.Info("Client connected",
		log.Uint64("client_id", c.id),
		log.String("remote_addr", conn.RemoteAddr().String()))

	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		s.writeLoop(c)
	}()
	s.readLoop(c)
}

// readLoop only drains control frames; the feed is one-directional.
func (s *Server) readLoop(c *client) {
	defer s.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket error", log.Uint64("client_id", c.id), log.Error(err))
			}
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	ping := time.NewTicker(s.config.PingInterval)
	defer ping.Stop()
	defer c.close()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("Failed to write frame", log.Uint64("client_id", c.id), log.Error(err))
				return
			}
			atomic.AddUint64(&s.sent, 1)
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout)); err != nil {
				return
			}
		case <-c.done:
			return
		case <-s.stopChan:
			return
		}
	}
}

func (s *Server) removeClient(c *client) {
	if _, ok := s.clients.LoadAndDelete(c.id); !ok {
		return
	}
	c.close()
	atomic.AddInt64(&s.clientCount, -1)
	s.logger.Info("Client disconnected", log.Uint64("client_id", c.id))
}

func (s *Server) disconnectAll() {
	s.clients.Range(func(_, value any) bool {
		value.(*client).close()
		return true
	})
}

// onEvent runs on the publishing goroutine. Slow clients lose frames instead of blocking it.
func (s *Server) onEvent(e bus.Event) error {
	f, ok := frameOf(e)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	s.clients.Range(func(_, value any) bool {
		c := value.(*client)
		select {
		case c.send <- payload:
		default:
			atomic.AddUint64(&s.dropped, 1)
		}
		return true
	})
	return nil
}
