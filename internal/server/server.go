// Package server exposes the save manager over HTTP: a websocket feed of lifecycle events,
// prometheus metrics and the slot listing.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zeusync/zeusave/internal/core/events/bus"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/persistence/manager"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
)

// SlotLister is the part of the manager the slot listing needs.
type SlotLister interface {
	ListSlots(ctx context.Context) ([]*slot.Slot, error)
}

// Server serves the lifecycle feed
type Server struct {
	config   Config
	logger   log.Log
	events   bus.EventBus
	slots    SlotLister
	gatherer prometheus.Gatherer
	mux      *http.ServeMux

	http     *http.Server
	listener net.Listener

	// Client management
	clients     sync.Map // map[uint64]*client
	clientCount int64    // atomic
	nextID      uint64   // atomic
	dropped     uint64   // atomic
	sent        uint64   // atomic

	subs []bus.Subscription

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	workerGroup sync.WaitGroup
	stopChan    chan struct{}
}

// Config holds server configuration
type Config struct {
	ListenAddr string
	MaxClients int

	// ClientBuffer is the number of frames queued per client before frames are dropped.
	ClientBuffer int
	WriteTimeout time.Duration
	PingInterval time.Duration
	// SlotsTimeout bounds a /slots request.
	SlotsTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:   "127.0.0.1:8080",
		MaxClients:   256,
		ClientBuffer: 64,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		SlotsTimeout: 10 * time.Second,
	}
}

func (c Config) validate() error {
	switch {
	case c.MaxClients <= 0:
		return fmt.Errorf("%w: max clients %d", ErrInvalidConfig, c.MaxClients)
	case c.ClientBuffer <= 0:
		return fmt.Errorf("%w: client buffer %d", ErrInvalidConfig, c.ClientBuffer)
	case c.WriteTimeout <= 0 || c.PingInterval <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

// NewServer subscribes to the lifecycle events on events. gatherer and slots may be nil, which
// turns the matching endpoint into a 404.
func NewServer(config Config, events bus.EventBus, slots SlotLister, gatherer prometheus.Gatherer, logger log.Log) (*Server, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if events == nil {
		return nil, fmt.Errorf("%w: no event bus", ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if config.SlotsTimeout <= 0 {
		config.SlotsTimeout = DefaultServerConfig().SlotsTimeout
	}

	s := &Server{
		config:   config,
		logger:   logger.With(log.String("component", "server")),
		events:   events,
		slots:    slots,
		gatherer: gatherer,
		stopChan: make(chan struct{}),
	}

	for _, typ := range []string{
		manager.EventSaveBegan, manager.EventSaveFinished,
		manager.EventLoadBegan, manager.EventLoadFinished,
	} {
		sub, err := events.Subscribe(typ, s.onEvent)
		if err != nil {
			s.unsubscribe()
			return nil, err
		}
		s.subs = append(s.subs, sub)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /slots", s.handleSlots)
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_clients", config.MaxClients))

	return s, nil
}

// Handler routes every endpoint. It is usable without Start, e.g. behind httptest.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens on ListenAddr and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.listener = listener
	s.http = &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}

	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down and disconnects every client.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	// Hijacked websocket connections are not tracked by http.Server.
	s.disconnectAll()
	err := s.http.Shutdown(ctx)
	s.workerGroup.Wait()

	s.logger.Info("Server stopped")
	return err
}

// Close stops the server if needed and drops the bus subscriptions.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil // Already closed
	}

	s.logger.Info("Closing server")

	if atomic.LoadInt32(&s.running) == 1 {
		_ = s.Stop(context.Background())
	}
	close(s.stopChan)
	s.unsubscribe()
	s.disconnectAll()
	s.workerGroup.Wait()

	return nil
}

func (s *Server) unsubscribe() {
	for _, sub := range s.subs {
		_ = s.events.Unsubscribe(sub)
	}
	s.subs = nil
}

// Stats contains server statistics
type Stats struct {
	ClientCount   int64
	FramesSent    uint64
	FramesDropped uint64
	Running       bool
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		ClientCount:   atomic.LoadInt64(&s.clientCount),
		FramesSent:    atomic.LoadUint64(&s.sent),
		FramesDropped: atomic.LoadUint64(&s.dropped),
		Running:       atomic.LoadInt32(&s.running) == 1,
	}
}
