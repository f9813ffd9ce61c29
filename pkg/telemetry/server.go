// Package telemetry serves mount status over HTTP and websocket.
//
// The surface is machine facing: JSON snapshots on /status, Prometheus
// text on /metrics, and a websocket push feed on /feed. Handlers only
// read published snapshots, never mount internals, so serving cannot
// perturb the control loop.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"nightwatch-mount/pkg/log"
	"nightwatch-mount/pkg/metrics"
	"nightwatch-mount/pkg/mount"
)

// StatusSource supplies mount status snapshots.
type StatusSource interface {
	Status() mount.Status
}

// Config holds telemetry server settings.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":9880".
	Addr string

	// PushInterval is the websocket feed period. Default 250ms.
	PushInterval time.Duration
}

// Server is the telemetry HTTP/websocket server.
type Server struct {
	cfg      Config
	src      StatusSource
	registry *metrics.Registry
	logger   *log.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	clientMu sync.Mutex
	clients  map[int64]*feedClient
	nextID   int64

	running atomic.Bool
}

type feedClient struct {
	id   int64
	conn *websocket.Conn
	send chan mount.Status
	done chan struct{}
	once sync.Once
}

// New creates a telemetry server reading from src.
func New(cfg Config, src StatusSource, registry *metrics.Registry, logger *log.Logger) *Server {
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = 250 * time.Millisecond
	}
	return &Server{
		cfg:      cfg,
		src:      src,
		registry: registry,
		logger:   logger,
		clients:  make(map[int64]*feedClient),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler for the telemetry endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/feed", s.handleFeed)
	return mux
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}
	s.running.Store(true)
	s.logger.WithField("addr", s.cfg.Addr).Info("telemetry server starting")

	go s.pushLoop()

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down and closes all feed clients.
func (s *Server) Stop() error {
	s.running.Store(false)

	s.clientMu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[int64]*feedClient)
	s.clientMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := s.src.Status()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write([]byte(s.registry.Gather()))
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &feedClient{
		id:   atomic.AddInt64(&s.nextID, 1),
		conn: conn,
		send: make(chan mount.Status, 16),
		done: make(chan struct{}),
	}

	s.clientMu.Lock()
	s.clients[client.id] = client
	s.clientMu.Unlock()

	s.logger.WithField("client", client.id).Info("feed client connected")

	// Push the current snapshot immediately so a new client never waits
	// a full interval for its first frame.
	client.offer(s.src.Status())

	go s.writePump(client)
	s.readPump(client)
}

// readPump discards client frames and detects disconnect. The feed is
// push-only.
func (s *Server) readPump(c *feedClient) {
	defer s.removeClient(c)

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *feedClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case st := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(st); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) removeClient(c *feedClient) {
	c.close()
	s.clientMu.Lock()
	delete(s.clients, c.id)
	s.clientMu.Unlock()
	s.logger.WithField("client", c.id).Info("feed client disconnected")
}

func (s *Server) pushLoop() {
	ticker := time.NewTicker(s.cfg.PushInterval)
	defer ticker.Stop()

	for s.running.Load() {
		<-ticker.C
		st := s.src.Status()

		s.clientMu.Lock()
		for _, c := range s.clients {
			c.offer(st)
		}
		s.clientMu.Unlock()
	}
}

// offer queues a snapshot, dropping it if the client is backed up.
// A slow consumer gets the next fresh frame instead of a backlog.
func (c *feedClient) offer(st mount.Status) {
	select {
	case c.send <- st:
	case <-c.done:
	default:
	}
}

func (c *feedClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
