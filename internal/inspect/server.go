// Package inspect serves a live view of a running App over WebSocket.
// Clients receive periodic stats frames and may send control words
// ("pause", "resume", "toggle", "step", "speed:2", "quit").
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/esengine/microes-sub003/internal/core/app"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Target is the part of an App the inspector touches. Both methods are
// safe to call off the loop goroutine.
type Target interface {
	Stats() app.Stats
	Send(app.Control) bool
}

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type    string     `json:"type"` // "stats", "ack" or "error"
	Stats   *app.Stats `json:"stats,omitempty"`
	Control string     `json:"control,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(m)
}

type Server struct {
	target   Target
	log      *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]*client
}

func New(target Target, interval time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Server{
		target:   target,
		log:      log,
		interval: interval,
		clients:  make(map[*websocket.Conn]*client),
	}
}

// Handler routes /ws to the WebSocket endpoint and /stats to a one-shot
// JSON snapshot.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ListenAndServe serves on addr and broadcasts stats until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("inspector listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.broadcastLoop(ctx)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		s.closeAll()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Broadcast()
		}
	}
}

// Broadcast sends the current stats to every client. Clients that fail
// to receive are dropped.
func (s *Server) Broadcast() {
	stats := s.target.Stats()
	msg := Message{Type: "stats", Stats: &stats}

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			s.log.Debug("inspector client dropped", zap.String("remote", c.conn.RemoteAddr().String()), zap.Error(err))
			s.remove(c.conn)
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.target.Stats()); err != nil {
		s.log.Warn("encode stats", zap.Error(err))
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("inspector upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[conn] = c
	s.mu.Unlock()
	s.log.Info("inspector client connected", zap.String("remote", conn.RemoteAddr().String()))
	defer s.remove(conn)

	stats := s.target.Stats()
	if err := c.write(Message{Type: "stats", Stats: &stats}); err != nil {
		return
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		reply := s.control(string(data))
		if err := c.write(reply); err != nil {
			return
		}
	}
}

func (s *Server) control(word string) Message {
	ctl, err := app.ParseControl(word)
	if err != nil {
		return Message{Type: "error", Error: err.Error()}
	}
	if !s.target.Send(ctl) {
		return Message{Type: "error", Control: ctl.String(), Error: "control queue full"}
	}
	s.log.Info("inspector control", zap.String("control", ctl.String()))
	return Message{Type: "ack", Control: ctl.String()}
}

func (s *Server) remove(conn *websocket.Conn) {
	s.mu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()
	if ok {
		conn.Close()
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		s.remove(conn)
	}
}
