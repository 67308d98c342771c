package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/history"
	"github.com/cipherword/cipherword/log"
)

// StreamEvent is one event as delivered on the websocket feed.
type StreamEvent struct {
	Type      types.EventType `json:"type"`
	Data      any             `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// SubscribeFunc hands out a live event channel and a cancel function that
// releases it. The node wires this to its event bus.
type SubscribeFunc func() (<-chan StreamEvent, func())

// Server serves the JSON-RPC read API on POST / and the websocket event feed
// on GET /events.
type Server struct {
	handler   *Handler
	subscribe SubscribeFunc
	logger    *log.Logger

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener

	upgrader websocket.Upgrader
}

// NewServer creates a Server over the backend. subscribe may be nil, in which
// case /events rejects connections.
func NewServer(backend Backend, store *history.Store, subscribe SubscribeFunc) *Server {
	return &Server{
		handler:   NewHandler(backend, store),
		subscribe: subscribe,
		logger:    log.Default().Module("rpc"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The read API is public and unauthenticated; so is the feed.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start begins listening on addr. Returns once the listener is bound; serving
// continues on a background goroutine.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("rpc: server already started")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveRPC)
	mux.HandleFunc("/events", s.serveEvents)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listener = ln
	s.httpSrv = srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("rpc server stopped", "err", err)
		}
	}()

	s.logger.Info("rpc server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to 5 seconds for in-flight requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.httpSrv
	s.httpSrv = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	resp := s.handler.Handle(body)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("response write failed", "err", err)
	}
}

// serveEvents upgrades the connection and streams bus events as JSON frames
// until either side closes. A client that cannot keep up loses its slowest
// events at the bus, not here; writes carry a deadline so one dead peer
// cannot pin the goroutine.
func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	if s.subscribe == nil {
		http.Error(w, "event feed disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events, cancel := s.subscribe()
	defer cancel()

	// Drain client frames so close frames and pings get processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
