package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jfmyers9/partyline/internal/party"
	"github.com/rs/zerolog"
)

// Config holds transport settings.
type Config struct {
	Addr         string        // listen address
	ReadLimit    int64         // maximum inbound message size in bytes
	WriteTimeout time.Duration // per-frame write deadline
	PingInterval time.Duration // keepalive interval; 0 disables pings
}

// Server accepts member connections over WebSocket. Each connection names
// its session with the guild query parameter.
type Server struct {
	cfg        Config
	registry   *party.Registry
	dispatcher *party.Dispatcher
	hub        *party.Hub
	logger     zerolog.Logger
	upgrader   websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// New creates a server. Zero config values get defaults.
func New(cfg Config, registry *party.Registry, dispatcher *party.Dispatcher, hub *party.Hub, logger zerolog.Logger) *Server {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 64 * 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return &Server{
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		hub:        hub,
		logger:     logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Clients are browsers and bots on arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler serving WebSocket upgrades on every path
// and a health check on /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleWS)
	return mux
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully and
// closes any open WebSocket connections.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown does not touch hijacked connections.
	s.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}

	s.logger.Info().Msg("Server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	guild := r.URL.Query().Get("guild")

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	s.track(ws)
	defer s.untrack(ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := newConn(uuid.NewString(), ws, s.cfg.WriteTimeout)
	logger := s.logger.With().Str("conn", conn.ID()).Str("session", guild).Logger()

	if guild == "" {
		if err := s.hub.SendTo(ctx, conn, party.NewErrorEvent(party.KindGuild, "Guild not specified in path.")); err != nil {
			logger.Debug().Err(err).Msg("Failed to send guild error")
		}
		conn.close(websocket.ClosePolicyViolation, "guild required")
		return
	}

	ws.SetReadLimit(s.cfg.ReadLimit)
	if s.cfg.PingInterval > 0 {
		pongWait := 2 * s.cfg.PingInterval
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		go s.keepalive(ctx, conn)
	}

	sess, err := s.registry.Join(ctx, guild, conn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to join session")
		return
	}
	logger.Info().Msg("Member connected")

	// Leave runs however the read loop exits.
	defer func() {
		if err := s.registry.Leave(context.Background(), sess, conn.ID()); err != nil {
			logger.Warn().Err(err).Msg("Failed to announce departure")
		}
		logger.Info().Msg("Member disconnected")
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("Connection closed unexpectedly")
			}
			return
		}

		if err := s.dispatcher.Handle(ctx, sess, conn, data); err != nil {
			logger.Warn().Err(err).Msg("Failed to reply to member")
		}
	}
}

func (s *Server) keepalive(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

func (s *Server) track(ws *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[ws] = struct{}{}
}

func (s *Server) untrack(ws *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, ws)
	_ = ws.Close()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ws := range s.conns {
		_ = ws.Close()
	}
}
