package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/config"
	"github.com/setarena/setarena/internal/events"
)

// Server accepts websocket connections and hands them to the hub. It
// implements the lifecycle Service contract.
type Server struct {
	cfg    config.GatewayConfig
	hub    *Hub
	http   *http.Server
	detach func()
	logger *zap.Logger

	upgrader websocket.Upgrader
}

// NewServer creates a gateway server bound to the given bus.
//
// Precondition: cfg must be validated; bus and logger must be non-nil.
func NewServer(cfg config.GatewayConfig, bus events.Bus, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		hub:    NewHub(bus, logger),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The game is an open browser client; origins are not restricted.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start runs the hub and serves websocket upgrades on /ws. Blocks until
// Stop is called.
func (s *Server) Start() error {
	detach, err := s.hub.attach()
	if err != nil {
		return err
	}
	s.detach = detach
	go s.hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.http = &http.Server{Addr: s.cfg.Addr(), Handler: mux}

	s.logger.Info("gateway listening", zap.String("addr", s.cfg.Addr()))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the HTTP listener down, detaches from the bus, and
// disconnects all clients.
func (s *Server) Stop() {
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(ctx)
	}
	if s.detach != nil {
		s.detach()
	}
	s.hub.stop()
}

// handleWS upgrades the HTTP request and starts the client pumps.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		hub:    s.hub,
		send:   make(chan events.Envelope, sendBuffer),
		logger: s.logger,
	}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump(s.cfg.WriteWait, s.cfg.PongWait)
	go client.readPump(s.cfg.PongWait)
}
