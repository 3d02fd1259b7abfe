// Package server constructs and starts the relay HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/channelrelay/internal/registry"
	"github.com/Tyrowin/channelrelay/internal/router"
)

// Server wires the channel registry, the router and the hub together with
// the settings the HTTP handlers need.
type Server struct {
	cfg      Config
	registry *registry.Registry
	hub      *Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// New builds a Server from cfg. Call Start before serving requests.
func New(cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.Sanitize()

	reg := registry.New()
	origins := newOriginPolicy(cfg.Origins(), log)

	return &Server{
		cfg:      cfg,
		registry: reg,
		hub:      NewHub(router.New(reg, log), log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		log: log,
	}
}

// Hub returns the server's hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Registry returns the channel registry shared by every connection.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Start runs the hub event loop in a separate goroutine.
func (s *Server) Start() {
	go s.hub.Run()
	s.log.Info("hub started and ready to manage WebSocket connections")
}

// CreateServer creates and configures an HTTP server with the specified address and handler.
// It sets reasonable timeout values for production use.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it stops.
func StartServer(server *http.Server, log *slog.Logger) error {
	log.Info("WebSocket server running", "addr", server.Addr, "url", "ws://"+server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration, log *slog.Logger) error {
	log.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}
