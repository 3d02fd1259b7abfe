// Package server coordinates client registration, pump lifecycle, and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/channelrelay/internal/router"
)

// Hub owns the set of live WebSocket clients. It greets each client through
// the router before starting its pumps and hands each terminated client to
// the router exactly once.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	router     *router.Router
	log        *slog.Logger
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub that dispatches client events to r.
func NewHub(r *router.Router, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		router:     r,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a client to the running hub.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main event loop. It returns after Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}
			h.attach(client)

		case client := <-h.unregister:
			h.detach(client)
		}
	}
}

func (h *Hub) attach(client *Client) {
	h.mutex.Lock()
	h.clients[client] = struct{}{}
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info("client registered", "conn", client.id, "addr", client.addr, "clients", clientCount)

	// The welcome is queued before the read pump can deliver any inbound frame.
	h.router.OnOpen(client)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// detach removes client and runs the router's close handling. Only the first
// call for a given client has any effect.
func (h *Hub) detach(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	client.markClosed()
	h.router.OnClose(client)
	h.log.Info("client unregistered", "conn", client.id, "addr", client.addr, "clients", clientCount)
}

// leave is called by a client's read pump when the connection ends. Once the
// event loop has stopped the cleanup runs on the caller's goroutine.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
		h.detach(client)
	}
}

// shutdownClients closes every client connection so the read pumps unwind.
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("error closing client connection", "conn", client.id, "error", err)
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the event loop and waits for every client goroutine to
// finish, or until timeout elapses.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
