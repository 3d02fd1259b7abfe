// Package server wires HTTP handlers into a gorilla/mux router for the relay
// via routing helpers.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// SetupRoutes configures and returns the router with all application routes.
// WebSocket upgrades are accepted on any path; every other unmatched request
// gets the health response.
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.MatcherFunc(isUpgrade).HandlerFunc(s.WebSocketHandler)
	r.HandleFunc("/stats", s.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)
	r.PathPrefix("/").HandlerFunc(HealthHandler)
	return r
}

func isUpgrade(r *http.Request, _ *mux.RouteMatch) bool {
	return websocket.IsWebSocketUpgrade(r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}
