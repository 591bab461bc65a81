// Package server wires the gateway's HTTP handlers into a ServeMux.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with the health check
// and the WebSocket endpoint backed by s.
func SetupRoutes(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(s))
	return mux
}
