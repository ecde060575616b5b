package server

import (
	"net/http"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/identify", s.handleIdentify)
	mux.HandleFunc("GET /api/contacts/{id}/identity", s.handleIdentity)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)

	return Chain(
		RequestID(s.ids, s.logger),
		Recovery(),
		AccessLog(),
	)(mux)
}
