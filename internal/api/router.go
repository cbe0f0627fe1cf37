package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fbot-core/internal/auth"
)

// buildRouter wires the middleware chain and mounts /api/v1.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID, s.accessLog, s.recoverPanics, s.cors, s.limitBody)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, r.Method+" not allowed here")
	})

	r.Route("/api/v1", s.mountV1)
	return r
}

// mountV1 registers the versioned routes. /health is open and /ws
// authenticates with a ticket. Everything else needs a bearer token whose
// role grants the route's permission.
func (s *Server) mountV1(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		read := r.With(s.require(auth.PermTurretRead))
		read.Get("/status", s.handleStatus)
		read.Get("/metrics", s.handleMetrics)
		read.Get("/sessions", s.handleListSessions)
		read.Get("/sessions/{id}", s.handleGetSession)
		read.Get("/audit", s.handleListAudit)
		read.Post("/auth/ws-ticket", s.handleWSTicket)

		r.With(s.require(auth.PermTurretFire)).Post("/fire", s.handleFire)
		r.With(s.require(auth.PermTurretReload)).Post("/reload", s.handleReload)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.hub != nil {
		body["ws_clients"] = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, body)
}
