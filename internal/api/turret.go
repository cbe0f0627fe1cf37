package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fbot-core/internal/audit"
	"github.com/nerrad567/fbot-core/internal/turret"
)

// fireRequest is the request body for POST /fire. Both fields are optional.
type fireRequest struct {
	Count     int    `json:"count"`
	RequestID string `json:"request_id"`
}

// fireResponse is the response body for POST /fire.
type fireResponse struct {
	RequestID string `json:"request_id"`
	Count     int    `json:"count"`
	Status    string `json:"status"`
}

// handleStatus returns the turret status snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.turret.Status())
}

// handleFire queues a fire request and returns 202 with its request tag.
// A missing count fires one ball; counts above the burst cap are clamped.
func (s *Server) handleFire(w http.ResponseWriter, r *http.Request) {
	var req fireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch {
	case req.Count < 0:
		writeDomainError(w, turret.ErrInvalidCount, "invalid count")
		return
	case req.Count == 0:
		req.Count = 1
	case s.maxBurst > 0 && req.Count > s.maxBurst:
		req.Count = s.maxBurst
	}
	if req.RequestID == "" {
		req.RequestID = turret.GenerateID()
	}

	op, _ := operatorFromContext(r.Context()) //nolint:errcheck // set by authenticate on this route
	s.logger.Info("fire requested",
		"request_id", req.RequestID,
		"count", req.Count,
		"operator", op.Name,
	)

	s.auditLog(audit.ActionFire, op.Name, req.RequestID, map[string]any{"count": req.Count})

	s.fires.Add(1)
	go func() {
		defer s.fires.Done()
		sess, err := s.turret.Fire(s.fireCtx, req.Count, req.RequestID)
		if err != nil {
			s.logger.Warn("fire request not run", "request_id", req.RequestID, "error", err)
			return
		}
		s.logger.Info("fire request finished",
			"request_id", req.RequestID,
			"status", sess.Status,
			"fired", sess.Fired,
		)
	}()

	writeJSON(w, http.StatusAccepted, fireResponse{
		RequestID: req.RequestID,
		Count:     req.Count,
		Status:    "accepted",
	})
}

// handleReload refills the magazine.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	op, _ := operatorFromContext(r.Context()) //nolint:errcheck // set by authenticate on this route
	balls := s.turret.Reload()
	s.logger.Info("reload requested", "operator", op.Name, "balls", balls)
	s.auditLog(audit.ActionReload, op.Name, "", map[string]any{"balls": balls})

	writeJSON(w, http.StatusOK, map[string]any{"balls": balls})
}

// handleListSessions returns recent fire sessions, newest first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session history is not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := s.sessions.ListSessions(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleGetSession returns one fire session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session history is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	sess, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		if !errors.Is(err, turret.ErrSessionNotFound) {
			s.logger.Error("getting session failed", "session_id", id, "error", err)
		}
		writeDomainError(w, err, "failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}
