package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/fbot-core/internal/audit"
)

// auditChanSize is the buffer size for the async audit channel.
// Entries beyond this are dropped (best-effort) to avoid back-pressure on requests.
const auditChanSize = 256

// auditLog enqueues an audit entry for an HTTP command (best-effort).
// If the channel is full the entry is dropped and a warning is logged.
func (s *Server) auditLog(action, operator, requestID string, details map[string]any) {
	if s.audit == nil || s.auditCh == nil {
		return
	}

	entry := &audit.Entry{
		Action:    action,
		Operator:  operator,
		Source:    audit.SourceHTTP,
		RequestID: requestID,
		Details:   details,
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit channel full, dropping entry",
			"action", action,
			"request_id", requestID,
		)
	}
}

// drainAuditLog writes queued entries serially until ctx is cancelled,
// then drains what is left.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					s.writeAudit(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAudit(entry *audit.Entry) {
	if err := s.audit.Create(context.Background(), entry); err != nil {
		s.logger.Error("audit write failed",
			"action", entry.Action,
			"request_id", entry.RequestID,
			"error", err,
		)
	}
}

// handleListAudit returns paginated command audit entries.
//
// Query parameters:
//   - action: fire or reload
//   - operator: operator name
//   - source: chat or http
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "command audit is not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		Operator: q.Get("operator"),
		Source:   q.Get("source"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
