package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/kichnu/iotdash/internal/audit"
)

// recordAudit writes an audit entry. Failures are logged and never fail the
// request that caused them.
func (s *Server) recordAudit(ctx context.Context, action, deviceID string, details map[string]any) {
	if s.audit == nil {
		return
	}

	entry := &audit.Entry{
		Action:   action,
		DeviceID: deviceID,
		Source:   audit.SourceAPI,
		Details:  details,
	}
	if err := s.audit.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("audit write failed",
			"action", action,
			"device_id", deviceID,
			"error", err,
		)
	}
}

// handleListAudit returns audit entries, newest first.
//
// Query parameters:
//   - action: create, update, delete or command
//   - device_id: filter by device
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		fail(w, ErrCodeNotFound, "audit log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		DeviceID: q.Get("device_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(w, ErrCodeBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(w, ErrCodeBadRequest, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		fail(w, ErrCodeInternal, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
