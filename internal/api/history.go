package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-nuki/internal/audit"
)

// CommandHistory lists recorded device commands. *audit.SQLiteRepository
// implements it.
type CommandHistory interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// handleDeviceHistory returns the recorded commands of one device, newest
// first. Devices no longer on the bridge keep their history.
//
// Query parameters: status, limit, offset.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		fail(w, http.StatusServiceUnavailable, "command history not enabled")
		return
	}

	nukiID, ok := parseNukiID(w, r)
	if !ok {
		return
	}

	filter := audit.Filter{
		NukiID: nukiID,
		Status: r.URL.Query().Get("status"),
	}
	var valid bool
	if filter.Limit, valid = queryInt(w, r, "limit"); !valid {
		return
	}
	if filter.Offset, valid = queryInt(w, r, "offset"); !valid {
		return
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list command history", "nuki_id", nukiID, "error", err)
		fail(w, http.StatusInternalServerError, "failed to list command history")
		return
	}
	respond(w, http.StatusOK, result)
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		fail(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
