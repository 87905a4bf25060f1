package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/vdc-core/internal/audit"
	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
)

const defaultHistoryLimit = 100

// handleDeviceHistory returns the recorded value changes of a vdSD,
// newest first.
//
// Query parameters:
//   - limit: maximum entries (default 100)
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "value history is not enabled")
		return
	}
	id, err := dsuid.Parse(chi.URLParam(r, "dsuid"))
	if err != nil {
		writeBadRequest(w, "invalid dSUID")
		return
	}
	limit, ok := queryInt(w, r, "limit", defaultHistoryLimit)
	if !ok {
		return
	}

	entries, err := s.history.GetHistory(r.Context(), id.String(), limit)
	if err != nil {
		s.logger.Error("reading value history failed", "dsuid", id.String(), "error", err)
		writeInternalError(w, "failed to read value history")
		return
	}
	if entries == nil {
		entries = []device.StateHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dsuid": id.String(), "history": entries, "count": len(entries)})
}

// handleListAudit pages through the audit log.
//
// Query parameters:
//   - kind: event kind, e.g. session or remove
//   - dsuid: entity
//   - limit, offset: paging (default 50, max 200)
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log is not enabled")
		return
	}
	q := r.URL.Query()
	filter := audit.Filter{Kind: q.Get("kind")}
	if v := q.Get("dsuid"); v != "" {
		id, err := dsuid.Parse(v)
		if err != nil {
			writeBadRequest(w, "invalid dSUID")
			return
		}
		filter.DSUID = id.String()
	}
	var ok bool
	if filter.Limit, ok = queryInt(w, r, "limit", 0); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, r, "offset", 0); !ok {
		return
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("reading audit log failed", "error", err)
		writeInternalError(w, "failed to read audit log")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// queryInt parses a non-negative integer parameter, writing a 400 and
// returning false when it is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeBadRequest(w, "invalid "+name)
		return 0, false
	}
	return n, true
}
