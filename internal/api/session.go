package api

import (
	"net/http"
	"time"
)

// SessionView describes the vdSM session.
type SessionView struct {
	Active     bool              `json:"active"`
	State      string            `json:"state,omitempty"`
	Vdsm       string            `json:"vdsm,omitempty"`
	APIVersion uint32            `json:"api_version,omitempty"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	Counters   map[string]uint64 `json:"counters,omitempty"`
}

// handleSession returns the current session, or {"active": false}.
func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.host.Session()
	if sess == nil {
		writeJSON(w, http.StatusOK, SessionView{})
		return
	}

	st := sess.Stats()
	view := SessionView{
		Active:     true,
		State:      st.State.String(),
		Vdsm:       st.VdsmDSUID.String(),
		APIVersion: st.APIVersion,
		Counters: map[string]uint64{
			"pings":                 st.PingsTotal,
			"requests_handled":      st.RequestsHandled,
			"requests_rejected":     st.RequestsRejected,
			"notifications_handled": st.NotificationsHandled,
			"notifications_dropped": st.NotificationsDropped,
			"requests_sent":         st.RequestsSent,
			"late_responses":        st.LateResponses,
			"decode_errors":         st.DecodeErrors,
		},
	}
	if !st.StartedAt.IsZero() {
		started := st.StartedAt.UTC()
		view.StartedAt = &started
	}
	writeJSON(w, http.StatusOK, view)
}
