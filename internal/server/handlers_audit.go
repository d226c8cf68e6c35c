package server

import (
	"net/http"
	"time"

	"github.com/neurobridge/matchcore/internal/store"
	"github.com/neurobridge/matchcore/internal/types"
)

// handleAuditExport serves the compliance export. It is gated by the export
// key, presented in the X-Export-Key header and verified against the
// configured bcrypt hash.
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if s.export == nil || !s.export.Enabled() {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if !s.export.VerifyKey(r.Header.Get("X-Export-Key")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	filter := store.AuditFilter{
		ActorID:   r.URL.Query().Get("actor_id"),
		EventType: types.EventType(r.URL.Query().Get("event_type")),
	}
	if v := r.URL.Query().Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.errorResponse(w, &types.ValidationError{Field: "from", Message: "must be RFC 3339"})
			return
		}
		filter.From = from
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.errorResponse(w, &types.ValidationError{Field: "to", Message: "must be RFC 3339"})
			return
		}
		filter.To = to
	}

	entries, err := s.audit.Query(r.Context(), filter)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
