package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/example/takeover-week/internal/notify"
)

func feedParams(r *http.Request) (int, bool) {
	q := r.URL.Query()
	mark, err := strconv.ParseBool(q.Get("markAsSent"))
	if err != nil {
		mark = false
	}
	return notify.ParseLimit(q.Get("limit")), mark
}

func (s *Server) handlePendingSessions(w http.ResponseWriter, r *http.Request) {
	noCache(w)
	limit, mark := feedParams(r)
	res, err := s.Notify.PendingSessions(r.Context(), limit, mark)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePendingCrawls(w http.ResponseWriter, r *http.Request) {
	noCache(w)
	limit, mark := feedParams(r)
	res, err := s.Notify.PendingCrawls(r.Context(), limit, mark)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePendingAll(w http.ResponseWriter, r *http.Request) {
	noCache(w)
	limit, mark := feedParams(r)
	res, err := s.Notify.PendingAll(r.Context(), limit, mark)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type markSentRequest struct {
	RegistrationIDs []json.RawMessage `json:"registrationIds"`
}

// ids keeps the array length so the requested count is exact. Elements that
// are not JSON strings become "" and are dropped as invalid downstream.
func (m markSentRequest) ids() []string {
	if m.RegistrationIDs == nil {
		return nil
	}
	out := make([]string, len(m.RegistrationIDs))
	for i, raw := range m.RegistrationIDs {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			out[i] = s
		}
	}
	return out
}

func (s *Server) handleMarkSent(w http.ResponseWriter, r *http.Request) {
	var req markSentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Notify.MarkSent(r.Context(), req.ids())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
