package web

import (
	"net/http"
	"strings"

	"github.com/example/takeover-week/internal/apperr"
	"github.com/example/takeover-week/internal/booking"
	"github.com/example/takeover-week/internal/slots"
)

func (s *Server) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	noCache(w)
	typ := slots.SessionType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))))
	if typ != "" && !typ.Valid() {
		writeError(w, r, apperr.Validation("type must be daytime or evening"))
		return
	}
	list, err := s.Slots.ListAvailable(r.Context(), typ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": list})
}

func (s *Server) handleListCrawls(w http.ResponseWriter, r *http.Request) {
	noCache(w)
	list, err := s.Crawls.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"crawls": list})
}

func (s *Server) handleRegisterSessions(w http.ResponseWriter, r *http.Request) {
	var req booking.SessionsRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.Booking.ReserveSessions(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleRegisterCrawl(w http.ResponseWriter, r *http.Request) {
	var req booking.CrawlRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	reg, err := s.Booking.RegisterCrawl(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageBody{
		Message:      "Successfully registered for crawl",
		Registration: reg,
	})
}

func (s *Server) handleRegisterSession(w http.ResponseWriter, r *http.Request) {
	var req booking.SessionRegistrationRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	reg, err := s.Booking.RegisterSession(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageBody{
		Message:      "Successfully registered for session",
		Registration: reg,
	})
}
