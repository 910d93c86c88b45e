package web

import (
	"net/http"

	"github.com/example/takeover-week/internal/apperr"
	"github.com/example/takeover-week/internal/auth"
	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/db"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/example/takeover-week/internal/sessions"
	"github.com/example/takeover-week/internal/validate"
	"github.com/rs/zerolog/hlog"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Auth.SetSession(w, r, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"adminId": id.String()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.AdminIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"adminId": id.String()})
}

func (s *Server) handleAdminSlots(w http.ResponseWriter, r *http.Request) {
	list, err := s.Slots.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": list})
}

// sessions

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.Sessions.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.Sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, notFound(err, "Session"))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handlePatchSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p sessions.Patch
	if err := decodeJSON(w, r, &p, true); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.Sessions.Update(r.Context(), id, p)
	if err != nil {
		writeError(w, r, notFound(err, "Session"))
		return
	}
	hlog.FromRequest(r).Info().Str("session_id", id.String()).Msg("session updated")
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		writeError(w, r, notFound(err, "Session"))
		return
	}
	hlog.FromRequest(r).Info().Str("session_id", id.String()).Msg("session deleted")
	w.WriteHeader(http.StatusNoContent)
}

// registrations

func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	list, err := s.Registrations.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registrations": list})
}

func (s *Server) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reg, err := s.Registrations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, notFound(err, "Registration"))
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) handlePatchRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p registrations.Patch
	if err := decodeJSON(w, r, &p, true); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	reg, err := s.Registrations.Update(r.Context(), id, p)
	if err != nil {
		writeError(w, r, notFound(err, "Registration"))
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) handleDeleteRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Registrations.Delete(r.Context(), id); err != nil {
		writeError(w, r, notFound(err, "Registration"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// crawls

func (s *Server) handleAdminListCrawls(w http.ResponseWriter, r *http.Request) {
	list, err := s.Crawls.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"crawls": list})
}

func (s *Server) handleCreateCrawl(w http.ResponseWriter, r *http.Request) {
	var in crawls.Input
	if err := decodeJSON(w, r, &in, true); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(r.Context(), in); err != nil {
		writeError(w, r, err)
		return
	}
	c, created, err := s.Crawls.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !created {
		writeError(w, r, apperr.Conflict("A crawl named %q already exists on %s", in.Name, in.Date))
		return
	}
	hlog.FromRequest(r).Info().Str("crawl_id", c.ID.String()).Msg("crawl created")
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCrawl(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.Crawls.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, notFound(err, "Crawl"))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handlePatchCrawl(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p crawls.Patch
	if err := decodeJSON(w, r, &p, true); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.Crawls.Update(r.Context(), id, p)
	if db.IsUniqueViolation(err) {
		writeError(w, r, apperr.Conflict("Another crawl already uses that name and date"))
		return
	}
	if err != nil {
		writeError(w, r, notFound(err, "Crawl"))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCrawl(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Crawls.Delete(r.Context(), id); err != nil {
		writeError(w, r, notFound(err, "Crawl"))
		return
	}
	hlog.FromRequest(r).Info().Str("crawl_id", id.String()).Msg("crawl deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCrawlRegistrations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.Crawls.Get(r.Context(), id); err != nil {
		writeError(w, r, notFound(err, "Crawl"))
		return
	}
	list, err := s.Crawls.ListRegistrations(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registrations": list})
}

func (s *Server) handlePatchCrawlRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p crawls.RegistrationPatch
	if err := decodeJSON(w, r, &p, true); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	reg, err := s.Booking.UpdateCrawlRegistration(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) handleDeleteCrawlRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	crawlID, err := s.Crawls.DeleteRegistration(r.Context(), id)
	if err != nil {
		writeError(w, r, notFound(err, "Crawl registration"))
		return
	}
	if err := s.Crawls.RefreshAvailable(r.Context(), crawlID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
