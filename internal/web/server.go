package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/example/takeover-week/internal/auth"
	"github.com/example/takeover-week/internal/booking"
	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/notify"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/example/takeover-week/internal/sessions"
	"github.com/example/takeover-week/internal/slots"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type Booker interface {
	ReserveSessions(ctx context.Context, req booking.SessionsRequest) (booking.Booked, error)
	RegisterCrawl(ctx context.Context, req booking.CrawlRequest) (crawls.WithCrawl, error)
	RegisterSession(ctx context.Context, req booking.SessionRegistrationRequest) (registrations.WithSession, error)
	UpdateCrawlRegistration(ctx context.Context, id uuid.UUID, p crawls.RegistrationPatch) (crawls.Registration, error)
}

type Notifier interface {
	PendingSessions(ctx context.Context, limit int, mark bool) (notify.Result[registrations.WithSession], error)
	PendingCrawls(ctx context.Context, limit int, mark bool) (notify.Result[crawls.WithCrawl], error)
	PendingAll(ctx context.Context, limit int, mark bool) (notify.Result[notify.Item], error)
	MarkSent(ctx context.Context, ids []string) (notify.MarkResult, error)
}

type SlotStore interface {
	List(ctx context.Context) ([]slots.Slot, error)
	ListAvailable(ctx context.Context, typ slots.SessionType) ([]slots.Slot, error)
}

type SessionStore interface {
	List(ctx context.Context) ([]sessions.Session, error)
	Get(ctx context.Context, id uuid.UUID) (sessions.Session, error)
	Update(ctx context.Context, id uuid.UUID, p sessions.Patch) (sessions.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type RegistrationStore interface {
	List(ctx context.Context) ([]registrations.Registration, error)
	Get(ctx context.Context, id uuid.UUID) (registrations.Registration, error)
	Update(ctx context.Context, id uuid.UUID, p registrations.Patch) (registrations.Registration, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type CrawlStore interface {
	List(ctx context.Context) ([]crawls.Summary, error)
	Get(ctx context.Context, id uuid.UUID) (crawls.Crawl, error)
	Create(ctx context.Context, in crawls.Input) (crawls.Crawl, bool, error)
	Update(ctx context.Context, id uuid.UUID, p crawls.Patch) (crawls.Crawl, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RefreshAvailable(ctx context.Context, id uuid.UUID) error
	ListRegistrations(ctx context.Context, crawlID uuid.UUID) ([]crawls.Registration, error)
	DeleteRegistration(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Auth          *auth.Store
	Booking       Booker
	Notify        Notifier
	Slots         SlotStore
	Sessions      SessionStore
	Registrations RegistrationStore
	Crawls        CrawlStore
	DB            Pinger

	AllowedOrigins []string
	NotifyAPIKey   string
	Log            zerolog.Logger
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.Log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))

		r.Get("/slots/available", s.handleAvailableSlots)
		r.Get("/crawls", s.handleListCrawls)
		r.Post("/register-sessions", s.handleRegisterSessions)
		r.Post("/register-crawl", s.handleRegisterCrawl)
		r.Post("/register-session", s.handleRegisterSession)

		r.Route("/notifications", func(r chi.Router) {
			r.Use(s.requireAPIKey)
			r.Get("/pending", s.handlePendingSessions)
			r.Get("/pending-crawls", s.handlePendingCrawls)
			r.Get("/pending-all", s.handlePendingAll)
			r.Post("/mark-sent", s.handleMarkSent)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.Auth.RequireAuth(writeError))
			r.Post("/logout", s.handleLogout)
			r.Get("/me", s.handleMe)

			r.Get("/slots", s.handleAdminSlots)

			r.Get("/sessions", s.handleListSessions)
			r.Get("/sessions/{id}", s.handleGetSession)
			r.Patch("/sessions/{id}", s.handlePatchSession)
			r.Delete("/sessions/{id}", s.handleDeleteSession)

			r.Get("/registrations", s.handleListRegistrations)
			r.Get("/registrations/{id}", s.handleGetRegistration)
			r.Patch("/registrations/{id}", s.handlePatchRegistration)
			r.Delete("/registrations/{id}", s.handleDeleteRegistration)

			r.Get("/crawls", s.handleAdminListCrawls)
			r.Post("/crawls", s.handleCreateCrawl)
			r.Get("/crawls/{id}", s.handleGetCrawl)
			r.Patch("/crawls/{id}", s.handlePatchCrawl)
			r.Delete("/crawls/{id}", s.handleDeleteCrawl)
			r.Get("/crawls/{id}/registrations", s.handleListCrawlRegistrations)
			r.Patch("/crawl-registrations/{id}", s.handlePatchCrawlRegistration)
			r.Delete("/crawl-registrations/{id}", s.handleDeleteCrawlRegistration)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAPIKey guards the notification feed when a key is configured.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.NotifyAPIKey != "" && !secureEq(r.Header.Get("X-API-Key"), s.NotifyAPIKey) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureEq(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func Start(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()
	log.Info().Str("addr", addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
