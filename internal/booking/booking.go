// Package booking holds the registration workflows that must run inside a
// single database transaction: reserving three session slots, registering
// for a crawl, and attaching a language registration to a session.
package booking

import (
	"context"
	"strings"

	"github.com/example/takeover-week/internal/apperr"
	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/db"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/example/takeover-week/internal/sessions"
	"github.com/example/takeover-week/internal/slots"
	"github.com/example/takeover-week/internal/validate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store opens transactions. Everything done through the Tx passed to fn is
// committed when fn returns nil and discarded otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of row operations the workflows need. LockSlots and LockCrawl
// must hold row locks until the transaction ends.
type Tx interface {
	LockSlots(ctx context.Context, keys []slots.Key) ([]slots.Slot, error)
	ConsumeSlot(ctx context.Context, id uuid.UUID) (slots.Slot, error)
	CreateSession(ctx context.Context, s sessions.Session) (sessions.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (sessions.Session, error)
	CreateRegistration(ctx context.Context, r registrations.Registration) (registrations.Registration, error)

	LockCrawl(ctx context.Context, id uuid.UUID) (crawls.Crawl, error)
	CountConfirmed(ctx context.Context, crawlID uuid.UUID) (int, error)
	HasConfirmed(ctx context.Context, crawlID uuid.UUID, email string) (bool, error)
	CreateCrawlRegistration(ctx context.Context, r crawls.Registration) (crawls.Registration, error)
	GetCrawlRegistration(ctx context.Context, id uuid.UUID) (crawls.Registration, error)
	UpdateCrawlRegistration(ctx context.Context, id uuid.UUID, p crawls.RegistrationPatch) (crawls.Registration, error)
	SetCrawlAvailable(ctx context.Context, id uuid.UUID, available bool) error
}

type Service struct {
	store       Store
	staffDomain string
	log         zerolog.Logger
}

func NewService(store Store, staffDomain string, log zerolog.Logger) *Service {
	return &Service{
		store:       store,
		staffDomain: strings.ToLower(staffDomain),
		log:         log.With().Str("component", "booking").Logger(),
	}
}

// IsStaffEmail reports whether email ends with the staff domain suffix.
func IsStaffEmail(email, domain string) bool {
	if domain == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(email)), strings.ToLower(domain))
}

type SlotPick struct {
	Date string `json:"date" validate:"required,isodate"`
	Time string `json:"time" validate:"required,hhmm"`
}

// SessionsRequest books two daytime slots (Session1, Session2) and one
// evening slot (Session3).
type SessionsRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Email       string   `json:"email" validate:"required,email"`
	ProgramName string   `json:"programName" validate:"required,max=200"`
	Session1    SlotPick `json:"session1"`
	Session2    SlotPick `json:"session2"`
	Session3    SlotPick `json:"session3"`
}

func (r *SessionsRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.ProgramName = strings.TrimSpace(r.ProgramName)
	for _, p := range []*SlotPick{&r.Session1, &r.Session2, &r.Session3} {
		p.Date = strings.TrimSpace(p.Date)
		p.Time = strings.TrimSpace(p.Time)
	}
}

func (r SessionsRequest) keys() [3]slots.Key {
	return [3]slots.Key{
		{Date: r.Session1.Date, Time: r.Session1.Time, Type: slots.Daytime},
		{Date: r.Session2.Date, Time: r.Session2.Time, Type: slots.Daytime},
		{Date: r.Session3.Date, Time: r.Session3.Time, Type: slots.Evening},
	}
}

type Booked struct {
	Session1 sessions.Session `json:"session1"`
	Session2 sessions.Session `json:"session2"`
	Session3 sessions.Session `json:"session3"`
}

// ReserveSessions creates one session per chosen slot and takes a seat from
// each slot. Either all three sessions exist afterwards or nothing changed.
func (s *Service) ReserveSessions(ctx context.Context, req SessionsRequest) (Booked, error) {
	req.normalize()
	if err := validate.Struct(ctx, req); err != nil {
		return Booked{}, err
	}
	keys := req.keys()

	var out Booked
	err := s.store.InTx(ctx, func(tx Tx) error {
		locked, err := tx.LockSlots(ctx, keys[:])
		if err != nil {
			return err
		}
		byKey := make(map[slots.Key]slots.Slot, len(locked))
		for _, sl := range locked {
			byKey[sl.Key()] = sl
		}

		var matched [3]slots.Slot
		for i, k := range keys {
			sl, ok := byKey[k]
			if !ok {
				return apperr.NotFound("One or more selected time slots are not found")
			}
			matched[i] = sl
		}
		for _, sl := range matched {
			if !sl.Open() {
				return apperr.Capacity("Time slot %s %s is no longer available", sl.Date, sl.Time)
			}
		}
		if keys[0].Date == keys[1].Date {
			return apperr.Validation("The two daytime sessions must be on different dates")
		}

		var created [3]sessions.Session
		for i, sl := range matched {
			slotID := sl.ID
			created[i], err = tx.CreateSession(ctx, sessions.Session{
				SlotID:          &slotID,
				Name:            req.Name,
				Email:           req.Email,
				ProgramName:     req.ProgramName,
				SessionDate:     sl.Date,
				SessionTime:     sl.Time,
				SessionType:     sl.SessionType,
				MeetingPlatform: sessions.PlatformNone,
				Capacity:        sessions.DefaultCapacity,
			})
			if err != nil {
				return err
			}
		}

		// a slot can appear twice only if both daytime picks match, which
		// the date check above already rejected
		for _, sl := range matched {
			if _, err := tx.ConsumeSlot(ctx, sl.ID); err != nil {
				if db.IsNotFound(err) {
					return apperr.Capacity("Time slot %s %s is no longer available", sl.Date, sl.Time)
				}
				return err
			}
		}

		out = Booked{Session1: created[0], Session2: created[1], Session3: created[2]}
		return nil
	})
	if err != nil {
		return Booked{}, err
	}

	s.log.Info().
		Str("email", req.Email).
		Str("program", req.ProgramName).
		Str("session1", out.Session1.ID.String()).
		Str("session2", out.Session2.ID.String()).
		Str("session3", out.Session3.ID.String()).
		Msg("sessions reserved")
	return out, nil
}

type CrawlRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	CrawlID string `json:"crawlId" validate:"required,uuid"`
}

// RegisterCrawl admits one person to a crawl. The crawl row is locked for the
// duration so the count check and the insert cannot interleave with another
// registration for the same crawl.
func (s *Service) RegisterCrawl(ctx context.Context, req CrawlRequest) (crawls.WithCrawl, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.CrawlID = strings.TrimSpace(req.CrawlID)
	if err := validate.Struct(ctx, req); err != nil {
		return crawls.WithCrawl{}, err
	}
	if !IsStaffEmail(req.Email, s.staffDomain) {
		return crawls.WithCrawl{}, apperr.Validation("Site crawls are open to staff only: email must end with %s", s.staffDomain)
	}
	crawlID, err := uuid.Parse(req.CrawlID)
	if err != nil {
		return crawls.WithCrawl{}, apperr.Validation("crawlId must be a valid id")
	}

	var out crawls.WithCrawl
	err = s.store.InTx(ctx, func(tx Tx) error {
		c, err := tx.LockCrawl(ctx, crawlID)
		if db.IsNotFound(err) {
			return apperr.NotFound("Crawl not found")
		}
		if err != nil {
			return err
		}

		n, err := tx.CountConfirmed(ctx, crawlID)
		if err != nil {
			return err
		}
		if n >= c.Capacity {
			return apperr.Capacity("Crawl %s is full", c.Name)
		}

		dup, err := tx.HasConfirmed(ctx, crawlID, req.Email)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Conflict("You are already registered for this crawl")
		}

		reg, err := tx.CreateCrawlRegistration(ctx, crawls.Registration{
			CrawlID: crawlID,
			Name:    req.Name,
			Email:   req.Email,
			Status:  registrations.StatusConfirmed,
		})
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("You are already registered for this crawl")
		}
		if err != nil {
			return err
		}

		if n+1 >= c.Capacity {
			if err := tx.SetCrawlAvailable(ctx, crawlID, false); err != nil {
				return err
			}
			c.Available = false
		}
		out = crawls.WithCrawl{Registration: reg, Crawl: &c}
		return nil
	})
	if err != nil {
		return crawls.WithCrawl{}, err
	}

	s.log.Info().
		Str("crawl_id", crawlID.String()).
		Str("registration_id", out.ID.String()).
		Bool("crawl_available", out.Crawl.Available).
		Msg("crawl registration created")
	return out, nil
}

// UpdateCrawlRegistration applies an admin edit to a crawl registration.
// Moving a registration back to CONFIRMED goes through the same crawl lock,
// capacity check and duplicate check as RegisterCrawl, and the crawl's
// available flag is recomputed before commit.
func (s *Service) UpdateCrawlRegistration(ctx context.Context, id uuid.UUID, p crawls.RegistrationPatch) (crawls.Registration, error) {
	if err := validate.Struct(ctx, p); err != nil {
		return crawls.Registration{}, err
	}

	var out crawls.Registration
	err := s.store.InTx(ctx, func(tx Tx) error {
		cur, err := tx.GetCrawlRegistration(ctx, id)
		if db.IsNotFound(err) {
			return apperr.NotFound("Crawl registration not found")
		}
		if err != nil {
			return err
		}
		c, err := tx.LockCrawl(ctx, cur.CrawlID)
		if db.IsNotFound(err) {
			return apperr.NotFound("Crawl not found")
		}
		if err != nil {
			return err
		}
		// status may have moved while we waited for the lock
		cur, err = tx.GetCrawlRegistration(ctx, id)
		if db.IsNotFound(err) {
			return apperr.NotFound("Crawl registration not found")
		}
		if err != nil {
			return err
		}

		if p.Status != nil && *p.Status == registrations.StatusConfirmed && cur.Status != registrations.StatusConfirmed {
			n, err := tx.CountConfirmed(ctx, c.ID)
			if err != nil {
				return err
			}
			if n >= c.Capacity {
				return apperr.Capacity("Crawl %s is full", c.Name)
			}
			dup, err := tx.HasConfirmed(ctx, c.ID, cur.Email)
			if err != nil {
				return err
			}
			if dup {
				return apperr.Conflict("This email already has a confirmed registration for the crawl")
			}
		}

		reg, err := tx.UpdateCrawlRegistration(ctx, id, p)
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("This email already has a confirmed registration for the crawl")
		}
		if err != nil {
			return err
		}

		n, err := tx.CountConfirmed(ctx, c.ID)
		if err != nil {
			return err
		}
		if err := tx.SetCrawlAvailable(ctx, c.ID, n < c.Capacity); err != nil {
			return err
		}
		out = reg
		return nil
	})
	if err != nil {
		return crawls.Registration{}, err
	}

	s.log.Info().
		Str("crawl_id", out.CrawlID.String()).
		Str("registration_id", out.ID.String()).
		Str("status", string(out.Status)).
		Msg("crawl registration updated")
	return out, nil
}

type SessionRegistrationRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email"`
	Language    string `json:"language" validate:"required,language"`
	ProgramName string `json:"programName" validate:"max=200"`
	AgencyName  string `json:"agencyName" validate:"max=200"`
	SessionID   string `json:"sessionId" validate:"required,uuid"`
}

// RegisterSession records a confirmed registration, with the registrant's
// preferred language, against an existing session.
func (s *Service) RegisterSession(ctx context.Context, req SessionRegistrationRequest) (registrations.WithSession, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.ProgramName = strings.TrimSpace(req.ProgramName)
	req.AgencyName = strings.TrimSpace(req.AgencyName)
	req.SessionID = strings.TrimSpace(req.SessionID)
	if err := validate.Struct(ctx, req); err != nil {
		return registrations.WithSession{}, err
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return registrations.WithSession{}, apperr.Validation("sessionId must be a valid id")
	}

	var out registrations.WithSession
	err = s.store.InTx(ctx, func(tx Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if db.IsNotFound(err) {
			return apperr.NotFound("Session not found")
		}
		if err != nil {
			return err
		}

		program := req.ProgramName
		if program == "" {
			program = sess.ProgramName
		}
		agency := req.AgencyName
		if agency == "" {
			agency = registrations.DefaultAgency
		}
		reg, err := tx.CreateRegistration(ctx, registrations.Registration{
			SessionID:    sessionID,
			Name:         req.Name,
			Email:        req.Email,
			Language:     req.Language,
			ProgramName:  program,
			AgencyName:   agency,
			IsNYCPSStaff: IsStaffEmail(req.Email, s.staffDomain),
			Status:       registrations.StatusConfirmed,
		})
		if err != nil {
			return err
		}
		out = registrations.WithSession{Registration: reg, Session: &sess}
		return nil
	})
	if err != nil {
		return registrations.WithSession{}, err
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("registration_id", out.ID.String()).
		Bool("staff", out.IsNYCPSStaff).
		Msg("session registration created")
	return out, nil
}
