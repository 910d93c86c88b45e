package registrations

import (
	"context"
	"time"

	"github.com/example/takeover-week/internal/db"
	"github.com/example/takeover-week/internal/sessions"
	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool { return s == StatusConfirmed || s == StatusCancelled }

const DefaultAgency = "Public"

// Languages offered on the registration form.
var Languages = []string{
	"English",
	"Spanish",
	"Chinese (Mandarin)",
	"Chinese (Cantonese)",
	"Bengali",
	"Russian",
	"Haitian Creole",
	"Korean",
	"Arabic",
	"Urdu",
	"French",
	"American Sign Language",
}

func ValidLanguage(s string) bool {
	for _, l := range Languages {
		if l == s {
			return true
		}
	}
	return false
}

type Registration struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"sessionId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Language     string    `json:"language"`
	ProgramName  string    `json:"programName"`
	AgencyName   string    `json:"agencyName"`
	IsNYCPSStaff bool      `json:"isNYCPSStaff"`
	Status       Status    `json:"status"`
	EmailSent    bool      `json:"emailSent"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// WithSession is a registration enriched with the session it points at.
type WithSession struct {
	Registration
	Session *sessions.Session `json:"session,omitempty"`
}

// Patch is the admin-editable subset of a registration.
type Patch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Language    *string `json:"language" validate:"omitempty,language"`
	ProgramName *string `json:"programName" validate:"omitempty,min=1,max=200"`
	AgencyName  *string `json:"agencyName" validate:"omitempty,max=200"`
	Status      *Status `json:"status" validate:"omitempty,oneof=CONFIRMED CANCELLED"`
	EmailSent   *bool   `json:"emailSent"`
}

const columns = `r.id, r.session_id, r.name, r.email, r.language, r.program_name, r.agency_name, r.is_nycps_staff, r.status, r.email_sent, r.created_at, r.updated_at`

type Repo struct{ q db.Querier }

func NewRepo(q db.Querier) *Repo { return &Repo{q: q} }

func scan(row db.Row) (Registration, error) {
	var r Registration
	err := row.Scan(&r.ID, &r.SessionID, &r.Name, &r.Email, &r.Language, &r.ProgramName, &r.AgencyName,
		&r.IsNYCPSStaff, &r.Status, &r.EmailSent, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (r *Repo) Create(ctx context.Context, reg Registration) (Registration, error) {
	if reg.AgencyName == "" {
		reg.AgencyName = DefaultAgency
	}
	if reg.Status == "" {
		reg.Status = StatusConfirmed
	}
	out, err := scan(r.q.QueryRow(ctx, `
INSERT INTO registrations AS r(session_id, name, email, language, program_name, agency_name, is_nycps_staff, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING `+columns,
		reg.SessionID, reg.Name, reg.Email, reg.Language, reg.ProgramName, reg.AgencyName, reg.IsNYCPSStaff, string(reg.Status),
	))
	return out, db.WrapNotFound(err)
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (Registration, error) {
	reg, err := scan(r.q.QueryRow(ctx, `SELECT `+columns+` FROM registrations r WHERE r.id=$1`, id))
	return reg, db.WrapNotFound(err)
}

func (r *Repo) List(ctx context.Context) ([]Registration, error) {
	rows, err := r.q.Query(ctx, `SELECT `+columns+` FROM registrations r ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Registration{}
	for rows.Next() {
		reg, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (r *Repo) Update(ctx context.Context, id uuid.UUID, p Patch) (Registration, error) {
	var status *string
	if p.Status != nil {
		v := string(*p.Status)
		status = &v
	}
	reg, err := scan(r.q.QueryRow(ctx, `
UPDATE registrations AS r SET
	name = COALESCE($2, name),
	email = COALESCE($3, email),
	language = COALESCE($4, language),
	program_name = COALESCE($5, program_name),
	agency_name = COALESCE($6, agency_name),
	status = COALESCE($7, status),
	email_sent = COALESCE($8, email_sent),
	updated_at = now()
WHERE r.id = $1
RETURNING `+columns, id, p.Name, p.Email, p.Language, p.ProgramName, p.AgencyName, status, p.EmailSent))
	return reg, db.WrapNotFound(err)
}

func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.q.Exec(ctx, `DELETE FROM registrations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// Pending returns confirmed registrations whose email has not been sent,
// oldest first, joined with their session.
func (r *Repo) Pending(ctx context.Context, limit int) ([]WithSession, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+columns+`,
	s.id, s.slot_id, s.name, s.email, s.program_name, s.session_date, s.session_time, s.session_type,
	s.meeting_link, s.meeting_platform, s.capacity, s.created_at, s.updated_at
FROM registrations r
JOIN sessions s ON s.id = r.session_id
WHERE r.status = 'CONFIRMED' AND r.email_sent = false
ORDER BY r.created_at, r.id
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []WithSession{}
	for rows.Next() {
		var (
			reg Registration
			s   sessions.Session
		)
		if err := rows.Scan(&reg.ID, &reg.SessionID, &reg.Name, &reg.Email, &reg.Language, &reg.ProgramName, &reg.AgencyName,
			&reg.IsNYCPSStaff, &reg.Status, &reg.EmailSent, &reg.CreatedAt, &reg.UpdatedAt,
			&s.ID, &s.SlotID, &s.Name, &s.Email, &s.ProgramName, &s.SessionDate, &s.SessionTime, &s.SessionType,
			&s.MeetingLink, &s.MeetingPlatform, &s.Capacity, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, WithSession{Registration: reg, Session: &s})
	}
	return out, rows.Err()
}

// MarkSent flips email_sent for the given ids and returns how many rows moved
// from false to true. Already-sent rows are not counted.
func (r *Repo) MarkSent(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.q.Exec(ctx, `UPDATE registrations SET email_sent = true, updated_at = now() WHERE id = ANY($1::uuid[]) AND email_sent = false`, idStrings(ids))
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
