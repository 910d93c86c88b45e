package sessions

import (
	"context"
	"time"

	"github.com/example/takeover-week/internal/db"
	"github.com/example/takeover-week/internal/slots"
	"github.com/google/uuid"
)

type Platform string

const (
	PlatformNone  Platform = "none"
	PlatformZoom  Platform = "zoom"
	PlatformTeams Platform = "teams"
)

const DefaultCapacity = 30

type Session struct {
	ID              uuid.UUID         `json:"id"`
	SlotID          *uuid.UUID        `json:"slotId,omitempty"`
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	ProgramName     string            `json:"programName"`
	SessionDate     string            `json:"sessionDate"`
	SessionTime     string            `json:"sessionTime"`
	SessionType     slots.SessionType `json:"sessionType"`
	MeetingLink     string            `json:"meetingLink,omitempty"`
	MeetingPlatform Platform          `json:"meetingPlatform"`
	Capacity        int               `json:"capacity"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Patch is the admin-editable subset of a session. Nil fields are unchanged.
type Patch struct {
	MeetingLink     *string   `json:"meetingLink" validate:"omitempty,max=2048"`
	MeetingPlatform *Platform `json:"meetingPlatform" validate:"omitempty,platform"`
	Capacity        *int      `json:"capacity" validate:"omitempty,min=0,max=10000"`
}

const columns = `id, slot_id, name, email, program_name, session_date, session_time, session_type, meeting_link, meeting_platform, capacity, created_at, updated_at`

type Repo struct{ q db.Querier }

func NewRepo(q db.Querier) *Repo { return &Repo{q: q} }

func scan(row db.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.SlotID, &s.Name, &s.Email, &s.ProgramName, &s.SessionDate, &s.SessionTime,
		&s.SessionType, &s.MeetingLink, &s.MeetingPlatform, &s.Capacity, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *Repo) Create(ctx context.Context, s Session) (Session, error) {
	if s.MeetingPlatform == "" {
		s.MeetingPlatform = PlatformNone
	}
	if s.Capacity == 0 {
		s.Capacity = DefaultCapacity
	}
	out, err := scan(r.q.QueryRow(ctx, `
INSERT INTO sessions(slot_id, name, email, program_name, session_date, session_time, session_type, meeting_link, meeting_platform, capacity)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING `+columns,
		s.SlotID, s.Name, s.Email, s.ProgramName, s.SessionDate, s.SessionTime, string(s.SessionType),
		s.MeetingLink, string(s.MeetingPlatform), s.Capacity,
	))
	return out, db.WrapNotFound(err)
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	s, err := scan(r.q.QueryRow(ctx, `SELECT `+columns+` FROM sessions WHERE id=$1`, id))
	return s, db.WrapNotFound(err)
}

func (r *Repo) List(ctx context.Context) ([]Session, error) {
	rows, err := r.q.Query(ctx, `SELECT `+columns+` FROM sessions ORDER BY session_date, session_time, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) Update(ctx context.Context, id uuid.UUID, p Patch) (Session, error) {
	var platform *string
	if p.MeetingPlatform != nil {
		v := string(*p.MeetingPlatform)
		platform = &v
	}
	s, err := scan(r.q.QueryRow(ctx, `
UPDATE sessions SET
	meeting_link = COALESCE($2, meeting_link),
	meeting_platform = COALESCE($3, meeting_platform),
	capacity = COALESCE($4, capacity),
	updated_at = now()
WHERE id = $1
RETURNING `+columns, id, p.MeetingLink, platform, p.Capacity))
	return s, db.WrapNotFound(err)
}

func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}
