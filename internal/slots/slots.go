package slots

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/takeover-week/internal/db"
	"github.com/google/uuid"
)

type SessionType string

const (
	Daytime SessionType = "daytime"
	Evening SessionType = "evening"
)

func (t SessionType) Valid() bool { return t == Daytime || t == Evening }

type Slot struct {
	ID          uuid.UUID   `json:"id"`
	Date        string      `json:"date"`
	Time        string      `json:"time"`
	SessionType SessionType `json:"sessionType"`
	Capacity    int         `json:"capacity"`
	Available   bool        `json:"available"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Open reports whether the slot can take another booking.
func (s Slot) Open() bool { return s.Available && s.Capacity > 0 }

// Key addresses a slot the way clients refer to it.
type Key struct {
	Date string
	Time string
	Type SessionType
}

func (k Key) String() string { return k.Date + " " + k.Time }

func (s Slot) Key() Key { return Key{Date: s.Date, Time: s.Time, Type: s.SessionType} }

func (s Slot) Validate() error {
	if _, err := time.Parse("2006-01-02", s.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", s.Time); err != nil {
		return fmt.Errorf("time must be HH:MM")
	}
	if !s.SessionType.Valid() {
		return fmt.Errorf("sessionType must be daytime or evening")
	}
	if s.Capacity < 0 {
		return fmt.Errorf("capacity must be >= 0")
	}
	return nil
}

const columns = `id, slot_date, slot_time, session_type, capacity, available, created_at, updated_at`

type Repo struct{ q db.Querier }

func NewRepo(q db.Querier) *Repo { return &Repo{q: q} }

func scan(row db.Row) (Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.Date, &s.Time, &s.SessionType, &s.Capacity, &s.Available, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *Repo) collect(ctx context.Context, sql string, args ...any) ([]Slot, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Slot{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a slot. Existing (date, time, type) rows are left untouched
// and reported with created=false.
func (r *Repo) Create(ctx context.Context, s Slot) (Slot, bool, error) {
	if err := s.Validate(); err != nil {
		return Slot{}, false, err
	}
	out, err := scan(r.q.QueryRow(ctx, `
INSERT INTO slots(slot_date, slot_time, session_type, capacity, available)
VALUES ($1,$2,$3,$4,$4 > 0)
ON CONFLICT (slot_date, slot_time, session_type) DO NOTHING
RETURNING `+columns,
		s.Date, s.Time, s.SessionType, s.Capacity,
	))
	if db.IsNotFound(err) {
		return Slot{}, false, nil
	}
	if err != nil {
		return Slot{}, false, err
	}
	return out, true, nil
}

func (r *Repo) List(ctx context.Context) ([]Slot, error) {
	return r.collect(ctx, `SELECT `+columns+` FROM slots ORDER BY slot_date, slot_time, session_type`)
}

// ListAvailable returns open slots, optionally limited to one session type.
func (r *Repo) ListAvailable(ctx context.Context, typ SessionType) ([]Slot, error) {
	return r.collect(ctx, `
SELECT `+columns+` FROM slots
WHERE available AND capacity > 0 AND ($1 = '' OR session_type = $1)
ORDER BY slot_date, slot_time`, string(typ))
}

// LockByKeys selects and row-locks the slots matching keys. Rows are locked in
// id order so concurrent bookings over overlapping slots cannot deadlock.
// Keys with no matching slot are simply absent from the result.
func (r *Repo) LockByKeys(ctx context.Context, keys []Key) ([]Slot, error) {
	if len(keys) == 0 {
		return []Slot{}, nil
	}
	var (
		conds []string
		args  []any
	)
	for i, k := range keys {
		n := i * 3
		conds = append(conds, fmt.Sprintf("(slot_date=$%d AND slot_time=$%d AND session_type=$%d)", n+1, n+2, n+3))
		args = append(args, k.Date, k.Time, string(k.Type))
	}
	return r.collect(ctx, `SELECT `+columns+` FROM slots WHERE `+strings.Join(conds, " OR ")+` ORDER BY id FOR UPDATE`, args...)
}

// Consume takes one seat. It returns db.ErrNotFound when the slot has no seat
// left, which callers treat as a capacity failure.
func (r *Repo) Consume(ctx context.Context, id uuid.UUID) (Slot, error) {
	s, err := scan(r.q.QueryRow(ctx, `
UPDATE slots
SET capacity = capacity - 1, available = capacity - 1 > 0, updated_at = now()
WHERE id = $1 AND capacity > 0 AND available
RETURNING `+columns, id))
	return s, db.WrapNotFound(err)
}
