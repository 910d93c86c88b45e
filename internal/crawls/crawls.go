package crawls

import (
	"context"
	"time"

	"github.com/example/takeover-week/internal/db"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/google/uuid"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Crawl is an in-person site tour with a fixed capacity. Available is a
// cached "room left" flag; the live confirmed count is authoritative.
type Crawl struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Location    string       `json:"location"`
	Address     string       `json:"address"`
	Date        string       `json:"date"`
	Time        string       `json:"time"`
	EndTime     string       `json:"endTime"`
	Borough     string       `json:"borough"`
	Capacity    int          `json:"capacity"`
	Available   bool         `json:"available"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Summary adds live seat counts to a crawl for listings.
type Summary struct {
	Crawl
	Confirmed int `json:"confirmed"`
	Remaining int `json:"remaining"`
}

// Input is the admin create/replace payload.
type Input struct {
	Name        string       `json:"name" validate:"required,max=200"`
	Location    string       `json:"location" validate:"required,max=200"`
	Address     string       `json:"address" validate:"max=300"`
	Date        string       `json:"date" validate:"required,isodate"`
	Time        string       `json:"time" validate:"required,hhmm"`
	EndTime     string       `json:"endTime" validate:"omitempty,hhmm"`
	Borough     string       `json:"borough" validate:"max=50"`
	Capacity    int          `json:"capacity" validate:"min=0,max=10000"`
	Coordinates *Coordinates `json:"coordinates"`
	Description string       `json:"description" validate:"max=5000"`
}

// Patch is the admin-editable subset of a crawl. Nil fields are unchanged.
type Patch struct {
	Name        *string      `json:"name" validate:"omitempty,min=1,max=200"`
	Location    *string      `json:"location" validate:"omitempty,min=1,max=200"`
	Address     *string      `json:"address" validate:"omitempty,max=300"`
	Date        *string      `json:"date" validate:"omitempty,isodate"`
	Time        *string      `json:"time" validate:"omitempty,hhmm"`
	EndTime     *string      `json:"endTime" validate:"omitempty,hhmm"`
	Borough     *string      `json:"borough" validate:"omitempty,max=50"`
	Capacity    *int         `json:"capacity" validate:"omitempty,min=0,max=10000"`
	Coordinates *Coordinates `json:"coordinates"`
	Description *string      `json:"description" validate:"omitempty,max=5000"`
}

type Registration struct {
	ID        uuid.UUID            `json:"id"`
	CrawlID   uuid.UUID            `json:"crawlId"`
	Name      string               `json:"name"`
	Email     string               `json:"email"`
	Status    registrations.Status `json:"status"`
	EmailSent bool                 `json:"emailSent"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// WithCrawl is a crawl registration enriched with its crawl.
type WithCrawl struct {
	Registration
	Crawl *Crawl `json:"crawl,omitempty"`
}

type RegistrationPatch struct {
	Status    *registrations.Status `json:"status" validate:"omitempty,oneof=CONFIRMED CANCELLED"`
	EmailSent *bool                 `json:"emailSent"`
}

const (
	crawlColumns = `c.id, c.name, c.location, c.address, c.crawl_date, c.start_time, c.end_time, c.borough, c.capacity, c.available, c.latitude, c.longitude, c.description, c.created_at, c.updated_at`
	regColumns   = `cr.id, cr.crawl_id, cr.name, cr.email, cr.status, cr.email_sent, cr.created_at, cr.updated_at`
)

type Repo struct{ q db.Querier }

func NewRepo(q db.Querier) *Repo { return &Repo{q: q} }

func crawlDest(c *Crawl, lat, lng **float64) []any {
	return []any{&c.ID, &c.Name, &c.Location, &c.Address, &c.Date, &c.Time, &c.EndTime, &c.Borough,
		&c.Capacity, &c.Available, lat, lng, &c.Description, &c.CreatedAt, &c.UpdatedAt}
}

func setCoords(c *Crawl, lat, lng *float64) {
	if lat != nil && lng != nil {
		c.Coordinates = &Coordinates{Lat: *lat, Lng: *lng}
	}
}

func coordArgs(c *Coordinates) (*float64, *float64) {
	if c == nil {
		return nil, nil
	}
	return &c.Lat, &c.Lng
}

func scanCrawl(row db.Row) (Crawl, error) {
	var (
		c        Crawl
		lat, lng *float64
	)
	if err := row.Scan(crawlDest(&c, &lat, &lng)...); err != nil {
		return Crawl{}, err
	}
	setCoords(&c, lat, lng)
	return c, nil
}

func regDest(r *Registration) []any {
	return []any{&r.ID, &r.CrawlID, &r.Name, &r.Email, &r.Status, &r.EmailSent, &r.CreatedAt, &r.UpdatedAt}
}

func scanRegistration(row db.Row) (Registration, error) {
	var r Registration
	err := row.Scan(regDest(&r)...)
	return r, err
}

// List returns every crawl with its live confirmed count.
func (r *Repo) List(ctx context.Context) ([]Summary, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+crawlColumns+`,
	(SELECT count(*) FROM crawl_registrations cr WHERE cr.crawl_id = c.id AND cr.status = 'CONFIRMED')
FROM crawls c
ORDER BY c.crawl_date, c.start_time, c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			s        Summary
			lat, lng *float64
		)
		dest := append(crawlDest(&s.Crawl, &lat, &lng), &s.Confirmed)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		setCoords(&s.Crawl, lat, lng)
		s.Remaining = max(s.Capacity-s.Confirmed, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (Crawl, error) {
	c, err := scanCrawl(r.q.QueryRow(ctx, `SELECT `+crawlColumns+` FROM crawls c WHERE c.id=$1`, id))
	return c, db.WrapNotFound(err)
}

// Lock selects the crawl row FOR UPDATE. Only meaningful inside a transaction.
func (r *Repo) Lock(ctx context.Context, id uuid.UUID) (Crawl, error) {
	c, err := scanCrawl(r.q.QueryRow(ctx, `SELECT `+crawlColumns+` FROM crawls c WHERE c.id=$1 FOR UPDATE`, id))
	return c, db.WrapNotFound(err)
}

// Create inserts a crawl; an existing (name, date) pair is left untouched and
// reported with created=false.
func (r *Repo) Create(ctx context.Context, in Input) (Crawl, bool, error) {
	lat, lng := coordArgs(in.Coordinates)
	c, err := scanCrawl(r.q.QueryRow(ctx, `
INSERT INTO crawls AS c(name, location, address, crawl_date, start_time, end_time, borough, capacity, available, latitude, longitude, description)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8 > 0,$9,$10,$11)
ON CONFLICT (name, crawl_date) DO NOTHING
RETURNING `+crawlColumns,
		in.Name, in.Location, in.Address, in.Date, in.Time, in.EndTime, in.Borough, in.Capacity, lat, lng, in.Description,
	))
	if db.IsNotFound(err) {
		return Crawl{}, false, nil
	}
	if err != nil {
		return Crawl{}, false, err
	}
	return c, true, nil
}

// Update applies p and recomputes the available flag against the live count.
func (r *Repo) Update(ctx context.Context, id uuid.UUID, p Patch) (Crawl, error) {
	lat, lng := coordArgs(p.Coordinates)
	c, err := scanCrawl(r.q.QueryRow(ctx, `
UPDATE crawls AS c SET
	name = COALESCE($2, name),
	location = COALESCE($3, location),
	address = COALESCE($4, address),
	crawl_date = COALESCE($5, crawl_date),
	start_time = COALESCE($6, start_time),
	end_time = COALESCE($7, end_time),
	borough = COALESCE($8, borough),
	capacity = COALESCE($9, capacity),
	latitude = COALESCE($10, latitude),
	longitude = COALESCE($11, longitude),
	description = COALESCE($12, description),
	available = (SELECT count(*) FROM crawl_registrations cr WHERE cr.crawl_id = c.id AND cr.status = 'CONFIRMED') < COALESCE($9, capacity),
	updated_at = now()
WHERE c.id = $1
RETURNING `+crawlColumns,
		id, p.Name, p.Location, p.Address, p.Date, p.Time, p.EndTime, p.Borough, p.Capacity, lat, lng, p.Description,
	))
	return c, db.WrapNotFound(err)
}

func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.q.Exec(ctx, `DELETE FROM crawls WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *Repo) SetAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	_, err := r.q.Exec(ctx, `UPDATE crawls SET available=$2, updated_at=now() WHERE id=$1`, id, available)
	return err
}

// RefreshAvailable recomputes the cached flag from the live confirmed count.
func (r *Repo) RefreshAvailable(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
UPDATE crawls c SET
	available = (SELECT count(*) FROM crawl_registrations cr WHERE cr.crawl_id = c.id AND cr.status = 'CONFIRMED') < c.capacity,
	updated_at = now()
WHERE c.id = $1`, id)
	return err
}

func (r *Repo) CountConfirmed(ctx context.Context, crawlID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT count(*) FROM crawl_registrations WHERE crawl_id=$1 AND status='CONFIRMED'`, crawlID).Scan(&n)
	return n, err
}

func (r *Repo) HasConfirmed(ctx context.Context, crawlID uuid.UUID, email string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM crawl_registrations WHERE crawl_id=$1 AND lower(email)=lower($2) AND status='CONFIRMED')`,
		crawlID, email).Scan(&ok)
	return ok, err
}

func (r *Repo) CreateRegistration(ctx context.Context, reg Registration) (Registration, error) {
	if reg.Status == "" {
		reg.Status = registrations.StatusConfirmed
	}
	out, err := scanRegistration(r.q.QueryRow(ctx, `
INSERT INTO crawl_registrations AS cr(crawl_id, name, email, status)
VALUES ($1,$2,$3,$4)
RETURNING `+regColumns, reg.CrawlID, reg.Name, reg.Email, string(reg.Status)))
	return out, db.WrapNotFound(err)
}

func (r *Repo) GetRegistration(ctx context.Context, id uuid.UUID) (Registration, error) {
	reg, err := scanRegistration(r.q.QueryRow(ctx, `SELECT `+regColumns+` FROM crawl_registrations cr WHERE cr.id=$1`, id))
	return reg, db.WrapNotFound(err)
}

func (r *Repo) ListRegistrations(ctx context.Context, crawlID uuid.UUID) ([]Registration, error) {
	rows, err := r.q.Query(ctx, `SELECT `+regColumns+` FROM crawl_registrations cr WHERE cr.crawl_id=$1 ORDER BY cr.created_at`, crawlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateRegistration(ctx context.Context, id uuid.UUID, p RegistrationPatch) (Registration, error) {
	var status *string
	if p.Status != nil {
		v := string(*p.Status)
		status = &v
	}
	reg, err := scanRegistration(r.q.QueryRow(ctx, `
UPDATE crawl_registrations AS cr SET
	status = COALESCE($2, status),
	email_sent = COALESCE($3, email_sent),
	updated_at = now()
WHERE cr.id = $1
RETURNING `+regColumns, id, status, p.EmailSent))
	return reg, db.WrapNotFound(err)
}

// DeleteRegistration removes a registration and returns the crawl it belonged to.
func (r *Repo) DeleteRegistration(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var crawlID uuid.UUID
	err := r.q.QueryRow(ctx, `DELETE FROM crawl_registrations WHERE id=$1 RETURNING crawl_id`, id).Scan(&crawlID)
	return crawlID, db.WrapNotFound(err)
}

// Pending returns confirmed crawl registrations whose email has not been
// sent, oldest first, joined with their crawl.
func (r *Repo) Pending(ctx context.Context, limit int) ([]WithCrawl, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+regColumns+`, `+crawlColumns+`
FROM crawl_registrations cr
JOIN crawls c ON c.id = cr.crawl_id
WHERE cr.status = 'CONFIRMED' AND cr.email_sent = false
ORDER BY cr.created_at, cr.id
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []WithCrawl{}
	for rows.Next() {
		var (
			reg      Registration
			c        Crawl
			lat, lng *float64
		)
		dest := append(regDest(&reg), crawlDest(&c, &lat, &lng)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		setCoords(&c, lat, lng)
		out = append(out, WithCrawl{Registration: reg, Crawl: &c})
	}
	return out, rows.Err()
}

func (r *Repo) MarkSent(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return r.q.Exec(ctx, `UPDATE crawl_registrations SET email_sent = true, updated_at = now() WHERE id = ANY($1::uuid[]) AND email_sent = false`, strs)
}
