package booking

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/db"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/example/takeover-week/internal/sessions"
	"github.com/example/takeover-week/internal/slots"
	"github.com/google/uuid"
)

// memStore serializes transactions behind one mutex, which is at least as
// strict as the row locks the postgres store takes, and restores a snapshot
// when fn fails.
type memStore struct {
	mu sync.Mutex

	slots         map[uuid.UUID]slots.Slot
	sessions      map[uuid.UUID]sessions.Session
	registrations map[uuid.UUID]registrations.Registration
	crawls        map[uuid.UUID]crawls.Crawl
	crawlRegs     map[uuid.UUID]crawls.Registration
}

func newMemStore() *memStore {
	return &memStore{
		slots:         map[uuid.UUID]slots.Slot{},
		sessions:      map[uuid.UUID]sessions.Session{},
		registrations: map[uuid.UUID]registrations.Registration{},
		crawls:        map[uuid.UUID]crawls.Crawl{},
		crawlRegs:     map[uuid.UUID]crawls.Registration{},
	}
}

func (m *memStore) addSlot(date, tm string, typ slots.SessionType, capacity int) slots.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := slots.Slot{ID: uuid.New(), Date: date, Time: tm, SessionType: typ, Capacity: capacity, Available: capacity > 0}
	m.slots[s.ID] = s
	return s
}

func (m *memStore) addCrawl(name string, capacity int) crawls.Crawl {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := crawls.Crawl{ID: uuid.New(), Name: name, Date: "2025-02-27", Time: "10:00", Capacity: capacity, Available: capacity > 0}
	m.crawls[c.ID] = c
	return c
}

func (m *memStore) slot(id uuid.UUID) slots.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id]
}

func (m *memStore) crawl(id uuid.UUID) crawls.Crawl {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.crawls[id]
}

func (m *memStore) crawlReg(id uuid.UUID) crawls.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.crawlRegs[id]
}

func (m *memStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *memStore) allSlots() []slots.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]slots.Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s)
	}
	return out
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := memState{
		slots:         maps.Clone(m.slots),
		sessions:      maps.Clone(m.sessions),
		registrations: maps.Clone(m.registrations),
		crawls:        maps.Clone(m.crawls),
		crawlRegs:     maps.Clone(m.crawlRegs),
	}
	if err := fn(memTx{m}); err != nil {
		m.slots, m.sessions, m.registrations = snap.slots, snap.sessions, snap.registrations
		m.crawls, m.crawlRegs = snap.crawls, snap.crawlRegs
		return err
	}
	return nil
}

type memState struct {
	slots         map[uuid.UUID]slots.Slot
	sessions      map[uuid.UUID]sessions.Session
	registrations map[uuid.UUID]registrations.Registration
	crawls        map[uuid.UUID]crawls.Crawl
	crawlRegs     map[uuid.UUID]crawls.Registration
}

// memTx runs with memStore.mu already held.
type memTx struct{ m *memStore }

func (t memTx) LockSlots(_ context.Context, keys []slots.Key) ([]slots.Slot, error) {
	var out []slots.Slot
	for _, s := range t.m.slots {
		for _, k := range keys {
			if s.Key() == k {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (t memTx) ConsumeSlot(_ context.Context, id uuid.UUID) (slots.Slot, error) {
	s, ok := t.m.slots[id]
	if !ok || s.Capacity <= 0 || !s.Available {
		return slots.Slot{}, db.ErrNotFound
	}
	s.Capacity--
	s.Available = s.Capacity > 0
	t.m.slots[id] = s
	return s, nil
}

func (t memTx) CreateSession(_ context.Context, s sessions.Session) (sessions.Session, error) {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	t.m.sessions[s.ID] = s
	return s, nil
}

func (t memTx) GetSession(_ context.Context, id uuid.UUID) (sessions.Session, error) {
	s, ok := t.m.sessions[id]
	if !ok {
		return sessions.Session{}, db.ErrNotFound
	}
	return s, nil
}

func (t memTx) CreateRegistration(_ context.Context, r registrations.Registration) (registrations.Registration, error) {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	t.m.registrations[r.ID] = r
	return r, nil
}

func (t memTx) LockCrawl(_ context.Context, id uuid.UUID) (crawls.Crawl, error) {
	c, ok := t.m.crawls[id]
	if !ok {
		return crawls.Crawl{}, db.ErrNotFound
	}
	return c, nil
}

func (t memTx) CountConfirmed(_ context.Context, crawlID uuid.UUID) (int, error) {
	n := 0
	for _, r := range t.m.crawlRegs {
		if r.CrawlID == crawlID && r.Status == registrations.StatusConfirmed {
			n++
		}
	}
	return n, nil
}

func (t memTx) HasConfirmed(_ context.Context, crawlID uuid.UUID, email string) (bool, error) {
	for _, r := range t.m.crawlRegs {
		if r.CrawlID == crawlID && r.Status == registrations.StatusConfirmed && strings.EqualFold(r.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (t memTx) CreateCrawlRegistration(_ context.Context, r crawls.Registration) (crawls.Registration, error) {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	t.m.crawlRegs[r.ID] = r
	return r, nil
}

func (t memTx) GetCrawlRegistration(_ context.Context, id uuid.UUID) (crawls.Registration, error) {
	r, ok := t.m.crawlRegs[id]
	if !ok {
		return crawls.Registration{}, db.ErrNotFound
	}
	return r, nil
}

func (t memTx) UpdateCrawlRegistration(_ context.Context, id uuid.UUID, p crawls.RegistrationPatch) (crawls.Registration, error) {
	r, ok := t.m.crawlRegs[id]
	if !ok {
		return crawls.Registration{}, db.ErrNotFound
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.EmailSent != nil {
		r.EmailSent = *p.EmailSent
	}
	r.UpdatedAt = time.Now()
	t.m.crawlRegs[id] = r
	return r, nil
}

func (t memTx) SetCrawlAvailable(_ context.Context, id uuid.UUID, available bool) error {
	c := t.m.crawls[id]
	c.Available = available
	t.m.crawls[id] = c
	return nil
}
