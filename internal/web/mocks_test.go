package web

import (
	"context"

	"github.com/example/takeover-week/internal/booking"
	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/db"
	"github.com/example/takeover-week/internal/notify"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/example/takeover-week/internal/sessions"
	"github.com/example/takeover-week/internal/slots"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockBooker struct{ mock.Mock }

func (m *mockBooker) ReserveSessions(ctx context.Context, req booking.SessionsRequest) (booking.Booked, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(booking.Booked), args.Error(1)
}

func (m *mockBooker) RegisterCrawl(ctx context.Context, req booking.CrawlRequest) (crawls.WithCrawl, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(crawls.WithCrawl), args.Error(1)
}

func (m *mockBooker) RegisterSession(ctx context.Context, req booking.SessionRegistrationRequest) (registrations.WithSession, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(registrations.WithSession), args.Error(1)
}

func (m *mockBooker) UpdateCrawlRegistration(ctx context.Context, id uuid.UUID, p crawls.RegistrationPatch) (crawls.Registration, error) {
	args := m.Called(ctx, id, p)
	return args.Get(0).(crawls.Registration), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) PendingSessions(ctx context.Context, limit int, mark bool) (notify.Result[registrations.WithSession], error) {
	args := m.Called(ctx, limit, mark)
	return args.Get(0).(notify.Result[registrations.WithSession]), args.Error(1)
}

func (m *mockNotifier) PendingCrawls(ctx context.Context, limit int, mark bool) (notify.Result[crawls.WithCrawl], error) {
	args := m.Called(ctx, limit, mark)
	return args.Get(0).(notify.Result[crawls.WithCrawl]), args.Error(1)
}

func (m *mockNotifier) PendingAll(ctx context.Context, limit int, mark bool) (notify.Result[notify.Item], error) {
	args := m.Called(ctx, limit, mark)
	return args.Get(0).(notify.Result[notify.Item]), args.Error(1)
}

func (m *mockNotifier) MarkSent(ctx context.Context, ids []string) (notify.MarkResult, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(notify.MarkResult), args.Error(1)
}

type mockSlots struct{ mock.Mock }

func (m *mockSlots) List(ctx context.Context) ([]slots.Slot, error) {
	args := m.Called(ctx)
	return args.Get(0).([]slots.Slot), args.Error(1)
}

func (m *mockSlots) ListAvailable(ctx context.Context, typ slots.SessionType) ([]slots.Slot, error) {
	args := m.Called(ctx, typ)
	return args.Get(0).([]slots.Slot), args.Error(1)
}

type mockSessions struct{ mock.Mock }

func (m *mockSessions) List(ctx context.Context) ([]sessions.Session, error) {
	args := m.Called(ctx)
	return args.Get(0).([]sessions.Session), args.Error(1)
}

func (m *mockSessions) Get(ctx context.Context, id uuid.UUID) (sessions.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(sessions.Session), args.Error(1)
}

func (m *mockSessions) Update(ctx context.Context, id uuid.UUID, p sessions.Patch) (sessions.Session, error) {
	args := m.Called(ctx, id, p)
	return args.Get(0).(sessions.Session), args.Error(1)
}

func (m *mockSessions) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockCrawls struct{ mock.Mock }

func (m *mockCrawls) List(ctx context.Context) ([]crawls.Summary, error) {
	args := m.Called(ctx)
	return args.Get(0).([]crawls.Summary), args.Error(1)
}

func (m *mockCrawls) Get(ctx context.Context, id uuid.UUID) (crawls.Crawl, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(crawls.Crawl), args.Error(1)
}

func (m *mockCrawls) Create(ctx context.Context, in crawls.Input) (crawls.Crawl, bool, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(crawls.Crawl), args.Bool(1), args.Error(2)
}

func (m *mockCrawls) Update(ctx context.Context, id uuid.UUID, p crawls.Patch) (crawls.Crawl, error) {
	args := m.Called(ctx, id, p)
	return args.Get(0).(crawls.Crawl), args.Error(1)
}

func (m *mockCrawls) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCrawls) RefreshAvailable(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCrawls) ListRegistrations(ctx context.Context, crawlID uuid.UUID) ([]crawls.Registration, error) {
	args := m.Called(ctx, crawlID)
	return args.Get(0).([]crawls.Registration), args.Error(1)
}

func (m *mockCrawls) DeleteRegistration(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// memAdmins holds dashboard accounts in memory.
type memAdmins struct {
	ids    map[string]uuid.UUID
	hashes map[string]string
}

func newMemAdmins() *memAdmins {
	return &memAdmins{ids: map[string]uuid.UUID{}, hashes: map[string]string{}}
}

func (m *memAdmins) Create(_ context.Context, username, hash string) (uuid.UUID, error) {
	id := uuid.New()
	m.ids[username] = id
	m.hashes[username] = hash
	return id, nil
}

func (m *memAdmins) Credentials(_ context.Context, username string) (uuid.UUID, string, error) {
	id, ok := m.ids[username]
	if !ok {
		return uuid.Nil, "", db.ErrNotFound
	}
	return id, m.hashes[username], nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }
