package booking

import (
	"context"

	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/db"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/example/takeover-week/internal/sessions"
	"github.com/example/takeover-week/internal/slots"
	"github.com/google/uuid"
)

// PGStore runs the workflows against postgres using the per-table repos.
type PGStore struct {
	DB *db.DB
}

func (s PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.DB.InTx(ctx, func(tx *db.Tx) error {
		return fn(pgTx{
			slots:         slots.NewRepo(tx),
			sessions:      sessions.NewRepo(tx),
			registrations: registrations.NewRepo(tx),
			crawls:        crawls.NewRepo(tx),
		})
	})
}

type pgTx struct {
	slots         *slots.Repo
	sessions      *sessions.Repo
	registrations *registrations.Repo
	crawls        *crawls.Repo
}

func (t pgTx) LockSlots(ctx context.Context, keys []slots.Key) ([]slots.Slot, error) {
	return t.slots.LockByKeys(ctx, keys)
}

func (t pgTx) ConsumeSlot(ctx context.Context, id uuid.UUID) (slots.Slot, error) {
	return t.slots.Consume(ctx, id)
}

func (t pgTx) CreateSession(ctx context.Context, s sessions.Session) (sessions.Session, error) {
	return t.sessions.Create(ctx, s)
}

func (t pgTx) GetSession(ctx context.Context, id uuid.UUID) (sessions.Session, error) {
	return t.sessions.Get(ctx, id)
}

func (t pgTx) CreateRegistration(ctx context.Context, r registrations.Registration) (registrations.Registration, error) {
	return t.registrations.Create(ctx, r)
}

func (t pgTx) LockCrawl(ctx context.Context, id uuid.UUID) (crawls.Crawl, error) {
	return t.crawls.Lock(ctx, id)
}

func (t pgTx) CountConfirmed(ctx context.Context, crawlID uuid.UUID) (int, error) {
	return t.crawls.CountConfirmed(ctx, crawlID)
}

func (t pgTx) HasConfirmed(ctx context.Context, crawlID uuid.UUID, email string) (bool, error) {
	return t.crawls.HasConfirmed(ctx, crawlID, email)
}

func (t pgTx) CreateCrawlRegistration(ctx context.Context, r crawls.Registration) (crawls.Registration, error) {
	return t.crawls.CreateRegistration(ctx, r)
}

func (t pgTx) GetCrawlRegistration(ctx context.Context, id uuid.UUID) (crawls.Registration, error) {
	return t.crawls.GetRegistration(ctx, id)
}

func (t pgTx) UpdateCrawlRegistration(ctx context.Context, id uuid.UUID, p crawls.RegistrationPatch) (crawls.Registration, error) {
	return t.crawls.UpdateRegistration(ctx, id, p)
}

func (t pgTx) SetCrawlAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	return t.crawls.SetAvailable(ctx, id, available)
}
