// Package notify serves confirmed registrations that still need a
// confirmation email and records when they have been sent.
package notify

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/example/takeover-week/internal/apperr"
	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// ParseLimit reads the limit query parameter. Missing, malformed and
// non-positive values fall back to the default; large values are capped.
func ParseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

type RegistrationSource interface {
	Pending(ctx context.Context, limit int) ([]registrations.WithSession, error)
	MarkSent(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type CrawlSource interface {
	Pending(ctx context.Context, limit int) ([]crawls.WithCrawl, error)
	MarkSent(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type Kind string

const (
	KindSession Kind = "session"
	KindCrawl   Kind = "crawl"
)

// Item is one entry of the combined feed. It serializes as the underlying
// registration with an extra "type" field.
type Item struct {
	Type    Kind
	Session *registrations.WithSession
	Crawl   *crawls.WithCrawl
}

func (i Item) ID() uuid.UUID {
	if i.Session != nil {
		return i.Session.ID
	}
	return i.Crawl.ID
}

func (i Item) CreatedAt() time.Time {
	if i.Session != nil {
		return i.Session.CreatedAt
	}
	return i.Crawl.CreatedAt
}

func (i Item) MarshalJSON() ([]byte, error) {
	var inner any = i.Crawl
	if i.Session != nil {
		inner = i.Session
	}
	b, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(i.Type)
	return json.Marshal(fields)
}

type Result[T any] struct {
	Count         int  `json:"count"`
	Registrations []T  `json:"registrations"`
	MarkedAsSent  bool `json:"markedAsSent"`
}

type MarkResult struct {
	Success        bool  `json:"success"`
	UpdatedCount   int64 `json:"updatedCount"`
	RequestedCount int   `json:"requestedCount"`
	ValidCount     int   `json:"validCount"`
}

type Service struct {
	regs   RegistrationSource
	crawls CrawlSource
	log    zerolog.Logger
}

func NewService(regs RegistrationSource, cr CrawlSource, log zerolog.Logger) *Service {
	return &Service{regs: regs, crawls: cr, log: log.With().Str("component", "notify").Logger()}
}

// PendingSessions returns session registrations awaiting an email. With
// mark set, the returned items are flagged as sent before returning, so a
// caller that fails to send will not see them again.
func (s *Service) PendingSessions(ctx context.Context, limit int, mark bool) (Result[registrations.WithSession], error) {
	items, err := s.regs.Pending(ctx, limit)
	if err != nil {
		return Result[registrations.WithSession]{}, err
	}
	if mark && len(items) > 0 {
		ids := make([]uuid.UUID, len(items))
		for i := range items {
			ids[i] = items[i].ID
		}
		n, err := s.regs.MarkSent(ctx, ids)
		if err != nil {
			return Result[registrations.WithSession]{}, err
		}
		for i := range items {
			items[i].EmailSent = true
		}
		s.log.Info().Int64("updated", n).Int("returned", len(items)).Msg("session registrations marked sent on read")
	}
	return Result[registrations.WithSession]{Count: len(items), Registrations: items, MarkedAsSent: mark}, nil
}

// PendingCrawls is PendingSessions for crawl registrations.
func (s *Service) PendingCrawls(ctx context.Context, limit int, mark bool) (Result[crawls.WithCrawl], error) {
	items, err := s.crawls.Pending(ctx, limit)
	if err != nil {
		return Result[crawls.WithCrawl]{}, err
	}
	if mark && len(items) > 0 {
		ids := make([]uuid.UUID, len(items))
		for i := range items {
			ids[i] = items[i].ID
		}
		n, err := s.crawls.MarkSent(ctx, ids)
		if err != nil {
			return Result[crawls.WithCrawl]{}, err
		}
		for i := range items {
			items[i].EmailSent = true
		}
		s.log.Info().Int64("updated", n).Int("returned", len(items)).Msg("crawl registrations marked sent on read")
	}
	return Result[crawls.WithCrawl]{Count: len(items), Registrations: items, MarkedAsSent: mark}, nil
}

// PendingAll merges both kinds oldest first and keeps the first limit items.
func (s *Service) PendingAll(ctx context.Context, limit int, mark bool) (Result[Item], error) {
	regs, err := s.regs.Pending(ctx, limit)
	if err != nil {
		return Result[Item]{}, err
	}
	crs, err := s.crawls.Pending(ctx, limit)
	if err != nil {
		return Result[Item]{}, err
	}

	items := make([]Item, 0, len(regs)+len(crs))
	for i := range regs {
		items = append(items, Item{Type: KindSession, Session: &regs[i]})
	}
	for i := range crs {
		items = append(items, Item{Type: KindCrawl, Crawl: &crs[i]})
	}
	slices.SortStableFunc(items, func(a, b Item) int {
		if c := a.CreatedAt().Compare(b.CreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	if len(items) > limit {
		items = items[:limit]
	}

	if mark && len(items) > 0 {
		if _, err := s.markItems(ctx, items); err != nil {
			return Result[Item]{}, err
		}
		for _, it := range items {
			if it.Session != nil {
				it.Session.EmailSent = true
			} else {
				it.Crawl.EmailSent = true
			}
		}
	}
	return Result[Item]{Count: len(items), Registrations: items, MarkedAsSent: mark}, nil
}

func (s *Service) markItems(ctx context.Context, items []Item) (int64, error) {
	var regIDs, crawlIDs []uuid.UUID
	for _, it := range items {
		if it.Type == KindSession {
			regIDs = append(regIDs, it.ID())
		} else {
			crawlIDs = append(crawlIDs, it.ID())
		}
	}
	return s.MarkSentIDs(ctx, regIDs, crawlIDs)
}

// MarkSentIDs marks already-parsed ids in each table.
func (s *Service) MarkSentIDs(ctx context.Context, regIDs, crawlIDs []uuid.UUID) (int64, error) {
	a, err := s.regs.MarkSent(ctx, regIDs)
	if err != nil {
		return 0, err
	}
	b, err := s.crawls.MarkSent(ctx, crawlIDs)
	if err != nil {
		return a, err
	}
	return a + b, nil
}

// MarkSent flags the given registrations (of either kind) as sent. Ids that
// are not UUIDs are dropped. Repeating a call is harmless: rows already
// marked are not counted again.
func (s *Service) MarkSent(ctx context.Context, rawIDs []string) (MarkResult, error) {
	if len(rawIDs) == 0 {
		return MarkResult{}, apperr.Validation("registrationIds must be a non-empty array")
	}

	seen := make(map[uuid.UUID]struct{}, len(rawIDs))
	var ids []uuid.UUID
	for _, raw := range rawIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	// ids are unique across both tables, so each table simply ignores the
	// other's
	n, err := s.MarkSentIDs(ctx, ids, ids)
	if err != nil {
		return MarkResult{}, err
	}
	s.log.Info().
		Int("requested", len(rawIDs)).
		Int("valid", len(ids)).
		Int64("updated", n).
		Msg("registrations marked sent")
	return MarkResult{Success: true, UpdatedCount: n, RequestedCount: len(rawIDs), ValidCount: len(ids)}, nil
}
