// Package relay pushes pending confirmation notifications to a message
// broker on a fixed interval, for deployments that send email from a queue
// consumer instead of polling the HTTP feed.
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/example/takeover-week/internal/notify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Feed is the part of notify.Service the relay drives.
type Feed interface {
	PendingAll(ctx context.Context, limit int, mark bool) (notify.Result[notify.Item], error)
	MarkSentIDs(ctx context.Context, regIDs, crawlIDs []uuid.UUID) (int64, error)
}

type Relay struct {
	Feed      Feed
	Publisher notify.Publisher
	Interval  time.Duration
	Batch     int
	Log       zerolog.Logger

	// serializes ticks; a slow broker must not let two ticks publish the
	// same batch
	mu sync.Mutex
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.Log.Info().Dur("interval", r.Interval).Int("batch", r.Batch).Msg("notification relay started")

	// kick immediately
	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			defer r.mu.Unlock()
			r.Log.Info().Msg("notification relay stopped")
			return ctx.Err()
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Relay) tick(ctx context.Context) {
	if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
		r.Log.Error().Err(err).Msg("relay: flush failed")
	}
}

// Flush publishes one batch and marks what was published. Items are marked
// only after the broker accepted them, so a crash in between re-sends
// rather than drops.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.Feed.PendingAll(ctx, r.Batch, false)
	if err != nil {
		return 0, err
	}
	if res.Count == 0 {
		return 0, nil
	}

	var regIDs, crawlIDs []uuid.UUID
	var firstErr error
	for _, it := range res.Registrations {
		body, err := json.Marshal(it)
		if err != nil {
			firstErr = err
			break
		}
		if err := r.Publisher.Publish(ctx, "notification."+string(it.Type), body); err != nil {
			// keep order: stop at the first failure and retry next tick
			firstErr = err
			break
		}
		if it.Type == notify.KindSession {
			regIDs = append(regIDs, it.ID())
		} else {
			crawlIDs = append(crawlIDs, it.ID())
		}
	}

	published := len(regIDs) + len(crawlIDs)
	if published > 0 {
		if _, err := r.Feed.MarkSentIDs(ctx, regIDs, crawlIDs); err != nil {
			return published, err
		}
		r.Log.Info().Int("published", published).Msg("notifications relayed")
	}
	return published, firstErr
}
