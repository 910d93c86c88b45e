// Package seed loads the week's schedule of slots and crawls that ships with
// the binary.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/slots"
	"github.com/example/takeover-week/internal/validate"
	"github.com/rs/zerolog"
)

//go:embed week.json
var week []byte

type Data struct {
	Slots  []slots.Slot   `json:"slots"`
	Crawls []crawls.Input `json:"crawls"`
}

type SlotCreator interface {
	Create(ctx context.Context, s slots.Slot) (slots.Slot, bool, error)
}

type CrawlCreator interface {
	Create(ctx context.Context, in crawls.Input) (crawls.Crawl, bool, error)
}

// Stats counts rows inserted and rows that already existed.
type Stats struct {
	SlotsCreated, SlotsSkipped   int
	CrawlsCreated, CrawlsSkipped int
}

// Week returns the embedded schedule.
func Week() (Data, error) {
	return Parse(week)
}

// Parse decodes and checks a schedule document.
func Parse(b []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(b, &d); err != nil {
		return Data{}, fmt.Errorf("seed: decode: %w", err)
	}
	for i, s := range d.Slots {
		s.Available = s.Capacity > 0
		d.Slots[i] = s
		if err := s.Validate(); err != nil {
			return Data{}, fmt.Errorf("seed: slot %d (%s): %w", i, s.Key(), err)
		}
	}
	for i, c := range d.Crawls {
		if err := validate.Struct(context.Background(), c); err != nil {
			return Data{}, fmt.Errorf("seed: crawl %d (%s): %w", i, c.Name, err)
		}
	}
	return d, nil
}

// Apply inserts everything in d. Existing rows are left untouched, so running
// it again is harmless.
func Apply(ctx context.Context, d Data, sl SlotCreator, cr CrawlCreator, log zerolog.Logger) (Stats, error) {
	var st Stats
	for _, s := range d.Slots {
		_, created, err := sl.Create(ctx, s)
		if err != nil {
			return st, fmt.Errorf("seed: slot %s %s: %w", s.Key(), s.SessionType, err)
		}
		if created {
			st.SlotsCreated++
		} else {
			st.SlotsSkipped++
		}
	}
	for _, c := range d.Crawls {
		_, created, err := cr.Create(ctx, c)
		if err != nil {
			return st, fmt.Errorf("seed: crawl %q: %w", c.Name, err)
		}
		if created {
			st.CrawlsCreated++
		} else {
			st.CrawlsSkipped++
		}
	}
	log.Info().
		Int("slots_created", st.SlotsCreated).
		Int("slots_skipped", st.SlotsSkipped).
		Int("crawls_created", st.CrawlsCreated).
		Int("crawls_skipped", st.CrawlsSkipped).
		Msg("seed applied")
	return st, nil
}
