package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/example/takeover-week/internal/apperr"
	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/db"
	"github.com/example/takeover-week/internal/migrate"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/example/takeover-week/internal/slots"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL or skips.
func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	d, err := db.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	require.NoError(t, d.Ping(ctx))
	require.NoError(t, migrate.Up(ctx, d, zerolog.Nop()))
	return d
}

// far-future dates keep runs from colliding with each other or real data
func randomDate() time.Time {
	return time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, rand.Intn(300000))
}

func TestPGReserveSessionsConcurrentLastSeat(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	repo := slots.NewRepo(d)

	base := randomDate()
	mk := func(offset int, tm string, typ slots.SessionType, capacity int) slots.Slot {
		s, created, err := repo.Create(ctx, slots.Slot{
			Date: base.AddDate(0, 0, offset).Format("2006-01-02"), Time: tm, SessionType: typ, Capacity: capacity,
		})
		require.NoError(t, err)
		require.True(t, created, "slot collision, rerun")
		return s
	}
	last := mk(0, "11:00", slots.Daytime, 1)
	day2 := mk(1, "11:00", slots.Daytime, 50)
	eve := mk(1, "18:00", slots.Evening, 50)

	svc := NewService(PGStore{DB: d}, staffDomain, zerolog.Nop())

	const n = 10
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		ok, capErrs int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ReserveSessions(ctx, request("PG", fmt.Sprintf("pg%d@example.com", i), last, day2, eve))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrCapacity):
				capErrs++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, capErrs)

	locked, err := repo.LockByKeys(ctx, []slots.Key{last.Key(), day2.Key()})
	require.NoError(t, err)
	for _, s := range locked {
		assert.Equal(t, s.Capacity > 0, s.Available)
		if s.ID == last.ID {
			assert.Equal(t, 0, s.Capacity)
		} else {
			assert.Equal(t, 49, s.Capacity)
		}
	}
}

func TestPGRegisterCrawlDuplicate(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	c, created, err := crawls.NewRepo(d).Create(ctx, crawls.Input{
		Name: fmt.Sprintf("Test Crawl %d", rand.Int63()), Location: "HQ",
		Date: randomDate().Format("2006-01-02"), Time: "10:00", Capacity: 1,
	})
	require.NoError(t, err)
	require.True(t, created)

	svc := NewService(PGStore{DB: d}, staffDomain, zerolog.Nop())
	req := CrawlRequest{Name: "Jane", Email: "jane@schools.nyc.gov", CrawlID: c.ID.String()}

	reg, err := svc.RegisterCrawl(ctx, req)
	require.NoError(t, err)
	assert.False(t, reg.Crawl.Available)

	_, err = svc.RegisterCrawl(ctx, req)
	require.Error(t, err)
	// the crawl is full, which is checked before duplicates
	assert.True(t, errors.Is(err, apperr.ErrCapacity))
}

func TestPGRegisterCrawlConcurrentNeverOverfills(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	repo := crawls.NewRepo(d)

	const capacity, n = 3, 12
	c, created, err := repo.Create(ctx, crawls.Input{
		Name: fmt.Sprintf("Test Crawl %d", rand.Int63()), Location: "HQ",
		Date: randomDate().Format("2006-01-02"), Time: "10:00", Capacity: capacity,
	})
	require.NoError(t, err)
	require.True(t, created)

	svc := NewService(PGStore{DB: d}, staffDomain, zerolog.Nop())

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		ok, capErrs int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RegisterCrawl(ctx, CrawlRequest{
				Name: "PG", Email: fmt.Sprintf("pg%d@schools.nyc.gov", i), CrawlID: c.ID.String(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrCapacity):
				capErrs++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, ok)
	assert.Equal(t, n-capacity, capErrs)

	confirmed, err := repo.CountConfirmed(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, confirmed)

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)
}

func TestPGUpdateCrawlRegistrationReconfirmOnFullCrawl(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	repo := crawls.NewRepo(d)

	c, created, err := repo.Create(ctx, crawls.Input{
		Name: fmt.Sprintf("Test Crawl %d", rand.Int63()), Location: "HQ",
		Date: randomDate().Format("2006-01-02"), Time: "10:00", Capacity: 1,
	})
	require.NoError(t, err)
	require.True(t, created)

	svc := NewService(PGStore{DB: d}, staffDomain, zerolog.Nop())
	first, err := svc.RegisterCrawl(ctx, CrawlRequest{Name: "A", Email: "a@schools.nyc.gov", CrawlID: c.ID.String()})
	require.NoError(t, err)

	cancelled := registrations.StatusCancelled
	_, err = svc.UpdateCrawlRegistration(ctx, first.ID, crawls.RegistrationPatch{Status: &cancelled})
	require.NoError(t, err)

	_, err = svc.RegisterCrawl(ctx, CrawlRequest{Name: "B", Email: "b@schools.nyc.gov", CrawlID: c.ID.String()})
	require.NoError(t, err)

	confirmed := registrations.StatusConfirmed
	_, err = svc.UpdateCrawlRegistration(ctx, first.ID, crawls.RegistrationPatch{Status: &confirmed})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrCapacity), "got %v", err)

	n, err := repo.CountConfirmed(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	reg, err := repo.GetRegistration(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, registrations.StatusCancelled, reg.Status)
}
