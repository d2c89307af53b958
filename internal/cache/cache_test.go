package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"course-harvest/internal/database"
	"course-harvest/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func batch(n int) domain.SourceBatch {
	return domain.SourceBatch{Number: n, Name: "Batch"}
}

func records(titles ...string) []domain.CanonicalRecord {
	price := decimal.RequireFromString("1250.50")
	out := make([]domain.CanonicalRecord, 0, len(titles))
	for i, t := range titles {
		r := domain.CanonicalRecord{ID: t, Title: t, ProviderName: "P", Source: "p"}
		if i == 0 {
			r.Price = &price
			r.UpcomingDates = []string{"2025-07-01"}
		}
		out = append(out, r)
	}
	return out
}

// runStoreContract exercises behavior every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T, clock *fakeClock) Store) {
	ctx := context.Background()

	t.Run("miss on empty", func(t *testing.T) {
		s := newStore(t, newClock())
		if _, err := s.Get(ctx, 1); !errors.Is(err, ErrMiss) {
			t.Fatalf("Expected ErrMiss, got %v", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		clock := newClock()
		s := newStore(t, clock)
		e := domain.NewCacheEntry(batch(2), records("A", "B"), domain.ProvenanceLive, clock.Now(), time.Hour)
		if err := s.Put(ctx, e); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := s.Get(ctx, 2)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ID != e.ID || got.RecordCount != 2 || len(got.Records) != 2 || got.Source != domain.ProvenanceLive {
			t.Fatalf("unexpected entry: %+v", got)
		}
		if !got.CreatedAt.Equal(e.CreatedAt) || !got.ExpiresAt.Equal(e.ExpiresAt) {
			t.Errorf("timestamps changed: %v/%v", got.CreatedAt, got.ExpiresAt)
		}
		if got.Records[0].Price == nil || !got.Records[0].Price.Equal(decimal.RequireFromString("1250.5")) {
			t.Errorf("price lost: %v", got.Records[0].Price)
		}
		if got.Records[1].Price != nil {
			t.Errorf("Expected nil price to stay nil, got %v", got.Records[1].Price)
		}
	})

	t.Run("expiry", func(t *testing.T) {
		clock := newClock()
		s := newStore(t, clock)
		if err := s.Put(ctx, domain.NewCacheEntry(batch(1), records("A"), domain.ProvenanceLive, clock.Now(), time.Hour)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		clock.Advance(59 * time.Minute)
		if _, err := s.Get(ctx, 1); err != nil {
			t.Fatalf("Expected hit before expiry, got %v", err)
		}
		clock.Advance(time.Minute)
		if _, err := s.Get(ctx, 1); !errors.Is(err, ErrMiss) {
			t.Fatalf("Expected ErrMiss at expiry, got %v", err)
		}
		fresh, err := s.ListFresh(ctx)
		if err != nil || len(fresh) != 0 {
			t.Fatalf("ListFresh = %d entries, err %v", len(fresh), err)
		}
	})

	t.Run("newest wins", func(t *testing.T) {
		clock := newClock()
		s := newStore(t, clock)
		old := domain.NewCacheEntry(batch(1), records("old"), domain.ProvenanceFallback, clock.Now(), time.Hour)
		clock.Advance(10 * time.Minute)
		latest := domain.NewCacheEntry(batch(1), records("new"), domain.ProvenanceLive, clock.Now(), time.Hour)
		other := domain.NewCacheEntry(batch(3), records("x"), domain.ProvenanceLive, clock.Now().Add(-5*time.Minute), time.Hour)
		for _, e := range []domain.CacheEntry{latest, old, other} {
			if err := s.Put(ctx, e); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}

		got, err := s.Get(ctx, 1)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ID != latest.ID {
			t.Errorf("Expected newest entry, got %q", got.Records[0].Title)
		}

		fresh, err := s.ListFresh(ctx)
		if err != nil {
			t.Fatalf("ListFresh: %v", err)
		}
		if len(fresh) != 3 {
			t.Fatalf("Expected 3 fresh entries, got %d", len(fresh))
		}
		if fresh[0].ID != latest.ID || fresh[1].ID != other.ID || fresh[2].ID != old.ID {
			t.Errorf("ListFresh not newest first: %v %v %v", fresh[0].CreatedAt, fresh[1].CreatedAt, fresh[2].CreatedAt)
		}

		// Only the newer entry is still fresh.
		clock.Advance(55 * time.Minute)
		got, err = s.Get(ctx, 1)
		if err != nil || got.ID != latest.ID {
			t.Fatalf("Expected latest still fresh, got %v", err)
		}
	})

	t.Run("prune", func(t *testing.T) {
		clock := newClock()
		s := newStore(t, clock)
		p, ok := s.(Pruner)
		if !ok {
			t.Skip("store does not prune")
		}
		_ = s.Put(ctx, domain.NewCacheEntry(batch(1), records("a"), domain.ProvenanceLive, clock.Now(), time.Hour))
		_ = s.Put(ctx, domain.NewCacheEntry(batch(2), records("b"), domain.ProvenanceLive, clock.Now(), 3*time.Hour))
		n, err := p.Prune(ctx, clock.Now().Add(2*time.Hour))
		if err != nil {
			t.Fatalf("Prune: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 pruned entry, got %d", n)
		}
		if _, err := s.Get(ctx, 2); err != nil {
			t.Errorf("Expected batch 2 to survive: %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, clock *fakeClock) Store {
		return NewMemoryStore(clock.Now)
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, clock *fakeClock) Store {
		db, err := database.OpenMigrated(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "cache.db")})
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		return NewSQLiteStore(db, clock.Now)
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("HARVEST_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("HARVEST_TEST_PG_DSN not set")
	}
	runStoreContract(t, func(t *testing.T, clock *fakeClock) Store {
		ctx := context.Background()
		pool, err := database.OpenPool(ctx, database.PoolConfig{DSN: dsn})
		if err != nil {
			t.Fatalf("open pool: %v", err)
		}
		t.Cleanup(pool.Close)
		if err := database.MigratePool(ctx, pool); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		if _, err := pool.Exec(ctx, `TRUNCATE cache_entries`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return NewPostgresStore(pool, clock.Now)
	})
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(clock.Now)

	recs := records("Original")
	if err := s.Put(ctx, domain.NewCacheEntry(batch(1), recs, domain.ProvenanceLive, clock.Now(), time.Hour)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	recs[0].Title = "mutated after put"

	got, _ := s.Get(ctx, 1)
	if got.Records[0].Title != "Original" {
		t.Fatalf("store shares memory with caller: %q", got.Records[0].Title)
	}
	got.Records[0].Title = "mutated after get"

	again, _ := s.Get(ctx, 1)
	if again.Records[0].Title != "Original" {
		t.Fatalf("store shares memory with reader: %q", again.Records[0].Title)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestMemoryStoreConcurrentPut(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(clock.Now)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.Put(ctx, domain.NewCacheEntry(batch(n%6+1), records("x"), domain.ProvenanceLive, clock.Now(), time.Hour))
			_, _ = s.ListFresh(ctx)
		}(i)
	}
	wg.Wait()

	fresh, err := s.ListFresh(ctx)
	if err != nil || len(fresh) != 20 {
		t.Fatalf("ListFresh = %d, err %v", len(fresh), err)
	}
}
