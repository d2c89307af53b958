package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"course-harvest/internal/database"
	"course-harvest/internal/domain"
)

type fakeCache struct {
	entries []domain.CacheEntry
	err     error
}

func (c *fakeCache) ListFresh(context.Context) ([]domain.CacheEntry, error) {
	out := make([]domain.CacheEntry, len(c.entries))
	copy(out, c.entries)
	return out, c.err
}

// flakyStore wraps a MemoryStore and fails selected operations.
type flakyStore struct {
	*MemoryStore
	clearErr  error
	failChunk map[int]bool
	chunks    int
	cleared   int
}

func (s *flakyStore) Clear(ctx context.Context) error {
	s.cleared++
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.MemoryStore.Clear(ctx)
}

func (s *flakyStore) InsertChunk(ctx context.Context, recs []domain.CanonicalRecord) (int, error) {
	i := s.chunks
	s.chunks++
	if s.failChunk[i] {
		return 0, errors.New("disk full")
	}
	return s.MemoryStore.InsertChunk(ctx, recs)
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func rec(title, provider, id string) domain.CanonicalRecord {
	return domain.CanonicalRecord{ID: id, Title: title, ProviderName: provider, Source: "p"}
}

func entry(batch int, created time.Time, recs ...domain.CanonicalRecord) domain.CacheEntry {
	return domain.CacheEntry{
		ID:          uuid.New(),
		BatchNumber: batch,
		Records:     recs,
		RecordCount: len(recs),
		CreatedAt:   created,
		ExpiresAt:   created.Add(12 * time.Hour),
	}
}

func TestMergeAllScenario(t *testing.T) {
	// Batch 1 holds 3 records, batch 2 holds 4 with one case-only duplicate.
	older := entry(1, t0,
		rec("18th Edition", "Able Skills", "a1"),
		rec("AM2 Prep", "Able Skills", "a2"),
		rec("PAT Testing", "Elec", "a3"),
	)
	newer := entry(2, t0.Add(time.Minute),
		rec("am2 prep", "ABLE SKILLS", "b1"),
		rec("EV Charging", "Elec", "b2"),
		rec("Solar PV", "Elec", "b3"),
		rec("Fire Alarm", "Elec", "b4"),
	)
	store := NewMemoryStore()
	e := &Engine{Cache: &fakeCache{entries: []domain.CacheEntry{older, newer}}, Store: store}

	res, err := e.MergeAll(context.Background())
	if err != nil {
		t.Fatalf("MergeAll: %v", err)
	}
	if res.InsertedCount != 6 || res.BatchesMerged != 2 {
		t.Fatalf("Expected 6 inserted from 2 batches, got %+v", res)
	}
	if res.Candidates != 7 || res.Unique != 6 || res.FailedChunks != 0 {
		t.Errorf("unexpected counters: %+v", res)
	}

	got, _ := store.List(context.Background())
	var am2 *domain.CanonicalRecord
	for i := range got {
		if Key(got[i]) == "am2 prep:able skills" {
			am2 = &got[i]
		}
	}
	if am2 == nil || am2.ID != "b1" {
		t.Fatalf("Expected the newest duplicate to win, got %+v", am2)
	}
}

func TestMergeAllDeterministic(t *testing.T) {
	entries := []domain.CacheEntry{
		entry(3, t0, rec("A", "P", "3a"), rec("B", "P", "3b")),
		entry(1, t0, rec("a", "p", "1a"), rec("C", "P", "1c")),
		entry(2, t0.Add(-time.Hour), rec("B", "P", "2b"), rec("D", "P", "2d")),
	}

	var first []domain.CanonicalRecord
	for i := 0; i < 5; i++ {
		// Feed the same entries in a rotated order each time.
		in := append(append([]domain.CacheEntry{}, entries[i%3:]...), entries[:i%3]...)
		store := NewMemoryStore()
		e := &Engine{Cache: &fakeCache{entries: in}, Store: store, ChunkSize: 2}
		if _, err := e.MergeAll(context.Background()); err != nil {
			t.Fatalf("MergeAll: %v", err)
		}
		got, _ := store.List(context.Background())
		if first == nil {
			first = got
			continue
		}
		if len(got) != len(first) {
			t.Fatalf("run %d: %d records, want %d", i, len(got), len(first))
		}
		for j := range got {
			if got[j].ID != first[j].ID {
				t.Fatalf("run %d: record %d = %s, want %s", i, j, got[j].ID, first[j].ID)
			}
		}
	}

	// Same timestamp: batch 1 is ordered before batch 3, so "a" from batch 1 wins.
	want := []string{"1a", "1c", "3b", "2d"}
	for i, id := range want {
		if first[i].ID != id {
			t.Errorf("record %d = %s, want %s", i, first[i].ID, id)
		}
	}
}

func TestMergeAllEmptyLeavesStore(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	_, _ = store.MemoryStore.InsertChunk(ctx, []domain.CanonicalRecord{rec("Existing", "P", "x")})

	e := &Engine{
		Cache: &fakeCache{entries: []domain.CacheEntry{entry(1, t0), entry(2, t0)}},
		Store: store,
	}
	res, err := e.MergeAll(ctx)
	if err != nil {
		t.Fatalf("MergeAll: %v", err)
	}
	if res.InsertedCount != 0 || res.BatchesMerged != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if store.cleared != 0 {
		t.Errorf("Expected store untouched, Clear called %d times", store.cleared)
	}
	got, _ := store.List(ctx)
	if len(got) != 1 {
		t.Errorf("Expected existing record kept, got %d", len(got))
	}
}

func TestMergeAllFailedChunkIsSkipped(t *testing.T) {
	recs := []domain.CanonicalRecord{
		rec("A", "P", "1"), rec("B", "P", "2"), rec("C", "P", "3"),
		rec("D", "P", "4"), rec("E", "P", "5"),
	}
	store := &flakyStore{MemoryStore: NewMemoryStore(), failChunk: map[int]bool{1: true}}
	e := &Engine{Cache: &fakeCache{entries: []domain.CacheEntry{entry(1, t0, recs...)}}, Store: store, ChunkSize: 2}

	res, err := e.MergeAll(context.Background())
	if err != nil {
		t.Fatalf("MergeAll: %v", err)
	}
	if res.FailedChunks != 1 || res.InsertedCount != 3 || store.chunks != 3 {
		t.Fatalf("unexpected result %+v (chunks=%d)", res, store.chunks)
	}
}

func TestMergeAllClearFailureAborts(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), clearErr: errors.New("locked")}
	e := &Engine{Cache: &fakeCache{entries: []domain.CacheEntry{entry(1, t0, rec("A", "P", "1"))}}, Store: store}

	if _, err := e.MergeAll(context.Background()); err == nil {
		t.Fatalf("Expected error when Clear fails")
	}
	if store.chunks != 0 {
		t.Errorf("Expected no inserts after failed Clear, got %d", store.chunks)
	}
}

func TestMergeAllCacheError(t *testing.T) {
	e := &Engine{Cache: &fakeCache{err: errors.New("db gone")}, Store: NewMemoryStore()}
	if _, err := e.MergeAll(context.Background()); err == nil {
		t.Fatalf("Expected error when ListFresh fails")
	}
}

func TestKey(t *testing.T) {
	a := Key(rec("AM2 Prep", "Able", ""))
	b := Key(rec("am2 prep", "ABLE", ""))
	c := Key(rec("AM2 Prep ", "Able", ""))
	if a != b {
		t.Errorf("Expected case-insensitive keys, got %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("Expected whitespace to be significant")
	}
}

func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := s.InsertChunk(ctx, []domain.CanonicalRecord{rec("A", "P", "1"), rec("B", "P", "2")})
	if err != nil || n != 2 {
		t.Fatalf("InsertChunk = %d, %v", n, err)
	}
	n, err = s.InsertChunk(ctx, []domain.CanonicalRecord{rec("a", "p", "3"), rec("C", "P", "4")})
	if err != nil || n != 1 {
		t.Fatalf("InsertChunk with duplicate = %d, %v", n, err)
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 || got[0].ID != "1" || got[2].ID != "4" {
		t.Fatalf("unexpected list %+v", got)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := s.List(ctx); len(got) != 0 {
		t.Fatalf("Expected empty store after Clear, got %d", len(got))
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	db, err := database.OpenMigrated(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "merged.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	runStoreContract(t, NewSQLiteStore(db))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("HARVEST_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("HARVEST_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := database.OpenPool(ctx, database.PoolConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	defer pool.Close()
	if err := database.MigratePool(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	runStoreContract(t, NewPostgresStore(pool))
}

func TestMergeAllReportsChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, _ = store.InsertChunk(ctx, []domain.CanonicalRecord{
		{ID: "old-1", Title: "AM2", ProviderName: "P", Category: "AM2"},
		{ID: "old-2", Title: "PAT", ProviderName: "P", Category: "PAT Testing"},
		{ID: "old-3", Title: "Gone", ProviderName: "P"},
	})

	e := &Engine{Cache: &fakeCache{entries: []domain.CacheEntry{entry(1, t0,
		domain.CanonicalRecord{ID: "new-1", Title: "am2", ProviderName: "P", Category: "AM2"},
		domain.CanonicalRecord{ID: "new-2", Title: "PAT", ProviderName: "P", Category: "Inspection & Testing"},
		domain.CanonicalRecord{ID: "new-3", Title: "EV", ProviderName: "P"},
	)}}, Store: store}

	res, err := e.MergeAll(ctx)
	if err != nil {
		t.Fatalf("MergeAll: %v", err)
	}
	if res.Changes == nil {
		t.Fatalf("Expected changes to be reported")
	}
	want := Changes{Added: 1, Updated: 1, Removed: 1}
	if *res.Changes != want {
		t.Errorf("Changes = %+v, want %+v", *res.Changes, want)
	}
}
