package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"course-harvest/internal/domain"
)

// MemoryStore keeps entries in process. Each entry is held as a msgpack
// snapshot so callers never share slices with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []memEntry
	seq     uint64

	Now func() time.Time
}

type memEntry struct {
	batch     int
	createdAt time.Time
	expiresAt time.Time
	seq       uint64
	blob      []byte
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{Now: now}
}

func (s *MemoryStore) Put(ctx context.Context, entry domain.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := msgpack.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("cache: encode entry for batch %d: %w", entry.BatchNumber, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.entries = append(s.entries, memEntry{
		batch:     entry.BatchNumber,
		createdAt: entry.CreatedAt,
		expiresAt: entry.ExpiresAt,
		seq:       s.seq,
		blob:      blob,
	})
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, batch int) (domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.CacheEntry{}, err
	}
	now := clockOrDefault(s.Now)()

	s.mu.RLock()
	var best *memEntry
	for i := range s.entries {
		e := &s.entries[i]
		if e.batch != batch || !e.expiresAt.After(now) {
			continue
		}
		if best == nil || newer(e, best) {
			best = e
		}
	}
	var blob []byte
	if best != nil {
		blob = best.blob
	}
	s.mu.RUnlock()

	if blob == nil {
		return domain.CacheEntry{}, ErrMiss
	}
	return decodeEntry(blob)
}

func (s *MemoryStore) ListFresh(ctx context.Context) ([]domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := clockOrDefault(s.Now)()

	s.mu.RLock()
	fresh := make([]memEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.expiresAt.After(now) {
			fresh = append(fresh, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(fresh, func(i, j int) bool { return newer(&fresh[i], &fresh[j]) })

	out := make([]domain.CacheEntry, 0, len(fresh))
	for _, e := range fresh {
		entry, err := decodeEntry(e.blob)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// Prune drops entries that expired at or before before.
func (s *MemoryStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.expiresAt.After(before) {
			kept = append(kept, e)
		}
	}
	n := len(s.entries) - len(kept)
	s.entries = kept
	return n, nil
}

// Len counts stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func newer(a, b *memEntry) bool {
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.After(b.createdAt)
	}
	return a.seq > b.seq
}

func decodeEntry(blob []byte) (domain.CacheEntry, error) {
	var e domain.CacheEntry
	if err := msgpack.Unmarshal(blob, &e); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("cache: decode entry: %w", err)
	}
	return e, nil
}
