package merge

import (
	"context"
	"sync"

	"course-harvest/internal/domain"
)

// MemoryStore is an in-process merged store that keeps insertion order.
type MemoryStore struct {
	mu   sync.RWMutex
	recs []domain.CanonicalRecord
	keys map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]struct{})}
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = nil
	s.keys = make(map[string]struct{})
	return nil
}

// InsertChunk skips records whose Key is already stored.
func (s *MemoryStore) InsertChunk(ctx context.Context, recs []domain.CanonicalRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range recs {
		k := Key(r)
		if _, ok := s.keys[k]; ok {
			continue
		}
		s.keys[k] = struct{}{}
		s.recs = append(s.recs, r)
		n++
	}
	return n, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]domain.CanonicalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CanonicalRecord, len(s.recs))
	copy(out, s.recs)
	return out, nil
}
