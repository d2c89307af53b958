// Package cache stores batch results with a time-to-live. Entries are
// append-only; reads return the newest entry that has not expired.
package cache

import (
	"context"
	"errors"
	"time"

	"course-harvest/internal/domain"
)

// ErrMiss is returned by Get when no fresh entry exists for a batch.
var ErrMiss = errors.New("cache: miss")

// Store is implemented by MemoryStore, SQLiteStore and PostgresStore.
type Store interface {
	// Get returns the newest entry for batch with ExpiresAt after now.
	Get(ctx context.Context, batch int) (domain.CacheEntry, error)
	// Put appends entry. Older entries for the same batch are kept.
	Put(ctx context.Context, entry domain.CacheEntry) error
	// ListFresh returns every unexpired entry, newest first.
	ListFresh(ctx context.Context) ([]domain.CacheEntry, error)
}

// Pruner is implemented by stores that can drop expired rows.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
