// Package merge builds the deduplicated cross-batch record set from every
// fresh cache entry and replaces the merged store with it.
package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"course-harvest/internal/domain"
)

// DefaultChunkSize is the number of records per InsertChunk call.
const DefaultChunkSize = 100

// FreshLister is the part of cache.Store the engine reads.
type FreshLister interface {
	ListFresh(ctx context.Context) ([]domain.CacheEntry, error)
}

// Store holds the merged record set. Implementations must keep at most one
// record per Key.
type Store interface {
	Clear(ctx context.Context) error
	// InsertChunk inserts recs and returns how many were written.
	InsertChunk(ctx context.Context, recs []domain.CanonicalRecord) (int, error)
	List(ctx context.Context) ([]domain.CanonicalRecord, error)
}

// Result summarizes one merge.
type Result struct {
	InsertedCount int `json:"insertedCount"`
	BatchesMerged int `json:"batchesMerged"`
	Candidates    int `json:"candidates"`
	Unique        int `json:"unique"`
	FailedChunks  int `json:"failedChunks"`

	// Changes is nil when the previous contents could not be read.
	Changes *Changes `json:"changes,omitempty"`
}

type Engine struct {
	Cache     FreshLister
	Store     Store
	ChunkSize int
	Log       *zap.Logger
}

// Key is the identity of a record in the merged store: title and provider
// name, lower-cased.
func Key(r domain.CanonicalRecord) string {
	return strings.ToLower(r.Title) + ":" + strings.ToLower(r.ProviderName)
}

// MergeAll reads all fresh entries newest first, keeps the first record seen
// per Key and rewrites the merged store. When nothing survives dedup the
// store is left untouched.
func (e *Engine) MergeAll(ctx context.Context) (Result, error) {
	log := e.logger()

	entries, err := e.Cache.ListFresh(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("merge: list fresh entries: %w", err)
	}
	OrderNewestFirst(entries)

	res := Result{BatchesMerged: len(entries)}
	unique := Dedup(entries, &res.Candidates)
	res.Unique = len(unique)

	if len(unique) == 0 {
		log.Info("merge: nothing to merge", zap.Int("batches", res.BatchesMerged))
		return res, nil
	}

	if prev, err := e.Store.List(ctx); err != nil {
		log.Warn("merge: cannot read previous contents", zap.Error(err))
	} else {
		c := Diff(prev, unique)
		res.Changes = &c
	}

	if err := e.Store.Clear(ctx); err != nil {
		return res, fmt.Errorf("merge: clear merged store: %w", err)
	}

	size := e.chunkSize()
	for start := 0; start < len(unique); start += size {
		end := start + size
		if end > len(unique) {
			end = len(unique)
		}
		n, err := e.Store.InsertChunk(ctx, unique[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return res, fmt.Errorf("merge: insert chunk at %d: %w", start, ctx.Err())
			}
			res.FailedChunks++
			log.Warn("merge: chunk failed",
				zap.Int("offset", start),
				zap.Int("size", end-start),
				zap.Error(err),
			)
			continue
		}
		res.InsertedCount += n
	}

	log.Info("merge: done",
		zap.Int("batches", res.BatchesMerged),
		zap.Int("candidates", res.Candidates),
		zap.Int("unique", res.Unique),
		zap.Int("inserted", res.InsertedCount),
		zap.Int("failed_chunks", res.FailedChunks),
	)
	return res, nil
}

// OrderNewestFirst sorts entries by creation time descending, then batch
// number and entry id ascending, so equal inputs always merge the same way.
func OrderNewestFirst(entries []domain.CacheEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.BatchNumber != b.BatchNumber {
			return a.BatchNumber < b.BatchNumber
		}
		return a.ID.String() < b.ID.String()
	})
}

// Dedup walks entries in order and keeps the first record per Key.
// candidates, when non-nil, receives the number of records examined.
func Dedup(entries []domain.CacheEntry, candidates *int) []domain.CanonicalRecord {
	seen := make(map[string]struct{})
	var out []domain.CanonicalRecord
	n := 0
	for _, e := range entries {
		for _, r := range e.Records {
			n++
			k := Key(r)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	if candidates != nil {
		*candidates = n
	}
	return out
}

func (e *Engine) chunkSize() int {
	if e.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return e.ChunkSize
}

func (e *Engine) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}
