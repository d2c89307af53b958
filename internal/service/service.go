// Package service ties the registry, fetcher, cache and merge engine
// together behind the run-batch and merge-all entry points.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"course-harvest/internal/cache"
	"course-harvest/internal/concurrency"
	"course-harvest/internal/domain"
	"course-harvest/internal/fetcher"
	"course-harvest/internal/merge"
	"course-harvest/internal/registry"
)

// Registry is the read side of registry.Registry.
type Registry interface {
	List() []domain.SourceBatch
	Get(n int) (domain.SourceBatch, error)
	Range() (min, max int)
}

// BatchRunner fetches one batch; *fetcher.Fetcher implements it.
type BatchRunner interface {
	Run(ctx context.Context, batch domain.SourceBatch) fetcher.Result
}

// Merger is implemented by *merge.Engine.
type Merger interface {
	MergeAll(ctx context.Context) (merge.Result, error)
}

type Service struct {
	Registry Registry
	Fetcher  BatchRunner
	Cache    cache.Store
	Merger   Merger
	Merged   merge.Store

	TTL     time.Duration
	Workers int

	Now func() time.Time
	Log *zap.Logger
}

// Handle dispatches a Request. A *RequestError is returned for shapes it
// does not recognize.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	switch {
	case req.MergeAll:
		return s.MergeAll(ctx)
	case req.Batch != nil:
		return s.RunBatch(ctx, *req.Batch, req.ForceRefresh)
	default:
		return Response{}, s.requestError("request needs a batch number or mergeAll")
	}
}

// RunBatch serves batch n from the cache when a fresh entry exists and
// force is false; otherwise it fetches, stores and reports the new entry.
// Only an unknown batch number is an error.
func (s *Service) RunBatch(ctx context.Context, n int, force bool) (Response, error) {
	batch, err := s.Registry.Get(n)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return Response{}, s.requestError(fmt.Sprintf("unknown batch %d", n))
		}
		return Response{}, fmt.Errorf("service: batch %d: %w", n, err)
	}

	log := s.logger().With(zap.Int("batch", n), zap.String("region", batch.Name))
	start := s.now()

	if !force {
		entry, err := s.Cache.Get(ctx, n)
		switch {
		case err == nil:
			log.Info("service: cache hit", zap.Int("records", entry.RecordCount), zap.Time("expires_at", entry.ExpiresAt))
			return Response{
				Success:      true,
				Cached:       true,
				BatchNumber:  n,
				RegionName:   batch.Name,
				TotalRecords: entry.RecordCount,
				ElapsedTime:  s.elapsed(start),
				Source:       entry.Source,
			}, nil
		case errors.Is(err, cache.ErrMiss):
		default:
			// An unreadable cache is treated as a miss.
			log.Warn("service: cache read failed", zap.Error(err))
		}
	}

	res := s.Fetcher.Run(ctx, batch)

	resp := Response{
		Success:      true,
		BatchNumber:  n,
		RegionName:   batch.Name,
		TotalRecords: len(res.Records),
		Source:       res.Provenance,
	}

	entry := domain.NewCacheEntry(batch, res.Records, res.Provenance, s.now(), s.TTL)
	if err := s.Cache.Put(ctx, entry); err != nil {
		log.Error("service: cache write failed", zap.Error(err))
		resp.CacheError = err.Error()
	}

	resp.ElapsedTime = s.elapsed(start)
	log.Info("service: batch run",
		zap.String("source", res.Provenance),
		zap.String("state", res.State.String()),
		zap.Int("records", len(res.Records)),
		zap.String("elapsed", resp.ElapsedTime),
	)
	return resp, nil
}

// MergeAll rebuilds the merged store from every fresh cache entry.
func (s *Service) MergeAll(ctx context.Context) (Response, error) {
	res, err := s.Merger.MergeAll(ctx)
	if err != nil {
		return Response{Success: false, Error: err.Error()}, err
	}
	return Response{
		Success:       true,
		TotalRecords:  res.InsertedCount,
		BatchesMerged: res.BatchesMerged,
		Merge:         &res,
	}, nil
}

// RefreshAll runs every registry batch on the worker pool and then merges.
// A batch that fails is counted; the merge still runs over what is cached.
func (s *Service) RefreshAll(ctx context.Context, force bool) (RefreshResult, error) {
	batches := s.Registry.List()
	opts := concurrency.ParallelOptions{MaxWorkers: s.Workers}

	responses, errs := concurrency.ProcessParallel(ctx, batches, opts,
		func(ctx context.Context, _ int, b domain.SourceBatch) (Response, error) {
			return s.RunBatch(ctx, b.Number, force)
		},
	)

	out := RefreshResult{Batches: responses}
	for i, err := range errs {
		if err == nil {
			continue
		}
		out.Failed++
		out.Batches[i] = Response{Success: false, BatchNumber: batches[i].Number, RegionName: batches[i].Name, Error: err.Error()}
		s.logger().Warn("service: batch refresh failed", zap.Int("batch", batches[i].Number), zap.Error(err))
	}
	if err := concurrency.FirstError(errs); err != nil {
		out.FirstError = err.Error()
	}
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("service: refresh all: %w", err)
	}

	merged, err := s.MergeAll(ctx)
	out.Merge = merged
	if err != nil {
		return out, err
	}
	return out, nil
}

// Cached returns the fresh cache entry for batch n.
func (s *Service) Cached(ctx context.Context, n int) (domain.CacheEntry, error) {
	if _, err := s.Registry.Get(n); err != nil {
		return domain.CacheEntry{}, s.requestError(fmt.Sprintf("unknown batch %d", n))
	}
	return s.Cache.Get(ctx, n)
}

// Records lists the merged store.
func (s *Service) Records(ctx context.Context) ([]domain.CanonicalRecord, error) {
	if s.Merged == nil {
		return nil, errors.New("service: no merged store configured")
	}
	return s.Merged.List(ctx)
}

// Prune drops expired cache rows when the store supports it.
func (s *Service) Prune(ctx context.Context) (int, error) {
	p, ok := s.Cache.(cache.Pruner)
	if !ok {
		return 0, nil
	}
	return p.Prune(ctx, s.now())
}

func (s *Service) requestError(reason string) *RequestError {
	lo, hi := s.Registry.Range()
	return &RequestError{Reason: reason, Min: lo, Max: hi}
}

func (s *Service) elapsed(start time.Time) string {
	return s.now().Sub(start).Round(time.Millisecond).String()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
