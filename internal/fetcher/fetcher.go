// Package fetcher drives one source batch through the extraction backend:
// submit, poll until a terminal state, then normalize or fall back.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"course-harvest/internal/domain"
	"course-harvest/internal/extract"
)

// Defaults for the poll loop.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 36
)

// Backend is the extraction service.
type Backend interface {
	Submit(ctx context.Context, job extract.Job) (extract.Handle, error)
	Status(ctx context.Context, h extract.Handle) (extract.JobStatus, error)
}

// Normalizer turns one raw record into a canonical one.
type Normalizer interface {
	Normalize(raw domain.RawRecord, p domain.ProviderDescriptor, ordinal int, ts time.Time) (domain.CanonicalRecord, error)
}

// FallbackGenerator produces placeholder records and must not fail.
type FallbackGenerator interface {
	Generate(batch domain.SourceBatch) []domain.CanonicalRecord
}

// Fetcher holds no per-run state and is safe for concurrent use.
type Fetcher struct {
	Backend    Backend
	Normalizer Normalizer
	Fallback   FallbackGenerator

	Schema map[string]any
	Prompt string

	PollInterval time.Duration
	MaxPolls     int

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	Log   *zap.Logger
}

// Result is the outcome of one batch run. Records is never empty for a
// batch with providers; Err only explains why the fallback path was taken.
type Result struct {
	State       State
	Provenance  string
	Records     []domain.CanonicalRecord
	Transitions []State
	Polls       int
	Skipped     int
	Err         error
}

// run is the per-invocation state machine.
type run struct {
	batch  domain.SourceBatch
	state  State
	handle extract.Handle
	status extract.JobStatus
	res    Result
}

func (r *run) to(s State) {
	r.state = s
	r.res.Transitions = append(r.res.Transitions, s)
}

func (r *run) fail(s State, err error) {
	r.res.Err = err
	r.to(s)
}

// Run fetches batch and always returns a usable result.
func (f *Fetcher) Run(ctx context.Context, batch domain.SourceBatch) Result {
	log := f.logger().With(zap.Int("batch", batch.Number), zap.String("region", batch.Name))
	r := &run{batch: batch, state: StateIdle, res: Result{Transitions: []State{StateIdle}}}

	for !r.state.Terminal() {
		switch r.state {
		case StateIdle:
			f.submit(ctx, r, log)
		case StateSubmitted:
			r.to(StatePolling)
		case StatePolling:
			f.poll(ctx, r, log)
		}
	}

	r.res.State = r.state
	if r.state == StateCompleted {
		f.collect(r, log)
		if len(r.res.Records) == 0 && len(batch.Providers) > 0 {
			r.res.Err = errors.New("fetcher: job completed without records")
		}
	}

	if r.state != StateCompleted || r.res.Err != nil {
		log.Warn("fetcher: using fallback data",
			zap.String("state", r.state.String()),
			zap.Int("polls", r.res.Polls),
			zap.Error(r.res.Err),
		)
		r.res.Records = f.Fallback.Generate(batch)
		r.res.Provenance = domain.ProvenanceFallback
		return r.res
	}

	r.res.Provenance = domain.ProvenanceLive
	log.Info("fetcher: batch completed",
		zap.Int("records", len(r.res.Records)),
		zap.Int("skipped", r.res.Skipped),
		zap.Int("polls", r.res.Polls),
	)
	return r.res
}

func (f *Fetcher) submit(ctx context.Context, r *run, log *zap.Logger) {
	if len(r.batch.Providers) == 0 {
		r.fail(StateFailed, errors.New("fetcher: batch has no providers"))
		return
	}
	if err := ctx.Err(); err != nil {
		r.fail(StateFailed, err)
		return
	}
	h, err := f.Backend.Submit(ctx, extract.Job{
		URLs:   r.batch.URLs(),
		Schema: f.Schema,
		Prompt: f.Prompt,
	})
	if err != nil {
		r.fail(StateFailed, err)
		return
	}
	if !h.Valid() {
		r.fail(StateFailed, extract.ErrMalformedHandle)
		return
	}
	log.Info("fetcher: job submitted", zap.String("job", h.ID), zap.Int("urls", len(r.batch.Providers)))
	r.handle = h
	r.to(StateSubmitted)
}

// poll performs one wait-then-check step.
func (f *Fetcher) poll(ctx context.Context, r *run, log *zap.Logger) {
	if r.res.Polls >= f.maxPolls() {
		r.fail(StateTimedOut, fmt.Errorf("fetcher: job %s not finished after %d polls", r.handle.ID, r.res.Polls))
		return
	}
	if err := f.sleep(ctx, f.pollInterval()); err != nil {
		r.fail(StateFailed, err)
		return
	}
	r.res.Polls++

	st, err := f.Backend.Status(ctx, r.handle)
	if err != nil {
		if ctx.Err() != nil {
			r.fail(StateFailed, ctx.Err())
			return
		}
		log.Debug("fetcher: status check failed", zap.Int("poll", r.res.Polls), zap.Error(err))
		return
	}

	switch st.Status {
	case extract.StatusCompleted:
		r.status = st
		r.to(StateCompleted)
	case extract.StatusFailed:
		r.fail(StateFailed, fmt.Errorf("fetcher: job %s reported failure", r.handle.ID))
	default:
		log.Debug("fetcher: job pending",
			zap.Int("poll", r.res.Polls),
			zap.String("status", st.Status),
			zap.Int("completed", st.Completed),
			zap.Int("total", st.Total),
		)
	}
}

// collect attributes each source result to a provider and normalizes its
// records. Results are matched by source URL when the backend echoes one.
// A result that matches no URL takes the provider at its own position,
// unless that provider was already claimed by URL.
func (f *Fetcher) collect(r *run, log *zap.Logger) {
	ts := f.now()
	providers := r.batch.Providers
	byURL := make(map[string]int, len(providers))
	for i, p := range providers {
		byURL[urlKey(p.URL)] = i
	}

	owner := make([]int, len(r.status.Results))
	claimed := make([]bool, len(providers))
	for i, sr := range r.status.Results {
		owner[i] = -1
		if pi, ok := byURL[urlKey(sr.SourceURL)]; ok && sr.SourceURL != "" {
			owner[i] = pi
			claimed[pi] = true
		}
	}
	for i := range owner {
		if owner[i] < 0 && i < len(providers) && !claimed[i] {
			owner[i] = i
		}
	}

	ordinals := make([]int, len(providers))
	for i, sr := range r.status.Results {
		r.res.Skipped += sr.Dropped
		pi := owner[i]
		if pi < 0 {
			log.Warn("fetcher: result without provider", zap.Int("index", i), zap.String("source_url", sr.SourceURL))
			r.res.Skipped += len(sr.Records)
			continue
		}
		p := providers[pi]
		for _, raw := range sr.Records {
			rec, err := f.Normalizer.Normalize(raw, p, ordinals[pi], ts)
			ordinals[pi]++
			if err != nil {
				log.Debug("fetcher: record skipped", zap.String("provider", p.Slug), zap.Error(err))
				r.res.Skipped++
				continue
			}
			r.res.Records = append(r.res.Records, rec)
		}
	}
}

func urlKey(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	return strings.TrimRight(u, "/")
}

func (f *Fetcher) pollInterval() time.Duration {
	if f.PollInterval < 0 {
		return 0
	}
	if f.PollInterval == 0 {
		return DefaultPollInterval
	}
	return f.PollInterval
}

func (f *Fetcher) maxPolls() int {
	if f.MaxPolls <= 0 {
		return DefaultMaxPolls
	}
	return f.MaxPolls
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if f.Sleep != nil {
		return f.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fetcher) logger() *zap.Logger {
	if f.Log == nil {
		return zap.NewNop()
	}
	return f.Log
}
