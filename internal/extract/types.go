// Package extract talks to the asynchronous extraction backend: a batch
// scrape API that accepts a list of URLs with an extraction schema and is
// then polled for per-URL structured results.
package extract

import (
	"errors"

	"course-harvest/internal/domain"
)

// ErrMalformedHandle means the backend accepted a job but returned no usable
// job id or status URL.
var ErrMalformedHandle = errors.New("extract: malformed job handle")

// Job statuses reported by the backend. Anything else is treated as pending.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job is one batch submission.
type Job struct {
	URLs   []string
	Schema map[string]any
	Prompt string
}

// Handle identifies a submitted job.
type Handle struct {
	ID  string
	URL string
}

// Valid reports whether the handle can be polled.
func (h Handle) Valid() bool { return h.ID != "" || h.URL != "" }

// SourceResult is the extraction output for one submitted URL.
type SourceResult struct {
	SourceURL string
	Records   []domain.RawRecord
	Dropped   int // records that could not be decoded
	Error     string
}

// JobStatus is one poll result.
type JobStatus struct {
	Status    string
	Completed int
	Total     int
	Results   []SourceResult
}

// Terminal reports whether polling can stop.
func (s JobStatus) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
