package service

import (
	"fmt"

	"course-harvest/internal/merge"
)

// Request is the single invocation shape. Exactly one of Batch or MergeAll
// should be set; MergeAll wins when both are.
type Request struct {
	Batch        *int `json:"batch,omitempty"`
	ForceRefresh bool `json:"forceRefresh,omitempty"`
	MergeAll     bool `json:"mergeAll,omitempty"`
}

// Response reports a batch run or a merge. Success stays true when fallback
// data was used; Source tells live and fallback apart.
type Response struct {
	Success       bool          `json:"success"`
	Cached        bool          `json:"cached"`
	BatchNumber   int           `json:"batchNumber,omitempty"`
	RegionName    string        `json:"regionName,omitempty"`
	TotalRecords  int           `json:"totalRecords"`
	ElapsedTime   string        `json:"elapsedTime,omitempty"`
	Source        string        `json:"source,omitempty"`
	BatchesMerged int           `json:"batchesMerged,omitempty"`
	Merge         *merge.Result `json:"merge,omitempty"`
	CacheError    string        `json:"cacheError,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// RequestError is a client error: an unknown request shape or a batch
// number outside the registry.
type RequestError struct {
	Reason   string
	Min, Max int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("service: %s (valid batches %d-%d, or mergeAll)", e.Reason, e.Min, e.Max)
}

// RefreshResult is the outcome of RefreshAll.
type RefreshResult struct {
	Batches    []Response `json:"batches"`
	Merge      Response   `json:"merge"`
	Failed     int        `json:"failed"`
	FirstError string     `json:"firstError,omitempty"`
}
