package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCacheTTL is how long a fetched batch stays fresh.
const DefaultCacheTTL = 12 * time.Hour

// CacheEntry is one stored result of a batch run. Entries are append-only;
// a newer entry for the same batch supersedes older ones on read.
type CacheEntry struct {
	ID          uuid.UUID         `json:"id" msgpack:"id"`
	BatchNumber int               `json:"batchNumber" msgpack:"batch_number"`
	Region      string            `json:"region" msgpack:"region"`
	Records     []CanonicalRecord `json:"records" msgpack:"records"`
	RecordCount int               `json:"recordCount" msgpack:"record_count"`
	Source      string            `json:"source" msgpack:"source"`
	CreatedAt   time.Time         `json:"createdAt" msgpack:"created_at"`
	ExpiresAt   time.Time         `json:"expiresAt" msgpack:"expires_at"`
}

// NewCacheEntry stamps a batch result with a fresh id and expiry.
func NewCacheEntry(batch SourceBatch, records []CanonicalRecord, source string, now time.Time, ttl time.Duration) CacheEntry {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return CacheEntry{
		ID:          uuid.New(),
		BatchNumber: batch.Number,
		Region:      batch.Name,
		Records:     records,
		RecordCount: len(records),
		Source:      source,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// FreshAt reports whether the entry is still readable at t.
func (e CacheEntry) FreshAt(t time.Time) bool { return e.ExpiresAt.After(t) }
