package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"course-harvest/internal/domain"
)

// SQLiteStore persists entries in the cache_entries table. Records are
// stored as a JSON array and timestamps as unix nanoseconds.
type SQLiteStore struct {
	db  *sql.DB
	Now func() time.Time
}

// NewSQLiteStore expects a database migrated with database.Migrate.
func NewSQLiteStore(db *sql.DB, now func() time.Time) *SQLiteStore {
	return &SQLiteStore{db: db, Now: now}
}

const sqliteEntryCols = `id, batch_number, region, records, record_count, source, created_at, expires_at`

func (s *SQLiteStore) Put(ctx context.Context, e domain.CacheEntry) error {
	recs, err := json.Marshal(recordsOrEmpty(e.Records))
	if err != nil {
		return fmt.Errorf("cache: marshal records for batch %d: %w", e.BatchNumber, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (`+sqliteEntryCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.BatchNumber, e.Region, string(recs), e.RecordCount, e.Source,
		e.CreatedAt.UnixNano(), e.ExpiresAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("cache: insert entry for batch %d: %w", e.BatchNumber, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, batch int) (domain.CacheEntry, error) {
	now := clockOrDefault(s.Now)()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteEntryCols+` FROM cache_entries
		 WHERE batch_number = ? AND expires_at > ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT 1`,
		batch, now.UnixNano(),
	)
	e, err := scanSQLiteEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CacheEntry{}, ErrMiss
	}
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("cache: get batch %d: %w", batch, err)
	}
	return e, nil
}

func (s *SQLiteStore) ListFresh(ctx context.Context) ([]domain.CacheEntry, error) {
	now := clockOrDefault(s.Now)()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteEntryCols+` FROM cache_entries
		 WHERE expires_at > ?
		 ORDER BY created_at DESC, rowid DESC`,
		now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("cache: list fresh: %w", err)
	}
	defer rows.Close()

	var out []domain.CacheEntry
	for rows.Next() {
		e, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("cache: list fresh: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache: list fresh: %w", err)
	}
	return out, nil
}

// Prune deletes entries that expired at or before before.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cache: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache: prune rows affected: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEntry(r rowScanner) (domain.CacheEntry, error) {
	var (
		e                domain.CacheEntry
		id, recs         string
		created, expires int64
	)
	if err := r.Scan(&id, &e.BatchNumber, &e.Region, &recs, &e.RecordCount, &e.Source, &created, &expires); err != nil {
		return domain.CacheEntry{}, err
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("parse entry id %q: %w", id, err)
	}
	e.ID = uid
	if err := json.Unmarshal([]byte(recs), &e.Records); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("decode records of entry %s: %w", id, err)
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	e.ExpiresAt = time.Unix(0, expires).UTC()
	return e, nil
}

func recordsOrEmpty(recs []domain.CanonicalRecord) []domain.CanonicalRecord {
	if recs == nil {
		return []domain.CanonicalRecord{}
	}
	return recs
}
