package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"course-harvest/internal/domain"
)

// PostgresStore persists entries in the cache_entries table with records
// as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
	Now  func() time.Time
}

// NewPostgresStore expects a database migrated with database.MigratePool.
func NewPostgresStore(pool *pgxpool.Pool, now func() time.Time) *PostgresStore {
	return &PostgresStore{pool: pool, Now: now}
}

const pgEntryCols = `id, batch_number, region, records, record_count, source, created_at, expires_at`

func (s *PostgresStore) Put(ctx context.Context, e domain.CacheEntry) error {
	recs, err := json.Marshal(recordsOrEmpty(e.Records))
	if err != nil {
		return fmt.Errorf("cache: marshal records for batch %d: %w", e.BatchNumber, err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO cache_entries (`+pgEntryCols+`) VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8)`,
		e.ID, e.BatchNumber, e.Region, string(recs), e.RecordCount, e.Source, e.CreatedAt, e.ExpiresAt,
	); err != nil {
		return fmt.Errorf("cache: insert entry for batch %d: %w", e.BatchNumber, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, batch int) (domain.CacheEntry, error) {
	now := clockOrDefault(s.Now)()
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgEntryCols+` FROM cache_entries
		 WHERE batch_number = $1 AND expires_at > $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		batch, now,
	)
	e, err := scanPGEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CacheEntry{}, ErrMiss
	}
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("cache: get batch %d: %w", batch, err)
	}
	return e, nil
}

func (s *PostgresStore) ListFresh(ctx context.Context) ([]domain.CacheEntry, error) {
	now := clockOrDefault(s.Now)()
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgEntryCols+` FROM cache_entries
		 WHERE expires_at > $1
		 ORDER BY created_at DESC, id DESC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("cache: list fresh: %w", err)
	}
	defer rows.Close()

	var out []domain.CacheEntry
	for rows.Next() {
		e, err := scanPGEntry(rows)
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
func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("cache: prune: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanPGEntry(r pgx.Row) (domain.CacheEntry, error) {
	var (
		e    domain.CacheEntry
		recs []byte
	)
	if err := r.Scan(&e.ID, &e.BatchNumber, &e.Region, &recs, &e.RecordCount, &e.Source, &e.CreatedAt, &e.ExpiresAt); err != nil {
		return domain.CacheEntry{}, err
	}
	if err := json.Unmarshal(recs, &e.Records); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("decode records of entry %s: %w", e.ID, err)
	}
	return e, nil
}
