package merge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"course-harvest/internal/domain"
)

// PostgresStore keeps the merged set in the merged_records table and sends
// each chunk as one pgx.Batch inside a transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM merged_records`); err != nil {
		return fmt.Errorf("merge: clear merged_records: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertChunk(ctx context.Context, recs []domain.CanonicalRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	b := &pgx.Batch{}
	for _, r := range recs {
		body, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("merge: marshal record %s: %w", r.ID, err)
		}
		var price *string
		if r.Price != nil {
			p := r.Price.String()
			price = &p
		}
		b.Queue(
			`INSERT INTO merged_records
			(dedup_key, record_id, title, provider_name, category, region, source, price, record)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9::jsonb)
			ON CONFLICT (dedup_key) DO NOTHING`,
			Key(r), r.ID, r.Title, r.ProviderName, r.Category, r.Region, r.Source, price, string(body),
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("merge: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	total := 0
	br := tx.SendBatch(ctx, b)
	for k := 0; k < b.Len(); k++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("merge: insert record %s: %w", recs[k].ID, err)
		}
		total += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("merge: close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("merge: commit chunk: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.CanonicalRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM merged_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("merge: list merged_records: %w", err)
	}
	defer rows.Close()

	var out []domain.CanonicalRecord
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("merge: scan merged record: %w", err)
		}
		var r domain.CanonicalRecord
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("merge: decode merged record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("merge: list merged_records: %w", err)
	}
	return out, nil
}
