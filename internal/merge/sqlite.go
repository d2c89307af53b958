package merge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"course-harvest/internal/domain"
)

// SQLiteStore keeps the merged set in the merged_records table. Each chunk
// is written in its own transaction.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM merged_records`); err != nil {
		return fmt.Errorf("merge: clear merged_records: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertChunk(ctx context.Context, recs []domain.CanonicalRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("merge: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO merged_records (dedup_key, record_id, title, provider_name, category, region, source, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("merge: prepare insert: %w", err)
	}
	defer stmt.Close()

	total := 0
	for _, r := range recs {
		body, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("merge: marshal record %s: %w", r.ID, err)
		}
		res, err := stmt.ExecContext(ctx, Key(r), r.ID, r.Title, r.ProviderName, r.Category, r.Region, r.Source, string(body))
		if err != nil {
			return 0, fmt.Errorf("merge: insert record %s: %w", r.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("merge: rows affected: %w", err)
		}
		total += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("merge: commit chunk: %w", err)
	}
	return total, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]domain.CanonicalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM merged_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("merge: list merged_records: %w", err)
	}
	defer rows.Close()

	var out []domain.CanonicalRecord
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("merge: scan merged record: %w", err)
		}
		var r domain.CanonicalRecord
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("merge: decode merged record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("merge: list merged_records: %w", err)
	}
	return out, nil
}
