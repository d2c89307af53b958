package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenMigratedCreatesTables(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "harvest.db")

	db, err := OpenMigrated(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("OpenMigrated: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected database file: %v", err)
	}

	for _, table := range []string{"cache_entries", "merged_records"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	// Migrating twice is fine.
	if err := Migrate(ctx, db); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
}

func TestOpenMemory(t *testing.T) {
	db, err := OpenMigrated(context.Background(), Config{Path: MemoryPath})
	if err != nil {
		t.Fatalf("OpenMigrated: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO merged_records (dedup_key, record_id, title, provider_name, category, region, source, record)
		VALUES ('a:b', 'id', 'A', 'B', 'c', 'r', 's', '{}')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM merged_records`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("count = %d err = %v", n, err)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatalf("Expected error for empty path")
	}
}

func TestOpenPoolBadDSN(t *testing.T) {
	if _, err := OpenPool(context.Background(), PoolConfig{DSN: "::not a dsn::"}); err == nil {
		t.Fatalf("Expected parse error")
	}
}

func TestMigratePool(t *testing.T) {
	dsn := os.Getenv("HARVEST_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("HARVEST_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := OpenPool(ctx, PoolConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("OpenPool: %v", err)
	}
	defer pool.Close()
	if err := MigratePool(ctx, pool); err != nil {
		t.Fatalf("MigratePool: %v", err)
	}
	if err := MigratePool(ctx, pool); err != nil {
		t.Fatalf("second MigratePool: %v", err)
	}
}
