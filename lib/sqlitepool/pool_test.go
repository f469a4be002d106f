// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/skinvault/skinvault/lib/sqlitepool"
)

func openTestPool(t *testing.T, schema string) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   filepath.Join(t.TempDir(), "nested", "test.db"),
		Schema: schema,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func queryText(t *testing.T, conn *sqlite.Conn, query string) string {
	t.Helper()
	var result string
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			result = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return result
}

func TestOpenAppliesPragmas(t *testing.T) {
	pool := openTestPool(t, "")
	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	if got := queryText(t, conn, "PRAGMA journal_mode"); got != "wal" {
		t.Errorf("journal_mode = %q, want wal", got)
	}
	if got := queryText(t, conn, "PRAGMA synchronous"); got != "1" {
		t.Errorf("synchronous = %q, want 1 (NORMAL)", got)
	}
	if got := queryText(t, conn, "PRAGMA busy_timeout"); got != "5000" {
		t.Errorf("busy_timeout = %q, want 5000", got)
	}
}

func TestSchemaAppliedOnEveryConnection(t *testing.T) {
	pool := openTestPool(t, `CREATE TABLE IF NOT EXISTS sample (id INTEGER PRIMARY KEY, value TEXT NOT NULL);`)

	var waitGroup sync.WaitGroup
	errs := make(chan error, 4)
	for index := range 4 {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			conn, err := pool.Take(context.Background())
			if err != nil {
				errs <- err
				return
			}
			defer pool.Put(conn)
			errs <- sqlitex.Execute(conn, "INSERT INTO sample (id, value) VALUES (?, ?)", &sqlitex.ExecOptions{
				Args: []any{index, "row"},
			})
		}()
	}
	waitGroup.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)
	if got := queryText(t, conn, "SELECT COUNT(*) FROM sample"); got != "4" {
		t.Errorf("row count = %s, want 4", got)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestTakeHonoursCancelledContext(t *testing.T) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "single.db"),
		PoolSize: 1,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	held, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Error("Take with cancelled context succeeded while pool exhausted")
	}
	pool.Put(held)
}
