// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitestore keeps records in a local SQLite file, for single
// node deployments without Redis.
package sqlitestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/skinvault/skinvault/lib/persist"
	"github.com/skinvault/skinvault/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	bucket     TEXT    NOT NULL,
	identity   TEXT    NOT NULL,
	record     BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (bucket, identity)
) WITHOUT ROWID;
`

const upsert = `
INSERT INTO entries (bucket, identity, record, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (bucket, identity) DO UPDATE SET
	record = excluded.record,
	updated_at = excluded.updated_at
`

// Config configures a Store.
type Config struct {
	// Path is the database file. Required.
	Path string

	// Bucket defaults to persist.DefaultBucket.
	Bucket string

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Store is a persist.Backend on SQLite.
type Store struct {
	pool   *sqlitepool.Pool
	bucket string
}

var _ persist.Backend = (*Store)(nil)

// Open opens or creates the database at config.Path.
func Open(config Config) (*Store, error) {
	bucket := config.Bucket
	if bucket == "" {
		bucket = persist.DefaultBucket
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   config.Path,
		Schema: schema,
		Logger: config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: %w", err)
	}
	return &Store{pool: pool, bucket: bucket}, nil
}

// LoadAll reads every record of the bucket.
func (s *Store) LoadAll(ctx context.Context) (map[string][]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load: %w", err)
	}
	defer s.pool.Put(conn)

	records := make(map[string][]byte)
	err = sqlitex.Execute(conn, "SELECT identity, record FROM entries WHERE bucket = ?", &sqlitex.ExecOptions{
		Args: []any{s.bucket},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, record)
			records[stmt.ColumnText(0)] = record
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load: %w", err)
	}
	return records, nil
}

// PutAll upserts records in one IMMEDIATE transaction, so a snapshot
// lands completely or not at all.
func (s *Store) PutAll(ctx context.Context, records map[string][]byte) (err error) {
	if len(records) == 0 {
		return nil
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: put: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	now := time.Now().UnixMilli()
	for identity, record := range records {
		if err = sqlitex.Execute(conn, upsert, &sqlitex.ExecOptions{
			Args: []any{s.bucket, identity, record, now},
		}); err != nil {
			return fmt.Errorf("sqlitestore: writing %s: %w", identity, err)
		}
	}
	return nil
}

// Delete removes records in one transaction.
func (s *Store) Delete(ctx context.Context, identities ...string) (err error) {
	if len(identities) == 0 {
		return nil
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, identity := range identities {
		if err = sqlitex.Execute(conn, "DELETE FROM entries WHERE bucket = ? AND identity = ?", &sqlitex.ExecOptions{
			Args: []any{s.bucket, identity},
		}); err != nil {
			return fmt.Errorf("sqlitestore: deleting %s: %w", identity, err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
