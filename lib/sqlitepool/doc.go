// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens a fixed-size pool of zombiezen SQLite
// connections with the pragmas every local store in this module
// expects: WAL journaling, NORMAL synchronous, a five second busy
// timeout and in-memory temp storage.
//
// Connections are not safe for concurrent use. Each goroutine takes
// its own connection and returns it:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// Schema statements passed in Config.Schema run on every new
// connection, so they must be idempotent (CREATE ... IF NOT EXISTS).
package sqlitepool
