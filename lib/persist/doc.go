// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package persist mirrors the in-memory cache into a durable store so
// collections survive restarts.
//
// The durable layout is one named bucket with one record per identity.
// A Backend reads and writes that bucket; implementations live in
// redisstore (a Redis hash, compatible with earlier deployments) and
// sqlitestore, and MemoryBackend serves tests and local experiments.
//
// A Bridge owns the three flows between cache and backend:
//
//   - Hydrate loads every record at startup. Records that fail to
//     decode are logged and skipped; a backend failure is fatal.
//   - Snapshot overwrites the bucket with every current collection.
//     It is a whole-mapping overwrite, not a diff, and Redis applies it
//     without cross-field atomicity, so a crash mid-write can leave
//     some identities one snapshot behind.
//   - RemoveEntry records an outstanding delete that Run drains in the
//     background, retrying failures. A crash before the drain leaves a
//     stale record for a deleted identity until it is deleted again.
//
// Snapshots skip identities with outstanding deletes, and snapshots
// and drains never overlap, so a delete is never undone by a
// concurrent snapshot.
package persist
