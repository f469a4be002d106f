// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache is the in-memory store of skin collections keyed by
// identity, and the on-demand generation path in front of it.
//
// A Cache holds at most one collection per identity. GetOrCreate calls
// the generation service on a miss; concurrent first requests for one
// identity share a single generation call, and the insert is
// insert-if-absent, so an identity is generated at most once while its
// entry exists.
//
// Deletion wins over signing: ApplySignature only mutates a collection
// that is still the live entry for its identity, so an upload that
// completes after a delete is discarded and never resurrects the
// identity.
//
// The dirty flag records that some variant became signed since the
// last successful snapshot. The upload worker takes it after each
// sweep and restores it when persisting fails.
package cache
