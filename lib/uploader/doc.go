// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package uploader drives unsigned variants to signed.
//
// A Worker sweeps the cache once per tick. Every unsigned variant that
// is not backing off is sent to the signer once, through a bounded
// pool, and a successful answer replaces the variant's payload and
// signature in place. When a sweep changed anything the worker asks
// the persister for a snapshot and waits for it; a failed snapshot
// leaves the cache dirty so the next tick tries again.
//
// Failures are never fatal. A failed variant is retried after a
// bounded exponential backoff with jitter. A rate-limited answer holds
// every signing attempt until the time the authority named.
//
// Signing attempts run on a context detached from the one passed to
// Run, under their own timeout. Cancelling Run takes effect between
// ticks, so an attempt is never torn halfway through.
//
// A completing attempt for an identity that was deleted meanwhile is
// discarded: the cache refuses the update and the identity stays
// deleted.
package uploader
