// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package mineskin

import (
	"sync"
	"time"

	"github.com/skinvault/skinvault/lib/clock"
)

// rateLimitTracker remembers the earliest time MineSkin will accept
// the next request. Holds only move forward.
type rateLimitTracker struct {
	mu    sync.Mutex
	until time.Time
	clock clock.Clock
}

func newRateLimitTracker(clock clock.Clock) *rateLimitTracker {
	return &rateLimitTracker{clock: clock}
}

// blocked reports whether requests must wait, and until when.
func (tracker *rateLimitTracker) blocked() (time.Time, bool) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if tracker.until.After(tracker.clock.Now()) {
		return tracker.until, true
	}
	return time.Time{}, false
}

func (tracker *rateLimitTracker) holdUntil(at time.Time) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if at.After(tracker.until) {
		tracker.until = at
	}
}
