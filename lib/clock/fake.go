// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only through Advance. It is
// safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	changed *sync.Cond
	now     time.Time
	pending []*pendingTimer
}

// pendingTimer is a registered After or ticker deadline. interval is
// zero for one-shot timers.
type pendingTimer struct {
	deadline time.Time
	interval time.Duration
	channel  chan time.Time
	stopped  bool
}

// Fake returns a FakeClock reading initial until advanced.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{now: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a one-shot timer.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.registerLocked(&pendingTimer{deadline: c.now.Add(d), channel: channel})
	return channel
}

// NewTicker registers a periodic timer.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &pendingTimer{deadline: c.now.Add(d), interval: d, channel: make(chan time.Time, 1)}
	c.registerLocked(timer)
	return &Ticker{
		C: timer.channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			timer.stopped = true
			c.changed.Broadcast()
		},
		reset: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			timer.interval = d
			timer.deadline = c.now.Add(d)
			timer.stopped = false
			if !slices.Contains(c.pending, timer) {
				c.pending = append(c.pending, timer)
			}
			c.changed.Broadcast()
		},
	}
}

// Advance moves time forward by d and fires every timer whose
// deadline has been reached, in deadline order. A ticker spanned by
// several intervals fires once per interval; sends never block, so
// ticks beyond the channel buffer are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}
		for _, timer := range due {
			select {
			case timer.channel <- target:
			default:
			}
		}
	}
}

// takeDue removes expired one-shot timers, reschedules expired
// tickers, and returns everything that should fire.
func (c *FakeClock) takeDue(target time.Time) []*pendingTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due, remaining []*pendingTimer
	for _, timer := range c.pending {
		switch {
		case timer.stopped:
		case timer.deadline.After(target):
			remaining = append(remaining, timer)
		default:
			due = append(due, timer)
			if timer.interval > 0 {
				timer.deadline = timer.deadline.Add(timer.interval)
				remaining = append(remaining, timer)
			}
		}
	}
	c.pending = remaining
	slices.SortStableFunc(due, func(a, b *pendingTimer) int {
		return a.deadline.Compare(b.deadline)
	})
	return due
}

// WaitForTimers blocks until at least n timers are registered and not
// stopped.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of registered, unstopped timers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *FakeClock) registerLocked(timer *pendingTimer) {
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
}

func (c *FakeClock) activeLocked() int {
	count := 0
	for _, timer := range c.pending {
		if !timer.stopped {
			count++
		}
	}
	return count
}
