// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package uploader

import (
	"math/rand/v2"
	"time"
)

// backoff computes the delay after the given number of consecutive
// failures: initial doubling up to max, then spread by +-jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	jitter  float64

	// random returns a value in [0, 1).
	random func() float64
}

func (b backoff) delay(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	delay := b.initial
	for range failures - 1 {
		if delay >= b.max/2 {
			delay = b.max
			break
		}
		delay *= 2
	}
	delay = min(delay, b.max)
	if b.jitter <= 0 {
		return delay
	}
	random := b.random
	if random == nil {
		random = rand.Float64
	}
	spread := 1 + b.jitter*(2*random()-1)
	return time.Duration(float64(delay) * spread)
}
