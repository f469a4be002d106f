// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the passage of time so loops driven by
// tickers and deadlines can be tested deterministically.
//
// Components hold a Clock field that defaults to Real(). Tests inject
// Fake() and move time explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	worker := uploader.New(uploader.Config{Clock: fake, ...})
//	go worker.Run(ctx)
//	fake.WaitForTimers(1)     // the worker's ticker is registered
//	fake.Advance(time.Second) // deliver exactly one tick
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing past it.
package clock
