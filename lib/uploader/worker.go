// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package uploader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skinvault/skinvault/lib/clock"
	"github.com/skinvault/skinvault/lib/signing"
	"github.com/skinvault/skinvault/lib/skin"
)

// Defaults for Config fields left zero.
const (
	DefaultInterval        = time.Second
	DefaultConcurrency     = 4
	DefaultAttemptTimeout  = 30 * time.Second
	DefaultBackoffInitial  = time.Second
	DefaultBackoffMax      = time.Minute
	DefaultBackoffJitter   = 0.2
	DefaultSnapshotTimeout = 30 * time.Second
)

// Cache is the part of *cache.Cache the worker uses.
type Cache interface {
	Collections() []*skin.Collection
	ApplySignature(collection *skin.Collection, name, payload, signature string) bool
	TakeDirty() bool
	MarkDirty()
}

// Persister writes the current cache contents to durable storage.
type Persister interface {
	Snapshot(ctx context.Context) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context) error

// Snapshot calls f(ctx).
func (f PersisterFunc) Snapshot(ctx context.Context) error { return f(ctx) }

// Config configures a Worker.
type Config struct {
	// Cache, Signer and Persister are required.
	Cache     Cache
	Signer    signing.Signer
	Persister Persister

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Interval between sweeps.
	Interval time.Duration

	// Concurrency is the number of signing attempts in flight.
	Concurrency int

	// AttemptTimeout bounds one signing attempt.
	AttemptTimeout time.Duration

	// BackoffInitial and BackoffMax bound the delay before a failed
	// variant is tried again.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// BackoffJitter spreads each delay by up to this fraction in
	// either direction. Negative disables jitter.
	BackoffJitter float64

	// SnapshotTimeout bounds one snapshot.
	SnapshotTimeout time.Duration

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Stats are cumulative counters since the worker was created.
type Stats struct {
	Attempts         uint64 `json:"attempts"`
	Signed           uint64 `json:"signed"`
	Failures         uint64 `json:"failures"`
	RateLimited      uint64 `json:"rate_limited"`
	Discarded        uint64 `json:"discarded"`
	Snapshots        uint64 `json:"snapshots"`
	SnapshotFailures uint64 `json:"snapshot_failures"`
}

type variantKey struct {
	identity string
	name     string
}

type retryState struct {
	collection *skin.Collection
	failures   int
	notBefore  time.Time
}

type candidate struct {
	collection *skin.Collection
	variant    skin.Variant
}

// Worker signs unsigned variants in the background.
type Worker struct {
	cache           Cache
	signer          signing.Signer
	persister       Persister
	clock           clock.Clock
	interval        time.Duration
	concurrency     int
	attemptTimeout  time.Duration
	snapshotTimeout time.Duration
	backoff         backoff
	logger          *slog.Logger

	// tickMu keeps sweeps from overlapping, so each variant has at
	// most one attempt in flight.
	tickMu sync.Mutex

	mu        sync.Mutex
	retries   map[variantKey]*retryState
	holdUntil time.Time

	attempts         atomic.Uint64
	signed           atomic.Uint64
	failures         atomic.Uint64
	rateLimited      atomic.Uint64
	discarded        atomic.Uint64
	snapshots        atomic.Uint64
	snapshotFailures atomic.Uint64
}

// New validates config and returns a Worker.
func New(config Config) (*Worker, error) {
	if config.Cache == nil {
		return nil, errors.New("uploader: Cache is required")
	}
	if config.Signer == nil {
		return nil, errors.New("uploader: Signer is required")
	}
	if config.Persister == nil {
		return nil, errors.New("uploader: Persister is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultAttemptTimeout
	}
	if config.BackoffInitial <= 0 {
		config.BackoffInitial = DefaultBackoffInitial
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = DefaultBackoffMax
	}
	if config.BackoffMax < config.BackoffInitial {
		return nil, errors.New("uploader: BackoffMax is smaller than BackoffInitial")
	}
	if config.BackoffJitter == 0 {
		config.BackoffJitter = DefaultBackoffJitter
	}
	if config.BackoffJitter >= 1 {
		return nil, errors.New("uploader: BackoffJitter must be below 1")
	}
	if config.SnapshotTimeout <= 0 {
		config.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	return &Worker{
		cache:           config.Cache,
		signer:          config.Signer,
		persister:       config.Persister,
		clock:           config.Clock,
		interval:        config.Interval,
		concurrency:     config.Concurrency,
		attemptTimeout:  config.AttemptTimeout,
		snapshotTimeout: config.SnapshotTimeout,
		backoff: backoff{
			initial: config.BackoffInitial,
			max:     config.BackoffMax,
			jitter:  config.BackoffJitter,
		},
		logger:  config.Logger,
		retries: make(map[variantKey]*retryState),
	}, nil
}

// Run sweeps every Interval until ctx is cancelled and returns nil.
// Cancellation is noticed between ticks; a sweep in progress finishes.
func (w *Worker) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("upload worker started",
		"interval", w.interval,
		"concurrency", w.concurrency,
	)
	for {
		select {
		case <-ctx.Done():
			stats := w.Stats()
			w.logger.Info("upload worker stopped",
				"signed", stats.Signed,
				"failures", stats.Failures,
			)
			return nil
		case <-ticker.C:
		}
		w.Tick(ctx)
	}
}

// Tick runs one sweep followed, if anything changed, by a snapshot.
// Variants inserted while the sweep runs wait for the next tick.
func (w *Worker) Tick(ctx context.Context) {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()

	collections := w.cache.Collections()
	w.prune(collections)
	w.sweep(ctx, w.candidates(collections))
	w.persist(ctx)
}

// Stats returns a copy of the counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Attempts:         w.attempts.Load(),
		Signed:           w.signed.Load(),
		Failures:         w.failures.Load(),
		RateLimited:      w.rateLimited.Load(),
		Discarded:        w.discarded.Load(),
		Snapshots:        w.snapshots.Load(),
		SnapshotFailures: w.snapshotFailures.Load(),
	}
}

// prune drops retry state for collections no longer in the cache,
// including identities that were deleted and created again.
func (w *Worker) prune(collections []*skin.Collection) {
	live := make(map[*skin.Collection]struct{}, len(collections))
	for _, collection := range collections {
		live[collection] = struct{}{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, state := range w.retries {
		if _, ok := live[state.collection]; !ok {
			delete(w.retries, key)
		}
	}
}

// candidates lists the unsigned variants that are due now.
func (w *Worker) candidates(collections []*skin.Collection) []candidate {
	now := w.clock.Now()
	w.mu.Lock()
	defer w.mu.Unlock()

	var due []candidate
	for _, collection := range collections {
		for _, variant := range collection.Unsigned() {
			key := variantKey{identity: collection.Identity(), name: variant.Name}
			if state, ok := w.retries[key]; ok && now.Before(state.notBefore) {
				continue
			}
			due = append(due, candidate{collection: collection, variant: variant})
		}
	}
	return due
}

func (w *Worker) sweep(ctx context.Context, due []candidate) {
	if len(due) == 0 {
		return
	}
	slots := make(chan struct{}, w.concurrency)
	var waitGroup sync.WaitGroup
	for _, next := range due {
		slots <- struct{}{}
		if w.held() {
			<-slots
			continue
		}
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			defer func() { <-slots }()
			w.attempt(ctx, next)
		}()
	}
	waitGroup.Wait()
}

func (w *Worker) held() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clock.Now().Before(w.holdUntil)
}

func (w *Worker) attempt(ctx context.Context, next candidate) {
	identity := next.collection.Identity()
	key := variantKey{identity: identity, name: next.variant.Name}

	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.attemptTimeout)
	defer cancel()

	w.attempts.Add(1)
	started := w.clock.Now()
	signed, err := w.signer.Sign(attemptCtx, signing.RequestFor(identity, next.variant))
	if err != nil {
		if rateLimit, ok := signing.AsRateLimit(err); ok {
			w.hold(rateLimit.RetryAt)
			w.rateLimited.Add(1)
			w.logger.Info("signer rate limited, holding",
				"identity", identity,
				"variant", next.variant.Name,
				"retry_at", rateLimit.RetryAt,
			)
			return
		}
		failures, delay := w.fail(key, next.collection)
		w.failures.Add(1)
		w.logger.Warn("signing failed, will retry",
			"identity", identity,
			"variant", next.variant.Name,
			"failures", failures,
			"retry_in", delay,
			"malformed", skin.IsMalformed(err),
			"error", err,
		)
		return
	}

	w.mu.Lock()
	delete(w.retries, key)
	w.mu.Unlock()

	if !w.cache.ApplySignature(next.collection, next.variant.Name, signed.Payload, signed.Signature) {
		w.discarded.Add(1)
		w.logger.Debug("discarded signature for removed variant",
			"identity", identity,
			"variant", next.variant.Name,
		)
		return
	}
	w.signed.Add(1)
	w.logger.Debug("variant signed",
		"identity", identity,
		"variant", next.variant.Name,
		"duration", w.clock.Now().Sub(started),
	)
}

// hold stops new attempts until until. The hold only moves forward.
func (w *Worker) hold(until time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if until.After(w.holdUntil) {
		w.holdUntil = until
	}
}

func (w *Worker) fail(key variantKey, collection *skin.Collection) (int, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	state, ok := w.retries[key]
	if !ok || state.collection != collection {
		state = &retryState{collection: collection}
		w.retries[key] = state
	}
	state.failures++
	delay := w.backoff.delay(state.failures)
	state.notBefore = w.clock.Now().Add(delay)
	return state.failures, delay
}

// persist snapshots when the cache is dirty. A failed snapshot marks
// the cache dirty again.
func (w *Worker) persist(ctx context.Context) {
	if !w.cache.TakeDirty() {
		return
	}
	snapshotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.snapshotTimeout)
	defer cancel()

	if err := w.persister.Snapshot(snapshotCtx); err != nil {
		w.cache.MarkDirty()
		w.snapshotFailures.Add(1)
		w.logger.Error("snapshot failed, will retry next tick", "error", err)
		return
	}
	w.snapshots.Add(1)
}
