// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/skinvault/skinvault/lib/clock"
	"github.com/skinvault/skinvault/lib/codec"
	"github.com/skinvault/skinvault/lib/skin"
)

// DefaultRetryInterval is how often failed deletes are retried.
const DefaultRetryInterval = 5 * time.Second

// ErrDeferred reports that a snapshot left out live collections whose
// identity still has an outstanding delete. They must be snapshotted
// again once the delete has drained.
var ErrDeferred = errors.New("persist: collections deferred behind outstanding deletes")

// finalDrainTimeout bounds the last delete drain when Run stops.
const finalDrainTimeout = 5 * time.Second

// Source lists collections to snapshot. *cache.Cache implements it.
type Source interface {
	Collections() []*skin.Collection
}

// Target receives hydrated collections. *cache.Cache implements it.
type Target interface {
	Insert(collection *skin.Collection) error
}

// Config configures a Bridge.
type Config struct {
	// Backend is required.
	Backend Backend

	// Compression for new records. The zero value stores them
	// uncompressed; configuration defaults to zstd.
	Compression codec.Compression

	// RetryInterval defaults to DefaultRetryInterval.
	RetryInterval time.Duration

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// HydrateResult summarizes a Hydrate call.
type HydrateResult struct {
	Loaded     int
	Malformed  int
	Duplicates int
}

// Bridge moves collections between the cache and a Backend. It is
// safe for concurrent use.
type Bridge struct {
	backend       Backend
	compression   codec.Compression
	retryInterval time.Duration
	clock         clock.Clock
	logger        *slog.Logger

	// writeMu serializes snapshots and delete drains.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]struct{}

	wake chan struct{}
}

// New returns a Bridge over config.Backend.
func New(config Config) (*Bridge, error) {
	if config.Backend == nil {
		return nil, errors.New("persist: Backend is required")
	}
	switch config.Compression {
	case codec.CompressionNone, codec.CompressionLZ4, codec.CompressionZstd:
	default:
		return nil, fmt.Errorf("persist: unsupported compression %s", config.Compression)
	}
	retry := config.RetryInterval
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bridge{
		backend:       config.Backend,
		compression:   config.Compression,
		retryInterval: retry,
		clock:         clk,
		logger:        logger,
		pending:       make(map[string]struct{}),
		wake:          make(chan struct{}, 1),
	}, nil
}

// Hydrate loads every stored record into target. Each record is
// decoded on its own: malformed ones are logged and counted, and
// identities already present in target are left as they are. Only a
// backend failure is returned.
func (b *Bridge) Hydrate(ctx context.Context, target Target) (HydrateResult, error) {
	start := b.clock.Now()
	records, err := b.backend.LoadAll(ctx)
	if err != nil {
		return HydrateResult{}, fmt.Errorf("persist: loading records: %w", err)
	}

	var result HydrateResult
	for _, identity := range slices.Sorted(maps.Keys(records)) {
		collection, err := DecodeCollection(identity, records[identity])
		if err != nil {
			result.Malformed++
			b.logger.Warn("skipping malformed record", "identity", identity, "error", err)
			continue
		}
		if err := target.Insert(collection); err != nil {
			if errors.Is(err, skin.ErrDuplicateRace) {
				result.Duplicates++
				continue
			}
			return result, fmt.Errorf("persist: inserting %s: %w", identity, err)
		}
		result.Loaded++
	}
	b.logger.Info("hydrated cache",
		"loaded", result.Loaded,
		"malformed", result.Malformed,
		"duplicates", result.Duplicates,
		"duration", b.clock.Now().Sub(start),
	)
	return result, nil
}

// Snapshot writes every collection of source to the backend,
// skipping identities with outstanding deletes. It returns when the
// write has completed or failed. When a collection was skipped the
// other records are still written and the error wraps ErrDeferred.
func (b *Bridge) Snapshot(ctx context.Context, source Source) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := b.clock.Now()
	collections := source.Collections()
	records := make(map[string][]byte, len(collections))

	b.mu.Lock()
	pending := maps.Clone(b.pending)
	b.mu.Unlock()

	var deferred []string
	for _, collection := range collections {
		identity := collection.Identity()
		if _, deleting := pending[identity]; deleting {
			deferred = append(deferred, identity)
			continue
		}
		encoded, err := EncodeCollection(collection, b.compression)
		if err != nil {
			return fmt.Errorf("persist: snapshot: %w", err)
		}
		records[identity] = encoded
	}
	if len(records) > 0 {
		if err := b.backend.PutAll(ctx, records); err != nil {
			return fmt.Errorf("persist: snapshot of %d records: %w", len(records), err)
		}
		b.logger.Info("snapshot written", "records", len(records), "duration", b.clock.Now().Sub(start))
	}
	if len(deferred) > 0 {
		return fmt.Errorf("%w: %v", ErrDeferred, deferred)
	}
	return nil
}

// RemoveEntry records identity as an outstanding durable delete and
// wakes Run. It never blocks on the backend.
func (b *Bridge) RemoveEntry(identity string) {
	b.mu.Lock()
	b.pending[identity] = struct{}{}
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of outstanding deletes.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Drain deletes every outstanding identity from the backend. On
// failure the identities stay outstanding for the next attempt.
func (b *Bridge) Drain(ctx context.Context) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	identities := slices.Sorted(maps.Keys(b.pending))
	b.mu.Unlock()
	if len(identities) == 0 {
		return nil
	}

	if err := b.backend.Delete(ctx, identities...); err != nil {
		return fmt.Errorf("persist: deleting %d records: %w", len(identities), err)
	}

	b.mu.Lock()
	for _, identity := range identities {
		delete(b.pending, identity)
	}
	b.mu.Unlock()
	b.logger.Debug("deleted records", "count", len(identities))
	return nil
}

// Run drains outstanding deletes whenever one is recorded and retries
// failures every RetryInterval, until ctx is cancelled. A last drain
// is attempted on the way out.
func (b *Bridge) Run(ctx context.Context) error {
	ticker := b.clock.NewTicker(b.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalDrainTimeout)
			defer cancel()
			if err := b.Drain(drainCtx); err != nil {
				b.logger.Error("final delete drain failed", "error", err, "pending", b.Pending())
			}
			return nil
		case <-b.wake:
		case <-ticker.C:
		}
		if err := b.Drain(ctx); err != nil {
			b.logger.Warn("delete drain failed, will retry", "error", err, "pending", b.Pending())
		}
	}
}
