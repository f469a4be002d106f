// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skinvault/skinvault/lib/generation"
	"github.com/skinvault/skinvault/lib/skin"
)

// DefaultGenerateTimeout bounds one generation call.
const DefaultGenerateTimeout = 30 * time.Second

// Generator produces the variants for an identity.
// *generation.Client implements it.
type Generator interface {
	Generate(ctx context.Context, identity string) (generation.Result, error)
}

// Remover is told about every identity deleted from the cache so the
// durable copy can be removed. RemoveEntry must not block.
type Remover interface {
	RemoveEntry(identity string)
}

// Config configures a Cache.
type Config struct {
	// Generator is required for GetOrCreate.
	Generator Generator

	// Remover is optional.
	Remover Remover

	// GenerateTimeout defaults to DefaultGenerateTimeout.
	GenerateTimeout time.Duration

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Cache is safe for concurrent use.
type Cache struct {
	generator       Generator
	remover         Remover
	generateTimeout time.Duration
	logger          *slog.Logger

	mu      sync.RWMutex
	entries map[string]*skin.Collection

	creating singleflight.Group
	dirty    atomic.Bool
}

// New returns an empty Cache.
func New(config Config) *Cache {
	timeout := config.GenerateTimeout
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		generator:       config.Generator,
		remover:         config.Remover,
		generateTimeout: timeout,
		logger:          logger,
		entries:         make(map[string]*skin.Collection),
	}
}

// Get returns the collection for identity without generating.
func (c *Cache) Get(identity string) (*skin.Collection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	collection, ok := c.entries[identity]
	return collection, ok
}

// GetOrCreate returns the existing collection or generates, inserts
// and returns a new one with every variant unsigned. Errors are
// *skin.GenerationError wrapping skin.ErrUpstreamUnavailable or
// skin.ErrMalformedResponse; nothing is inserted on failure.
//
// The generation call is shared by every concurrent caller for the
// identity and is not cancelled when one of them gives up; ctx only
// bounds how long this caller waits.
func (c *Cache) GetOrCreate(ctx context.Context, identity string) (*skin.Collection, error) {
	if collection, ok := c.Get(identity); ok {
		return collection, nil
	}
	if c.generator == nil {
		return nil, &skin.GenerationError{Identity: identity, Err: fmt.Errorf("%w: no generator configured", skin.ErrUpstreamUnavailable)}
	}

	results := c.creating.DoChan(identity, func() (any, error) {
		return c.create(context.WithoutCancel(ctx), identity)
	})
	select {
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*skin.Collection), nil
	case <-ctx.Done():
		return nil, &skin.GenerationError{Identity: identity, Err: fmt.Errorf("%w: %w", skin.ErrUpstreamUnavailable, ctx.Err())}
	}
}

// create runs inside the singleflight group for identity.
func (c *Cache) create(ctx context.Context, identity string) (*skin.Collection, error) {
	// A previous flight may have finished between the caller's Get and
	// joining this one.
	if collection, ok := c.Get(identity); ok {
		return collection, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	start := time.Now()
	result, err := c.generator.Generate(ctx, identity)
	if err != nil {
		if !skin.IsMalformed(err) && !skin.IsUpstreamUnavailable(err) {
			err = fmt.Errorf("%w: %w", skin.ErrUpstreamUnavailable, err)
		}
		c.logger.Warn("generation failed", "identity", identity, "error", err, "duration", time.Since(start))
		return nil, &skin.GenerationError{Identity: identity, Err: err}
	}

	collection, err := skin.FromPayloads(identity, result.Slim, result.Payloads)
	if err != nil {
		c.logger.Warn("generation returned unusable variants", "identity", identity, "error", err)
		return nil, &skin.GenerationError{Identity: identity, Err: errors.Join(skin.ErrMalformedResponse, err)}
	}

	if err := c.Insert(collection); err != nil {
		if existing, ok := c.Get(identity); ok {
			return existing, nil
		}
		// Inserted and deleted again in between; hand back ours, which
		// is no longer live.
		return collection, nil
	}
	c.logger.Info("generated collection",
		"identity", identity,
		"variants", collection.Len(),
		"slim", result.Slim,
		"duration", time.Since(start),
	)
	return collection, nil
}

// Insert adds collection if its identity is free and returns
// skin.ErrDuplicateRace otherwise. The existing entry is kept.
func (c *Cache) Insert(collection *skin.Collection) error {
	if collection == nil {
		return errors.New("cache: nil collection")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[collection.Identity()]; exists {
		return skin.ErrDuplicateRace
	}
	c.entries[collection.Identity()] = collection
	return nil
}

// Delete removes identity and returns what was removed. The durable
// delete is handed to the Remover; Delete does not wait for it.
func (c *Cache) Delete(identity string) (*skin.Collection, bool) {
	c.mu.Lock()
	collection, ok := c.entries[identity]
	if ok {
		delete(c.entries, identity)
	}
	c.mu.Unlock()

	if !ok {
		return nil, false
	}
	if c.remover != nil {
		c.remover.RemoveEntry(identity)
	}
	c.logger.Info("deleted collection", "identity", identity)
	return collection, true
}

// FindVariantsByName scans every collection for variants whose name
// equals name ignoring case. Results are ordered by identity.
func (c *Cache) FindVariantsByName(name string) []skin.Match {
	var matches []skin.Match
	for _, collection := range c.Collections() {
		for _, variant := range collection.FindByName(name) {
			matches = append(matches, skin.Match{Identity: collection.Identity(), Variant: variant})
		}
	}
	slices.SortStableFunc(matches, func(a, b skin.Match) int {
		return cmp.Compare(a.Identity, b.Identity)
	})
	return matches
}

// Collections returns the collections present at the time of the
// call. Later inserts and deletes do not affect the returned slice.
func (c *Cache) Collections() []*skin.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	collections := make([]*skin.Collection, 0, len(c.entries))
	for _, collection := range c.entries {
		collections = append(collections, collection)
	}
	return collections
}

// Unsigned returns the number of collections with at least one
// variant still waiting for a signature.
func (c *Cache) Unsigned() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	unsigned := 0
	for _, collection := range c.entries {
		if !collection.FullySigned() {
			unsigned++
		}
	}
	return unsigned
}

// ApplySignature signs the named variant of collection if collection
// is still the live entry for its identity, and marks the cache dirty
// on a real transition. It returns false when the identity was deleted
// or replaced, or the variant was already signed.
func (c *Cache) ApplySignature(collection *skin.Collection, name, payload, signature string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries[collection.Identity()] != collection {
		return false
	}
	if !collection.ApplySignature(name, payload, signature) {
		return false
	}
	c.dirty.Store(true)
	return true
}

// MarkDirty sets the dirty flag, e.g. after a failed snapshot.
func (c *Cache) MarkDirty() { c.dirty.Store(true) }

// TakeDirty clears the dirty flag and reports whether it was set.
func (c *Cache) TakeDirty() bool { return c.dirty.Swap(false) }

// Dirty reports the flag without clearing it.
func (c *Cache) Dirty() bool { return c.dirty.Load() }

// Len returns the number of collections.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
