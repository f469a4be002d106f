// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package skinservice is the request surface over the generation
// cache: lookups, on-demand and bulk generation, deletes and
// cross-identity variant search. Transports (the HTTP handler in
// cmd/skinvault) translate its results and errors.
package skinservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/skinvault/skinvault/lib/skin"
)

// DefaultBatchConcurrency bounds concurrent generations in one batch.
const DefaultBatchConcurrency = 8

// Store is the part of *cache.Cache the service uses.
type Store interface {
	Get(identity string) (*skin.Collection, bool)
	GetOrCreate(ctx context.Context, identity string) (*skin.Collection, error)
	Delete(identity string) (*skin.Collection, bool)
	FindVariantsByName(name string) []skin.Match
}

// Config configures a Service.
type Config struct {
	// Store is required.
	Store Store

	// BatchConcurrency defaults to DefaultBatchConcurrency.
	BatchConcurrency int

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// BatchResult reports a GenerateBatch call. Every distinct requested
// identity appears in exactly one of the two fields.
type BatchResult struct {
	Accepted []string
	Failed   map[string]error
}

// Service is safe for concurrent use.
type Service struct {
	store            Store
	batchConcurrency int
	logger           *slog.Logger
}

// New returns a Service over config.Store.
func New(config Config) (*Service, error) {
	if config.Store == nil {
		return nil, errors.New("skinservice: Store is required")
	}
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = DefaultBatchConcurrency
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:            config.Store,
		batchConcurrency: config.BatchConcurrency,
		logger:           config.Logger,
	}, nil
}

// Get returns the collection for identity. With create set a missing
// collection is generated; otherwise a miss is skin.ErrNotFound.
func (s *Service) Get(ctx context.Context, identity string, create bool) (*skin.Collection, error) {
	if create {
		return s.Generate(ctx, identity)
	}
	collection, ok := s.store.Get(identity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", skin.ErrNotFound, identity)
	}
	return collection, nil
}

// Generate returns the existing collection or generates one. Calling
// it again for the same identity returns the same collection.
func (s *Service) Generate(ctx context.Context, identity string) (*skin.Collection, error) {
	collection, err := s.store.GetOrCreate(ctx, identity)
	if err != nil {
		s.logger.Warn("generation failed",
			"identity", identity,
			"malformed", skin.IsMalformed(err),
			"error", err,
		)
		return nil, err
	}
	return collection, nil
}

// GenerateBatch generates every identity with bounded concurrency.
// Failures are collected per identity and never stop the batch.
// Duplicate identities are generated once.
func (s *Service) GenerateBatch(ctx context.Context, identities []string) BatchResult {
	distinct := slices.Compact(slices.Sorted(slices.Values(identities)))

	var (
		mu     sync.Mutex
		result = BatchResult{Failed: make(map[string]error)}
	)
	var group errgroup.Group
	group.SetLimit(s.batchConcurrency)
	for _, identity := range distinct {
		group.Go(func() error {
			_, err := s.Generate(ctx, identity)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[identity] = err
			} else {
				result.Accepted = append(result.Accepted, identity)
			}
			return nil
		})
	}
	group.Wait()

	slices.Sort(result.Accepted)
	s.logger.Info("batch generation finished",
		"requested", len(distinct),
		"accepted", len(result.Accepted),
		"failed", len(result.Failed),
	)
	return result
}

// Delete removes the collection for identity and returns it. The
// durable copy is removed in the background. A miss is
// skin.ErrNotFound.
func (s *Service) Delete(ctx context.Context, identity string) (*skin.Collection, error) {
	collection, ok := s.store.Delete(identity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", skin.ErrNotFound, identity)
	}
	s.logger.Info("collection deleted", "identity", identity, "variants", collection.Len())
	return collection, nil
}

// ListVariants returns every variant named name, case-insensitively,
// across all identities. No match is skin.ErrNotFound.
func (s *Service) ListVariants(name string) ([]skin.Match, error) {
	matches := s.store.FindVariantsByName(name)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no variant named %q", skin.ErrNotFound, name)
	}
	return matches, nil
}
