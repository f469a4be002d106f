// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package skinservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/skinvault/skinvault/lib/cache"
	"github.com/skinvault/skinvault/lib/generation"
	"github.com/skinvault/skinvault/lib/skin"
)

type generatorFunc func(ctx context.Context, identity string) (generation.Result, error)

func (f generatorFunc) Generate(ctx context.Context, identity string) (generation.Result, error) {
	return f(ctx, identity)
}

// newTestService generates two variants per identity. Identities
// starting with "bad" fail as unavailable.
func newTestService(t *testing.T) (*Service, *cache.Cache, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	store := cache.New(cache.Config{
		Generator: generatorFunc(func(ctx context.Context, identity string) (generation.Result, error) {
			calls.Add(1)
			if strings.HasPrefix(identity, "bad") {
				return generation.Result{}, fmt.Errorf("%w: connection refused", skin.ErrUpstreamUnavailable)
			}
			return generation.Result{Payloads: map[string]string{"helmet": "H-" + identity, "civilian": "C-" + identity}}, nil
		}),
	})
	service, err := New(Config{Store: store, BatchConcurrency: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return service, store, &calls
}

func TestGetWithoutCreateIsNotFound(t *testing.T) {
	service, _, calls := newTestService(t)
	_, err := service.Get(context.Background(), "abc-123", false)
	if !errors.Is(err, skin.ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
	if calls.Load() != 0 {
		t.Errorf("generator called %d times", calls.Load())
	}
}

func TestGetWithCreateGeneratesOnce(t *testing.T) {
	service, _, calls := newTestService(t)
	ctx := context.Background()

	first, err := service.Get(ctx, "abc-123", true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := service.Generate(ctx, "abc-123")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	third, err := service.Get(ctx, "abc-123", false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second || second != third {
		t.Error("repeated calls returned different collections")
	}
	if calls.Load() != 1 {
		t.Errorf("generator called %d times, want 1", calls.Load())
	}
}

func TestGenerateReportsUpstreamFailure(t *testing.T) {
	service, store, _ := newTestService(t)
	_, err := service.Generate(context.Background(), "bad-1")
	if !skin.IsUpstreamUnavailable(err) {
		t.Fatalf("Generate = %v, want upstream unavailable", err)
	}
	if _, ok := store.Get("bad-1"); ok {
		t.Error("failed generation inserted an entry")
	}
}

func TestGenerateBatchCollectsPartialFailures(t *testing.T) {
	service, store, calls := newTestService(t)

	result := service.GenerateBatch(context.Background(), []string{"id-2", "bad-1", "id-1", "id-2", "bad-2"})

	if got := strings.Join(result.Accepted, ","); got != "id-1,id-2" {
		t.Errorf("Accepted = %s, want id-1,id-2", got)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("Failed = %v, want bad-1 and bad-2", result.Failed)
	}
	for _, identity := range []string{"bad-1", "bad-2"} {
		if !skin.IsUpstreamUnavailable(result.Failed[identity]) {
			t.Errorf("Failed[%s] = %v", identity, result.Failed[identity])
		}
	}
	if calls.Load() != 4 {
		t.Errorf("generator called %d times, want 4 (duplicates collapsed)", calls.Load())
	}
	if _, ok := store.Get("id-1"); !ok {
		t.Error("id-1 missing after batch")
	}
}

func TestGenerateBatchEmpty(t *testing.T) {
	service, _, _ := newTestService(t)
	result := service.GenerateBatch(context.Background(), nil)
	if len(result.Accepted) != 0 || len(result.Failed) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestDelete(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()
	created, _ := service.Generate(ctx, "abc-123")

	removed, err := service.Delete(ctx, "abc-123")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed != created {
		t.Error("Delete returned a different collection")
	}
	if _, ok := store.Get("abc-123"); ok {
		t.Error("collection still cached")
	}
	if _, err := service.Delete(ctx, "abc-123"); !errors.Is(err, skin.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestListVariants(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()
	service.Generate(ctx, "id-1")
	service.Generate(ctx, "id-2")

	matches, err := service.ListVariants("HELMET")
	if err != nil {
		t.Fatalf("ListVariants: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	for _, match := range matches {
		if match.Variant.Payload != "H-"+match.Identity {
			t.Errorf("match %s has payload %q", match.Identity, match.Variant.Payload)
		}
	}

	if _, err := service.ListVariants("zombie"); !errors.Is(err, skin.ErrNotFound) {
		t.Errorf("ListVariants(zombie) = %v, want ErrNotFound", err)
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error")
	}
}
