// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/skinvault/skinvault/lib/cache"
	"github.com/skinvault/skinvault/lib/codec"
	"github.com/skinvault/skinvault/lib/persist"
	"github.com/skinvault/skinvault/lib/skin"
)

func openTestStore(t *testing.T, path, bucket string) *Store {
	t.Helper()
	store, err := Open(Config{Path: path, Bucket: bucket})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutLoadDelete(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "skinvault.db"), "")
	ctx := context.Background()

	if err := store.PutAll(ctx, map[string][]byte{
		"abc-123": {0x01, 0x00, 0xff},
		"def-456": []byte("second"),
	}); err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if err := store.PutAll(ctx, map[string][]byte{"abc-123": []byte("updated")}); err != nil {
		t.Fatalf("PutAll overwrite: %v", err)
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(records) != 2 || string(records["abc-123"]) != "updated" || string(records["def-456"]) != "second" {
		t.Errorf("records = %q", records)
	}

	if err := store.Delete(ctx, "abc-123", "missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	records, _ = store.LoadAll(ctx)
	if _, ok := records["abc-123"]; ok || len(records) != 1 {
		t.Errorf("records after delete = %q", records)
	}
}

func TestBucketsAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	production := openTestStore(t, path, "skins")
	staging := openTestStore(t, path, "skins-staging")

	production.PutAll(context.Background(), map[string][]byte{"abc-123": []byte("prod")})
	records, err := staging.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("staging sees %d records from another bucket", len(records))
	}
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skinvault.db")
	ctx := context.Background()

	first, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	bridge, _ := persist.New(persist.Config{Backend: first, Compression: codec.CompressionZstd})
	source := cache.New(cache.Config{})
	collection, _ := skin.FromPayloads("abc-123", true, map[string]string{"helmet": "A", "civilian": "B"})
	collection.ApplySignature("helmet", "A2", "sig-1")
	source.Insert(collection)
	if err := bridge.Snapshot(ctx, source); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := openTestStore(t, path, "")
	restoredBridge, _ := persist.New(persist.Config{Backend: second})
	restored := cache.New(cache.Config{})
	result, err := restoredBridge.Hydrate(ctx, restored)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if result.Loaded != 1 {
		t.Fatalf("HydrateResult = %+v", result)
	}
	got, _ := restored.Get("abc-123")
	helmet, _ := got.Variant("helmet")
	if helmet.Signature != "sig-1" || !helmet.Slim {
		t.Errorf("helmet = %+v", helmet)
	}
}
