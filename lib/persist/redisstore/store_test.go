// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package redisstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/skinvault/skinvault/lib/cache"
	"github.com/skinvault/skinvault/lib/codec"
	"github.com/skinvault/skinvault/lib/persist"
)

func openTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	store, err := Open(context.Background(), Config{URL: "redis://" + server.Addr()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, server
}

func fieldCount(t *testing.T, server *miniredis.Miniredis) int {
	t.Helper()
	fields, err := server.HKeys(persist.DefaultBucket)
	if err != nil {
		t.Fatalf("HKeys: %v", err)
	}
	return len(fields)
}

func TestPutLoadDelete(t *testing.T) {
	store, server := openTestStore(t)
	ctx := context.Background()

	records := make(map[string][]byte)
	for index := range writeBatch + 10 {
		records[fmt.Sprintf("player-%04d", index)] = []byte{byte(index), 0x00, 0xff}
	}
	if err := store.PutAll(ctx, records); err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if got := fieldCount(t, server); got != len(records) {
		t.Fatalf("hash has %d fields, want %d", got, len(records))
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != len(records) {
		t.Fatalf("loaded %d records, want %d", len(loaded), len(records))
	}
	if string(loaded["player-0003"]) != string(records["player-0003"]) {
		t.Errorf("binary record altered: %x", loaded["player-0003"])
	}

	if err := store.Delete(ctx, "player-0000", "player-0001", "missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if server.HGet(persist.DefaultBucket, "player-0000") != "" {
		t.Error("player-0000 still stored")
	}
	if got := fieldCount(t, server); got != len(records)-2 {
		t.Errorf("hash has %d fields after delete, want %d", got, len(records)-2)
	}
}

func TestHydratesLegacyHash(t *testing.T) {
	store, server := openTestStore(t)
	server.HSet(persist.DefaultBucket, "abc-123", `[{"name":"helmet","signature":"sig-1","value":"B"},{"name":"civilian","value":"C"}]`)

	bridge, err := persist.New(persist.Config{Backend: store, Compression: codec.CompressionZstd})
	if err != nil {
		t.Fatalf("persist.New: %v", err)
	}
	target := cache.New(cache.Config{})
	result, err := bridge.Hydrate(context.Background(), target)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if result.Loaded != 1 {
		t.Fatalf("HydrateResult = %+v", result)
	}

	// A snapshot rewrites the field in the current format.
	if err := bridge.Snapshot(context.Background(), target); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if rewritten := server.HGet(persist.DefaultBucket, "abc-123"); len(rewritten) == 0 || rewritten[0] == '[' {
		t.Errorf("field not rewritten as CBOR: %q", rewritten)
	}
}

func TestOpenFailsWhenUnreachable(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	address := server.Addr()
	server.Close()
	if _, err := Open(context.Background(), Config{URL: "redis://" + address}); err == nil {
		t.Fatal("Open succeeded against a stopped server")
	}
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("Open succeeded without URL or client")
	}
}

func TestCustomBucketAndClient(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	store, err := Open(context.Background(), Config{Client: client, Bucket: "skins-staging"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if err := store.PutAll(context.Background(), map[string][]byte{"abc-123": []byte("x")}); err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if server.HGet("skins-staging", "abc-123") != "x" {
		t.Error("record not written to the configured bucket")
	}
}
