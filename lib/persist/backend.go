// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package persist

import (
	"context"
	"maps"
	"sync"
)

// DefaultBucket is the bucket name used by earlier deployments.
const DefaultBucket = "skins"

// Backend stores one encoded record per identity.
type Backend interface {
	// LoadAll returns every record.
	LoadAll(ctx context.Context) (map[string][]byte, error)

	// PutAll writes every record in records, overwriting existing
	// ones. Identities absent from records are left alone.
	PutAll(ctx context.Context, records map[string][]byte) error

	// Delete removes the records for identities. Missing identities
	// are not an error.
	Delete(ctx context.Context, identities ...string) error

	// Close releases connections.
	Close() error
}

// MemoryBackend is a Backend held in process memory. Failures can be
// injected with SetFailures.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string][]byte

	failLoad   error
	failPut    error
	failDelete error
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]byte)}
}

func (m *MemoryBackend) LoadAll(ctx context.Context) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad != nil {
		return nil, m.failLoad
	}
	return maps.Clone(m.records), nil
}

func (m *MemoryBackend) PutAll(ctx context.Context, records map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	for identity, record := range records {
		m.records[identity] = append([]byte(nil), record...)
	}
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, identities ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	for _, identity := range identities {
		delete(m.records, identity)
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// SetFailures makes LoadAll, PutAll and Delete return the given
// errors instead of acting. Nil restores normal behaviour.
func (m *MemoryBackend) SetFailures(load, put, remove error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad, m.failPut, m.failDelete = load, put, remove
}

// Record returns the stored bytes for identity.
func (m *MemoryBackend) Record(identity string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[identity]
	return record, ok
}

// Len returns the number of stored records.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
