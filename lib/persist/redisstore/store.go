// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package redisstore keeps records in one Redis hash: the bucket name
// is the key, identities are fields, encoded records are values. This
// is the layout earlier deployments used, so an existing "skins" hash
// is read as is.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/skinvault/skinvault/lib/persist"
)

// writeBatch caps the fields per HSET so one huge snapshot does not
// become one huge command.
const writeBatch = 256

// Config configures a Store.
type Config struct {
	// URL is a redis:// or rediss:// URL. Required unless Client is
	// set.
	URL string

	// Client overrides URL, e.g. for tests against miniredis.
	Client *redis.Client

	// Bucket defaults to persist.DefaultBucket.
	Bucket string

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Store is a persist.Backend on a Redis hash.
type Store struct {
	client *redis.Client
	bucket string
	logger *slog.Logger
}

var _ persist.Backend = (*Store)(nil)

// Open connects and pings the server so misconfiguration fails at
// startup rather than at the first snapshot.
func Open(ctx context.Context, config Config) (*Store, error) {
	client := config.Client
	if client == nil {
		if config.URL == "" {
			return nil, errors.New("redisstore: URL is required")
		}
		options, err := redis.ParseURL(config.URL)
		if err != nil {
			return nil, fmt.Errorf("redisstore: parsing URL: %w", err)
		}
		client = redis.NewClient(options)
	}
	bucket := config.Bucket
	if bucket == "" {
		bucket = persist.DefaultBucket
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", client.Options().Addr, err)
	}
	logger.Info("redis store connected", "address", client.Options().Addr, "bucket", bucket)
	return &Store{client: client, bucket: bucket, logger: logger}, nil
}

// LoadAll reads the whole hash with HGETALL.
func (s *Store) LoadAll(ctx context.Context) (map[string][]byte, error) {
	fields, err := s.client.HGetAll(ctx, s.bucket).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: HGETALL %s: %w", s.bucket, err)
	}
	records := make(map[string][]byte, len(fields))
	for identity, value := range fields {
		records[identity] = []byte(value)
	}
	return records, nil
}

// PutAll writes records with pipelined HSET commands. The pipeline is
// not a transaction; a failure part way leaves earlier batches
// written.
func (s *Store) PutAll(ctx context.Context, records map[string][]byte) error {
	if len(records) == 0 {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		batch := make([]any, 0, 2*writeBatch)
		for identity, record := range records {
			batch = append(batch, identity, record)
			if len(batch) == cap(batch) {
				pipe.HSet(ctx, s.bucket, batch...)
				batch = make([]any, 0, 2*writeBatch)
			}
		}
		if len(batch) > 0 {
			pipe.HSet(ctx, s.bucket, batch...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: HSET %s (%d records): %w", s.bucket, len(records), err)
	}
	return nil
}

// Delete removes fields with HDEL.
func (s *Store) Delete(ctx context.Context, identities ...string) error {
	if len(identities) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.bucket, identities...).Err(); err != nil {
		return fmt.Errorf("redisstore: HDEL %s: %w", s.bucket, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
