// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/skinvault/skinvault/lib/cache"
	"github.com/skinvault/skinvault/lib/clock"
	"github.com/skinvault/skinvault/lib/codec"
	"github.com/skinvault/skinvault/lib/config"
	"github.com/skinvault/skinvault/lib/generation"
	"github.com/skinvault/skinvault/lib/persist"
	"github.com/skinvault/skinvault/lib/persist/redisstore"
	"github.com/skinvault/skinvault/lib/persist/sqlitestore"
	"github.com/skinvault/skinvault/lib/process"
	"github.com/skinvault/skinvault/lib/service"
	"github.com/skinvault/skinvault/lib/signing"
	"github.com/skinvault/skinvault/lib/signing/local"
	"github.com/skinvault/skinvault/lib/signing/mineskin"
	"github.com/skinvault/skinvault/lib/skinservice"
	"github.com/skinvault/skinvault/lib/uploader"
	"github.com/skinvault/skinvault/lib/version"
)

// finalSnapshotTimeout bounds the snapshot written on shutdown.
const finalSnapshotTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("skinvault", pflag.ContinueOnError)
	var showVersion bool
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flags := config.RegisterFlags(flagSet)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return process.Usage(err)
	}
	if showVersion {
		fmt.Printf("skinvault %s\n", version.Full())
		return nil
	}

	cfg, err := config.Load(flags.ConfigPath, os.LookupEnv)
	if err != nil {
		return process.Usage(err)
	}
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return process.Usage(fmt.Errorf("invalid configuration: %w", err))
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return process.Usage(err)
	}
	slog.SetDefault(logger)
	logger.Info("skinvault starting",
		"version", version.Info(),
		"store", cfg.StoreBackend(),
		"signer", cfg.Signing.Signer,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	compression, err := codec.ParseCompression(cfg.Store.Compression)
	if err != nil {
		return err
	}
	bridge, err := persist.New(persist.Config{
		Backend:       backend,
		Compression:   compression,
		RetryInterval: cfg.Store.RetryInterval.Std(),
		Logger:        logger.With("component", "persist"),
	})
	if err != nil {
		return err
	}

	generator, err := generation.NewClient(generation.Config{
		BaseURL:        cfg.Generation.URL,
		ConnectTimeout: cfg.Generation.ConnectTimeout.Std(),
		Logger:         logger.With("component", "generation"),
	})
	if err != nil {
		return err
	}
	skins := cache.New(cache.Config{
		Generator:       generator,
		Remover:         bridge,
		GenerateTimeout: cfg.Generation.Timeout.Std(),
		Logger:          logger.With("component", "cache"),
	})

	// The cache must be complete before the first request is served.
	hydrated, err := bridge.Hydrate(ctx, skins)
	if err != nil {
		return fmt.Errorf("loading durable store: %w", err)
	}
	logger.Info("durable store loaded",
		"collections", hydrated.Loaded,
		"malformed", hydrated.Malformed,
		"duplicates", hydrated.Duplicates,
	)

	signer, err := newSigner(cfg, logger)
	if err != nil {
		return err
	}
	jitter := cfg.Uploader.BackoffJitter
	if jitter == 0 {
		jitter = -1
	}
	worker, err := uploader.New(uploader.Config{
		Cache:  skins,
		Signer: signer,
		Persister: uploader.PersisterFunc(func(ctx context.Context) error {
			return bridge.Snapshot(ctx, skins)
		}),
		Interval:        cfg.Uploader.Interval.Std(),
		Concurrency:     cfg.Uploader.Concurrency,
		AttemptTimeout:  cfg.Uploader.AttemptTimeout.Std(),
		BackoffInitial:  cfg.Uploader.BackoffInitial.Std(),
		BackoffMax:      cfg.Uploader.BackoffMax.Std(),
		BackoffJitter:   jitter,
		SnapshotTimeout: cfg.Uploader.SnapshotTimeout.Std(),
		Logger:          logger.With("component", "uploader"),
	})
	if err != nil {
		return err
	}

	skinService, err := skinservice.New(skinservice.Config{
		Store:            skins,
		BatchConcurrency: cfg.Server.BatchConcurrency,
		Logger:           logger.With("component", "service"),
	})
	if err != nil {
		return err
	}
	realClock := clock.Real()
	routes := &handler{
		service: skinService,
		status: statusSource{
			collections:    skins.Len,
			unsigned:       skins.Unsigned,
			dirty:          skins.Dirty,
			pendingDeletes: bridge.Pending,
			uploader:       worker.Stats,
		},
		clock:     realClock,
		startedAt: realClock.Now(),
		logger:    logger.With("component", "http"),
	}
	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Server.Address,
		Handler:         routes.routes(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Std(),
		Logger:          logger.With("component", "http"),
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return worker.Run(groupCtx) })
	group.Go(func() error { return bridge.Run(groupCtx) })
	group.Go(func() error { return server.Serve(groupCtx) })
	runErr := group.Wait()

	if skins.TakeDirty() {
		snapshotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSnapshotTimeout)
		defer cancel()
		if err := bridge.Snapshot(snapshotCtx, skins); err != nil {
			logger.Error("final snapshot failed", "error", err)
		} else {
			logger.Info("final snapshot written", "collections", skins.Len())
		}
	}
	logger.Info("skinvault stopped")
	return runErr
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (persist.Backend, error) {
	backendLogger := logger.With("component", "store")
	switch cfg.StoreBackend() {
	case config.StoreRedis:
		store, err := redisstore.Open(ctx, redisstore.Config{
			URL:    cfg.Store.RedisURL,
			Bucket: cfg.Store.Bucket,
			Logger: backendLogger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreSQLite:
		store, err := sqlitestore.Open(sqlitestore.Config{
			Path:   cfg.Store.SQLitePath,
			Bucket: cfg.Store.Bucket,
			Logger: backendLogger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		logger.Warn("using the memory store; collections will not survive a restart")
		return persist.NewMemoryBackend(), nil
	}
}

func newSigner(cfg *config.Config, logger *slog.Logger) (signing.Signer, error) {
	signerLogger := logger.With("component", "signing")
	if cfg.Signing.Signer == config.SignerLocal {
		logger.Warn("using the local signer; signatures are not accepted by game clients")
		signer, err := local.New(local.Config{Secret: cfg.Signing.LocalSecret, Logger: signerLogger})
		if err != nil {
			return nil, err
		}
		return signer, nil
	}
	client, err := mineskin.NewClient(mineskin.Config{
		BaseURL:   cfg.Signing.MineSkin.URL,
		Key:       cfg.Signing.MineSkin.Key,
		UserAgent: cfg.Signing.MineSkin.UserAgent,
		Logger:    signerLogger,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
