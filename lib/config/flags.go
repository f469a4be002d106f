// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags is the command-line layer. Only flags given explicitly
// override the configuration.
type Flags struct {
	set *pflag.FlagSet

	// ConfigPath is the --config value.
	ConfigPath string

	address        string
	store          string
	redisURL       string
	sqlitePath     string
	compression    string
	signer         string
	generationURL  string
	uploadInterval time.Duration
	concurrency    int
	logFormat      string
	logLevel       string
}

// RegisterFlags adds skinvault's flags to set.
func RegisterFlags(set *pflag.FlagSet) *Flags {
	defaults := Default()
	flags := &Flags{set: set}

	set.StringVar(&flags.ConfigPath, "config", "", "configuration file (.yaml, .json or .jsonc); overrides SKINVAULT_CONFIG")
	set.StringVar(&flags.address, "addr", defaults.Server.Address, "HTTP listen address")
	set.StringVar(&flags.store, "store", "", "durable store: redis, sqlite or memory (default: redis when a Redis URL is set, else sqlite)")
	set.StringVar(&flags.redisURL, "redis-url", "", "Redis URL for the redis store")
	set.StringVar(&flags.sqlitePath, "sqlite-path", defaults.Store.SQLitePath, "database file for the sqlite store")
	set.StringVar(&flags.compression, "compression", defaults.Store.Compression, "record compression: none, lz4 or zstd")
	set.StringVar(&flags.signer, "signer", defaults.Signing.Signer, "signing authority: mineskin or local")
	set.StringVar(&flags.generationURL, "generation-url", defaults.Generation.URL, "generation service base address")
	set.DurationVar(&flags.uploadInterval, "upload-interval", defaults.Uploader.Interval.Std(), "upload worker tick interval")
	set.IntVar(&flags.concurrency, "upload-concurrency", defaults.Uploader.Concurrency, "signing attempts in flight")
	set.StringVar(&flags.logFormat, "log-format", defaults.Log.Format, "log format: auto, json or text")
	set.StringVar(&flags.logLevel, "log-level", defaults.Log.Level, "log level: debug, info, warn or error")
	return flags
}

// Apply copies every explicitly given flag into c.
func (f *Flags) Apply(c *Config) {
	apply := func(name string, set func()) {
		if flag := f.set.Lookup(name); flag != nil && flag.Changed {
			set()
		}
	}
	apply("addr", func() { c.Server.Address = f.address })
	apply("store", func() { c.Store.Backend = f.store })
	apply("redis-url", func() { c.Store.RedisURL = f.redisURL })
	apply("sqlite-path", func() { c.Store.SQLitePath = f.sqlitePath })
	apply("compression", func() { c.Store.Compression = f.compression })
	apply("signer", func() { c.Signing.Signer = f.signer })
	apply("generation-url", func() { c.Generation.URL = f.generationURL })
	apply("upload-interval", func() { c.Uploader.Interval = Duration(f.uploadInterval) })
	apply("upload-concurrency", func() { c.Uploader.Concurrency = f.concurrency })
	apply("log-format", func() { c.Log.Format = f.logFormat })
	apply("log-level", func() { c.Log.Level = f.logLevel })
}
