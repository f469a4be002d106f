// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/skinvault/skinvault/lib/codec"
)

// Store backends.
const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Signers.
const (
	SignerMineSkin = "mineskin"
	SignerLocal    = "local"
)

// Config is the master configuration for skinvault.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Signing    SigningConfig    `yaml:"signing" json:"signing"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Uploader   UploaderConfig   `yaml:"uploader" json:"uploader"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Address to listen on. Default: :8080
	Address string `yaml:"address" json:"address"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// BatchConcurrency bounds generations per bulk request. Default: 8
	BatchConcurrency int `yaml:"batch_concurrency" json:"batch_concurrency"`
}

// GenerationConfig configures the generation service client.
type GenerationConfig struct {
	// URL is the service base address. Default: http://localhost:8069
	URL string `yaml:"url" json:"url"`

	// ConnectTimeout bounds connection setup. Default: 15s
	ConnectTimeout Duration `yaml:"connect_timeout" json:"connect_timeout"`

	// Timeout bounds one generation call. Default: 30s
	Timeout Duration `yaml:"timeout" json:"timeout"`
}

// SigningConfig selects and configures the signing authority.
type SigningConfig struct {
	// Signer is "mineskin" or "local". Default: mineskin
	Signer string `yaml:"signer" json:"signer"`

	MineSkin MineSkinConfig `yaml:"mineskin" json:"mineskin"`

	// LocalSecret is the key material of the local signer.
	LocalSecret string `yaml:"local_secret" json:"local_secret"`
}

// MineSkinConfig configures the MineSkin client.
type MineSkinConfig struct {
	// URL defaults to https://api.mineskin.org
	URL string `yaml:"url" json:"url"`

	// Key is the API key, sent as a bearer token when set.
	Key string `yaml:"key" json:"key"`

	// UserAgent defaults to SkinToolApi.
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// StoreConfig configures durable storage.
type StoreConfig struct {
	// Backend is "redis", "sqlite" or "memory". Empty selects redis
	// when RedisURL is set and sqlite otherwise.
	Backend string `yaml:"backend" json:"backend"`

	// RedisURL is a redis:// or rediss:// URL.
	RedisURL string `yaml:"redis_url" json:"redis_url"`

	// SQLitePath is the database file. Default: data/skinvault.db
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`

	// Bucket names the hash or table partition. Default: skins
	Bucket string `yaml:"bucket" json:"bucket"`

	// Compression is "none", "lz4" or "zstd". Default: zstd
	Compression string `yaml:"compression" json:"compression"`

	// RetryInterval between attempts to drain failed deletes. Default: 5s
	RetryInterval Duration `yaml:"retry_interval" json:"retry_interval"`
}

// UploaderConfig configures the upload worker.
type UploaderConfig struct {
	Interval        Duration `yaml:"interval" json:"interval"`
	Concurrency     int      `yaml:"concurrency" json:"concurrency"`
	AttemptTimeout  Duration `yaml:"attempt_timeout" json:"attempt_timeout"`
	BackoffInitial  Duration `yaml:"backoff_initial" json:"backoff_initial"`
	BackoffMax      Duration `yaml:"backoff_max" json:"backoff_max"`
	BackoffJitter   float64  `yaml:"backoff_jitter" json:"backoff_jitter"`
	SnapshotTimeout Duration `yaml:"snapshot_timeout" json:"snapshot_timeout"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:          ":8080",
			ShutdownTimeout:  Duration(10 * time.Second),
			BatchConcurrency: 8,
		},
		Generation: GenerationConfig{
			URL:            "http://localhost:8069",
			ConnectTimeout: Duration(15 * time.Second),
			Timeout:        Duration(30 * time.Second),
		},
		Signing: SigningConfig{
			Signer: SignerMineSkin,
			MineSkin: MineSkinConfig{
				URL:       "https://api.mineskin.org",
				UserAgent: "SkinToolApi",
			},
			LocalSecret: "skinvault-dev",
		},
		Store: StoreConfig{
			SQLitePath:    filepath.Join("data", "skinvault.db"),
			Bucket:        "skins",
			Compression:   "zstd",
			RetryInterval: Duration(5 * time.Second),
		},
		Uploader: UploaderConfig{
			Interval:        Duration(time.Second),
			Concurrency:     4,
			AttemptTimeout:  Duration(30 * time.Second),
			BackoffInitial:  Duration(time.Second),
			BackoffMax:      Duration(time.Minute),
			BackoffJitter:   0.2,
			SnapshotTimeout: Duration(30 * time.Second),
		},
		Log: LogConfig{
			Format: LogFormatAuto,
			Level:  "info",
		},
	}
}

// Load returns the defaults overlaid with the file at path and the
// environment. An empty path falls back to SKINVAULT_CONFIG; with
// neither set no file is read. lookup is usually os.LookupEnv.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path == "" {
		path, _ = lookup("SKINVAULT_CONFIG")
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the file at path into c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		err = decoder.Decode(c)
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		err = decoder.Decode(c)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// StoreBackend returns the backend in effect, resolving an empty
// Store.Backend.
func (c *Config) StoreBackend() string {
	if c.Store.Backend != "" {
		return c.Store.Backend
	}
	if c.Store.RedisURL != "" {
		return StoreRedis
	}
	return StoreSQLite
}

// Validate checks the configuration and reports every error found.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	if c.Server.BatchConcurrency <= 0 {
		errs = append(errs, errors.New("server.batch_concurrency must be positive"))
	}

	if parsed, err := url.Parse(c.Generation.URL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("generation.url %q is not an absolute URL", c.Generation.URL))
	}

	switch c.Signing.Signer {
	case SignerMineSkin:
		if parsed, err := url.Parse(c.Signing.MineSkin.URL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("signing.mineskin.url %q is not an absolute URL", c.Signing.MineSkin.URL))
		}
	case SignerLocal:
		if c.Signing.LocalSecret == "" {
			errs = append(errs, errors.New("signing.local_secret is required for the local signer"))
		}
	default:
		errs = append(errs, fmt.Errorf("signing.signer must be %q or %q, got %q", SignerMineSkin, SignerLocal, c.Signing.Signer))
	}

	switch c.StoreBackend() {
	case StoreRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis backend"))
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite backend"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store.backend must be redis, sqlite or memory, got %q", c.Store.Backend))
	}
	if _, err := codec.ParseCompression(c.Store.Compression); err != nil {
		errs = append(errs, fmt.Errorf("store.compression: %w", err))
	}

	if c.Uploader.Interval <= 0 {
		errs = append(errs, errors.New("uploader.interval must be positive"))
	}
	if c.Uploader.Concurrency <= 0 {
		errs = append(errs, errors.New("uploader.concurrency must be positive"))
	}
	if c.Uploader.BackoffMax < c.Uploader.BackoffInitial {
		errs = append(errs, errors.New("uploader.backoff_max is smaller than uploader.backoff_initial"))
	}
	if c.Uploader.BackoffJitter < 0 || c.Uploader.BackoffJitter >= 1 {
		errs = append(errs, errors.New("uploader.backoff_jitter must be in [0, 1)"))
	}

	if err := c.Log.validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Duration is a time.Duration written as a Go duration string ("30s")
// in configuration files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
