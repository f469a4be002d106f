// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"strconv"
)

// envBinding maps one environment variable onto the configuration.
type envBinding struct {
	name  string
	apply func(c *Config, value string) error
}

func setString(field func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, value string) error {
		*field(c) = value
		return nil
	}
}

func setDuration(field func(c *Config) *Duration) func(*Config, string) error {
	return func(c *Config, value string) error {
		return field(c).UnmarshalText([]byte(value))
	}
}

func setInt(field func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*field(c) = parsed
		return nil
	}
}

// envBindings lists every recognised variable. The first five names
// are the ones earlier deployments used.
var envBindings = []envBinding{
	{"SKIN_TOOL_PYTHON_URI", setString(func(c *Config) *string { return &c.Generation.URL })},
	{"MINESKIN_KEY", setString(func(c *Config) *string { return &c.Signing.MineSkin.Key })},
	{"MINESKIN_USR_AGENT", setString(func(c *Config) *string { return &c.Signing.MineSkin.UserAgent })},
	{"MINESKIN_URI", setString(func(c *Config) *string { return &c.Signing.MineSkin.URL })},
	{"REDIS_URI", setString(func(c *Config) *string { return &c.Store.RedisURL })},
	{"SKINVAULT_SIGNER", setString(func(c *Config) *string { return &c.Signing.Signer })},
	{"SKINVAULT_LOCAL_SIGNING_SECRET", setString(func(c *Config) *string { return &c.Signing.LocalSecret })},
	{"SKINVAULT_STORE", setString(func(c *Config) *string { return &c.Store.Backend })},
	{"SKINVAULT_SQLITE_PATH", setString(func(c *Config) *string { return &c.Store.SQLitePath })},
	{"SKINVAULT_BUCKET", setString(func(c *Config) *string { return &c.Store.Bucket })},
	{"SKINVAULT_COMPRESSION", setString(func(c *Config) *string { return &c.Store.Compression })},
	{"SKINVAULT_ADDR", setString(func(c *Config) *string { return &c.Server.Address })},
	{"SKINVAULT_UPLOAD_INTERVAL", setDuration(func(c *Config) *Duration { return &c.Uploader.Interval })},
	{"SKINVAULT_UPLOAD_CONCURRENCY", setInt(func(c *Config) *int { return &c.Uploader.Concurrency })},
	{"SKINVAULT_LOG_FORMAT", setString(func(c *Config) *string { return &c.Log.Format })},
	{"SKINVAULT_LOG_LEVEL", setString(func(c *Config) *string { return &c.Log.Level })},
}

// ApplyEnv overrides c with every recognised variable that lookup
// finds set and non-empty. IPFS_HOST, read by earlier deployments, is
// not recognised and has no effect.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	for _, binding := range envBindings {
		value, ok := lookup(binding.name)
		if !ok || value == "" {
			continue
		}
		if err := binding.apply(c, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", binding.name, err))
		}
	}
	return errors.Join(errs...)
}
