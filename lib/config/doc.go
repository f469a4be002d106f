// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads skinvault's configuration.
//
// Values are layered, each layer overriding the previous one:
//
//  1. [Default] returns working development defaults.
//  2. An optional file, named by --config or SKINVAULT_CONFIG. Files
//     ending in .json or .jsonc are JSON with comments and trailing
//     commas allowed; anything else is YAML. Unknown keys are errors.
//  3. Environment variables (see [Config.ApplyEnv]). The variable
//     names of earlier deployments are kept.
//  4. Command-line flags registered by [RegisterFlags], applied only
//     when given explicitly.
//
// [Config.Validate] checks the result and reports every problem at
// once.
//
// Key exports:
//
//   - [Config] -- master struct with Server, Generation, Signing,
//     Store, Uploader and Log sections
//   - [Load] -- defaults, file and environment in one call
//   - [Flags] -- the command-line layer
//   - [LogConfig.NewLogger] -- the process logger
package config
