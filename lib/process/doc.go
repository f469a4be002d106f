// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the exit path shared by skinvault binaries:
// errors from run are reported on stderr and mapped to an exit code,
// with flag and configuration errors kept apart from runtime failures.
package process
