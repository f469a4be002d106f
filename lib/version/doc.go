// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information injected with -ldflags:
//
//	go build -ldflags "-X github.com/skinvault/skinvault/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
