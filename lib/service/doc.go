// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package service holds process scaffolding shared by skinvault
// binaries. HTTPServer owns a TCP listener and shuts it down
// gracefully when its context ends; the caller supplies the handler.
package service
