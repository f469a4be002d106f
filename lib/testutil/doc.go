// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the wall-clock safety valves used by tests.
//
// Tests drive time through clock.Fake; the helpers here are the only
// place a real timeout appears, and only to turn a hang into a failure.
// All helpers call t.Fatalf rather than returning errors.
package testutil
