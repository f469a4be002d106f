// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"runtime failure", errors.New("listen tcp: address in use"), ExitFailure},
		{"usage", Usage(errors.New("unknown flag: --nope")), ExitUsage},
		{"wrapped usage", fmt.Errorf("loading config: %w", Usage(errors.New("bad key"))), ExitUsage},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ExitCode(test.err); got != test.want {
				t.Errorf("ExitCode = %d, want %d", got, test.want)
			}
		})
	}
}

func TestUsageKeepsCause(t *testing.T) {
	if Usage(nil) != nil {
		t.Error("Usage(nil) != nil")
	}
	cause := errors.New("store.backend: unknown value")
	err := Usage(cause)
	if !errors.Is(err, cause) {
		t.Error("UsageError does not unwrap to its cause")
	}
	if err.Error() != cause.Error() {
		t.Errorf("Error = %q, want %q", err.Error(), cause.Error())
	}
}

func TestReport(t *testing.T) {
	var out bytes.Buffer
	if code := Report(&out, errors.New("redis: connection refused")); code != ExitFailure {
		t.Errorf("code = %d, want %d", code, ExitFailure)
	}
	if got := out.String(); got != "error: redis: connection refused\n" {
		t.Errorf("output = %q", got)
	}

	out.Reset()
	if code := Report(&out, Usage(errors.New("unknown flag: --nope"))); code != ExitUsage {
		t.Errorf("code = %d, want %d", code, ExitUsage)
	}
	if !strings.Contains(out.String(), "--help") {
		t.Errorf("usage output lacks a --help hint: %q", out.String())
	}
}
