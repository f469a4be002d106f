// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestReadResponse(t *testing.T) {
	data, err := ReadResponse(strings.NewReader(`{"slim":true}`))
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if string(data) != `{"slim":true}` {
		t.Errorf("got %q", data)
	}
	if _, err := ReadResponse(failReader{}); err == nil {
		t.Error("expected error from failing reader")
	}
}

func TestErrorBodyTruncates(t *testing.T) {
	if got := ErrorBody(strings.NewReader("  bad gateway \n")); got != "bad gateway" {
		t.Errorf("ErrorBody = %q", got)
	}
	long := bytes.Repeat([]byte("x"), maxErrorBody*2)
	got := ErrorBody(bytes.NewReader(long))
	if len(got) != maxErrorBody+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("ErrorBody length = %d, want %d with ellipsis", len(got), maxErrorBody+3)
	}
	if got := ErrorBody(failReader{}); got != "" {
		t.Errorf("ErrorBody on failing reader = %q", got)
	}
}
