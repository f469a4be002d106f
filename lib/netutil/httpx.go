// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds reads of HTTP response bodies from upstream
// services. Generation responses carry several base64 PNGs, so the
// limit is generous; it exists only to stop a misbehaving upstream
// from exhausting memory.
package netutil

import (
	"io"
	"strings"
)

// MaxResponseSize bounds every response body read: 32 MiB.
const MaxResponseSize int64 = 32 << 20

// maxErrorBody bounds the excerpt of an error body kept for messages.
const maxErrorBody = 512

// ReadResponse reads body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody returns a trimmed excerpt of an error response for use in
// error messages. Read errors are ignored.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody+1))
	excerpt := strings.TrimSpace(string(data))
	if len(data) > maxErrorBody {
		excerpt = strings.TrimSpace(string(data[:maxErrorBody])) + "..."
	}
	return excerpt
}
