// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package skin

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable means the generation or signing service
	// could not be reached: transport failure, timeout, or a 5xx
	// response.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedResponse means an upstream answered but the response
	// is missing required fields.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrNotFound means no collection exists for the identity and
	// creation was not requested.
	ErrNotFound = errors.New("collection not found")

	// ErrDuplicateRace means an insert found the identity already
	// occupied. The cache resolves this by keeping the existing
	// collection; the error is visible only to code that inserts
	// directly (hydration).
	ErrDuplicateRace = errors.New("collection already exists")
)

// GenerationError reports a failed attempt to generate the collection
// for one identity. Err is ErrUpstreamUnavailable or
// ErrMalformedResponse, possibly wrapping the underlying cause.
type GenerationError struct {
	Identity string
	Err      error
}

func (err *GenerationError) Error() string {
	return fmt.Sprintf("generating skins for %s: %v", err.Identity, err.Err)
}

func (err *GenerationError) Unwrap() error {
	return err.Err
}

// IsUpstreamUnavailable reports whether err was caused by an
// unreachable upstream.
func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// IsMalformed reports whether err was caused by an incomplete upstream
// response.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
