// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package signing defines the contract between the upload worker and
// a signing authority. Implementations live in subpackages: mineskin
// talks to the MineSkin API, local signs offline for development.
package signing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/skinvault/skinvault/lib/skin"
)

// Request is one variant to sign.
type Request struct {
	Identity string
	Name     string
	Payload  string
	Slim     bool
}

// RequestFor builds the request for variant of identity.
func RequestFor(identity string, variant skin.Variant) Request {
	return Request{
		Identity: identity,
		Name:     variant.Name,
		Payload:  variant.Payload,
		Slim:     variant.Slim,
	}
}

// Signed is the authority's answer: the canonical payload, which may
// differ from the submitted one, and its signature. Both are set.
type Signed struct {
	Payload   string
	Signature string
}

// Signer obtains signatures. Implementations must be safe for
// concurrent use and honour ctx cancellation.
//
// Errors satisfy errors.Is with skin.ErrUpstreamUnavailable (transport
// failure, timeout, server error) or skin.ErrMalformedResponse
// (unusable answer or rejected input). A *RateLimitError means the
// authority asked callers to hold off.
type Signer interface {
	Sign(ctx context.Context, request Request) (Signed, error)
}

// RateLimitError reports that the authority refuses requests until
// RetryAt. It unwraps to skin.ErrUpstreamUnavailable.
type RateLimitError struct {
	RetryAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("signing: rate limited until %s", e.RetryAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return skin.ErrUpstreamUnavailable }

// AsRateLimit returns the RateLimitError in err's chain, if any.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return rateLimit, true
	}
	return nil, false
}

// DecodePayload decodes a base64 PNG payload. Padded, unpadded and
// URL-safe alphabets are accepted since generators differ.
func DecodePayload(payload string) ([]byte, error) {
	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if decoded, err := encoding.DecodeString(payload); err == nil && len(decoded) > 0 {
			return decoded, nil
		}
	}
	return nil, fmt.Errorf("%w: payload is not base64", skin.ErrMalformedResponse)
}
