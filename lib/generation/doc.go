// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package generation is the client for the skin generation service.
//
// The service answers GET {base}/{identity} with the body-model flag
// and a mapping of variant name to base64 PNG:
//
//	{"slim": false, "data": {"helmet": "iVBORw0...", "civilian": "..."}}
//
// Variant names are whatever the service returns. Every failure is
// classified as one of two sentinels from package skin so callers can
// branch with errors.Is: skin.ErrUpstreamUnavailable for transport
// errors, timeouts and 5xx responses, and skin.ErrMalformedResponse
// for any response that cannot become a collection.
package generation
