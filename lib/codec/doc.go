// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the binary encodings used for durable records:
// a deterministic CBOR mode and block compression.
//
// JSON stays the format of every external interface (the generation
// service, the signing service, the HTTP surface). CBOR is used only
// for what the process writes for itself. The encoder uses Core
// Deterministic Encoding (RFC 8949 section 4.2), so one logical value
// always yields the same bytes and an unchanged collection rewrites
// an identical record.
//
// Compression is chosen per record by a Compression tag stored next to
// the payload. Compress falls back to CompressionNone when the chosen
// algorithm would not shrink the input.
package codec
