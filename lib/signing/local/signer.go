// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package local is an offline signing authority for development and
// tests. It normalizes the payload to padded standard base64 and signs
// it with an ed25519 key derived from a configured secret, so the same
// secret always yields the same key and verifiable signatures.
package local

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zeebo/blake3"

	"github.com/skinvault/skinvault/lib/signing"
)

// keyContext is the BLAKE3 derive-key context string. Changing it
// changes every derived key.
const keyContext = "skinvault 2026-01-01 local skin signing key v1"

// Config configures a Signer.
type Config struct {
	// Secret is the key material. Required.
	Secret string

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Signer is a signing.Signer that never touches the network.
type Signer struct {
	privateKey ed25519.PrivateKey
	logger     *slog.Logger
}

var _ signing.Signer = (*Signer)(nil)

// New derives the signing key from config.Secret.
func New(config Config) (*Signer, error) {
	if config.Secret == "" {
		return nil, errors.New("local signer: secret is required")
	}
	seed := make([]byte, ed25519.SeedSize)
	blake3.DeriveKey(keyContext, []byte(config.Secret), seed)

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Signer{privateKey: ed25519.NewKeyFromSeed(seed), logger: logger}, nil
}

// PublicKey returns the verification key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.privateKey.Public().(ed25519.PublicKey)
}

// Sign returns the canonical payload and a base64 ed25519 signature
// over it.
func (s *Signer) Sign(ctx context.Context, request signing.Request) (signing.Signed, error) {
	if err := ctx.Err(); err != nil {
		return signing.Signed{}, err
	}
	png, err := signing.DecodePayload(request.Payload)
	if err != nil {
		return signing.Signed{}, fmt.Errorf("local signer: %s/%s: %w", request.Identity, request.Name, err)
	}
	canonical := base64.StdEncoding.EncodeToString(png)
	signature := ed25519.Sign(s.privateKey, []byte(canonical))
	s.logger.Debug("signed variant locally", "identity", request.Identity, "variant", request.Name)
	return signing.Signed{
		Payload:   canonical,
		Signature: base64.StdEncoding.EncodeToString(signature),
	}, nil
}

// Verify checks a signature produced by Sign with the same secret.
func (s *Signer) Verify(payload, signature string) error {
	return Verify(s.PublicKey(), payload, signature)
}

// Verify checks signature over payload against publicKey.
func Verify(publicKey ed25519.PublicKey, payload, signature string) error {
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("local signer: signature is not base64: %w", err)
	}
	if !ed25519.Verify(publicKey, []byte(payload), raw) {
		return errors.New("local signer: signature mismatch")
	}
	return nil
}
