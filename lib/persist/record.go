// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skinvault/skinvault/lib/codec"
	"github.com/skinvault/skinvault/lib/skin"
)

// recordVersion is the current layout of record.
const recordVersion = 1

// envelope wraps every CBOR record so the body can be compressed and
// the layout versioned.
type envelope struct {
	Version     uint8             `cbor:"1,keyasint"`
	Compression codec.Compression `cbor:"2,keyasint"`
	Size        int               `cbor:"3,keyasint"`
	Body        []byte            `cbor:"4,keyasint"`
}

type record struct {
	Identity string          `cbor:"identity"`
	Variants []variantRecord `cbor:"variants"`
}

type variantRecord struct {
	Name      string `cbor:"name"`
	Payload   string `cbor:"payload"`
	Signature string `cbor:"signature,omitempty"`
	Slim      bool   `cbor:"slim"`
}

// errMalformedRecord marks a stored record that cannot be decoded.
var errMalformedRecord = errors.New("malformed record")

// EncodeCollection serializes collection for the durable store.
func EncodeCollection(collection *skin.Collection, compression codec.Compression) ([]byte, error) {
	variants := collection.Variants()
	body := record{
		Identity: collection.Identity(),
		Variants: make([]variantRecord, len(variants)),
	}
	for index, variant := range variants {
		body.Variants[index] = variantRecord{
			Name:      variant.Name,
			Payload:   variant.Payload,
			Signature: variant.Signature,
			Slim:      variant.Slim,
		}
	}
	encoded, err := codec.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", collection.Identity(), err)
	}
	compressed, used, err := codec.Compress(encoded, compression)
	if err != nil {
		return nil, fmt.Errorf("compressing %s: %w", collection.Identity(), err)
	}
	return codec.Marshal(envelope{
		Version:     recordVersion,
		Compression: used,
		Size:        len(encoded),
		Body:        compressed,
	})
}

// DecodeCollection parses a stored record for identity. It accepts the
// CBOR envelope and the JSON array of variants written by earlier
// deployments.
func DecodeCollection(identity string, data []byte) (*skin.Collection, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return decodeLegacy(identity, trimmed)
	}

	var wrapper envelope
	if err := codec.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedRecord, err)
	}
	if wrapper.Version != recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errMalformedRecord, wrapper.Version)
	}
	encoded, err := codec.Decompress(wrapper.Body, wrapper.Compression, wrapper.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedRecord, err)
	}
	var body record
	if err := codec.Unmarshal(encoded, &body); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedRecord, err)
	}
	if body.Identity != identity {
		return nil, fmt.Errorf("%w: stored under %s but names %s", errMalformedRecord, identity, body.Identity)
	}

	variants := make([]skin.Variant, len(body.Variants))
	for index, variant := range body.Variants {
		variants[index] = skin.Variant{
			Name:      variant.Name,
			Payload:   variant.Payload,
			Signature: variant.Signature,
			Slim:      variant.Slim,
		}
	}
	return newCollection(identity, variants)
}

// decodeLegacy reads [{"name","value","signature","slim"}, ...].
func decodeLegacy(identity string, data []byte) (*skin.Collection, error) {
	var variants []skin.Variant
	if err := json.Unmarshal(data, &variants); err != nil {
		return nil, fmt.Errorf("%w: legacy JSON: %w", errMalformedRecord, err)
	}
	return newCollection(identity, variants)
}

func newCollection(identity string, variants []skin.Variant) (*skin.Collection, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: no variants", errMalformedRecord)
	}
	collection, err := skin.NewCollection(identity, variants)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedRecord, err)
	}
	return collection, nil
}
