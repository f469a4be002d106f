// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package skin

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// Variant is one named appearance option.
type Variant struct {
	// Name is unique within the owning collection ("helmet",
	// "civilian", ...). The set of names comes from the generation
	// service and is not fixed.
	Name string `json:"name"`

	// Payload is the base64-encoded PNG skin image. Before signing it
	// is the generator's output; after signing it is the canonical
	// payload returned by the signing authority.
	Payload string `json:"value"`

	// Signature is the authority's signature over Payload. Empty
	// means the variant has not been signed yet; JSON carries that as
	// null.
	Signature string `json:"signature"`

	// Slim selects the slim (3px arm) body model instead of classic.
	// Every variant produced by one generation shares the same value.
	Slim bool `json:"slim"`
}

// Signed reports whether the signing authority has signed this variant.
func (v Variant) Signed() bool {
	return v.Signature != ""
}

// MarshalJSON writes the signature of an unsigned variant as null.
func (v Variant) MarshalJSON() ([]byte, error) {
	type wire struct {
		Name      string  `json:"name"`
		Payload   string  `json:"value"`
		Signature *string `json:"signature"`
		Slim      bool    `json:"slim"`
	}
	out := wire{Name: v.Name, Payload: v.Payload, Slim: v.Slim}
	if v.Signed() {
		out.Signature = &v.Signature
	}
	return json.Marshal(out)
}

// Digest returns a hex BLAKE3-256 digest over the variant's payload
// and signature. Two reads of the same variant return the same digest
// until the variant is signed, which makes it usable as an HTTP ETag
// component.
func (v Variant) Digest() string {
	hasher := blake3.New()
	hasher.Write([]byte(v.Name))
	hasher.Write([]byte{0})
	hasher.Write([]byte(v.Payload))
	hasher.Write([]byte{0})
	hasher.Write([]byte(v.Signature))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Match is a variant found by a cross-collection search, tagged with
// the identity that owns it.
type Match struct {
	Identity string  `json:"identity"`
	Variant  Variant `json:"variant"`
}
