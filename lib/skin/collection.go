// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package skin

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Collection is the set of variants owned by one identity. It is safe
// for concurrent use. Variant order is the order given at construction.
type Collection struct {
	identity string

	mu       sync.RWMutex
	variants []Variant
}

// NewCollection validates variants and builds a collection for
// identity. Names must be non-empty and unique, payloads non-empty.
// The slice is copied.
func NewCollection(identity string, variants []Variant) (*Collection, error) {
	if identity == "" {
		return nil, fmt.Errorf("skin: identity is required")
	}
	seen := make(map[string]struct{}, len(variants))
	for _, variant := range variants {
		if variant.Name == "" {
			return nil, fmt.Errorf("skin: variant with empty name for %s", identity)
		}
		if variant.Payload == "" {
			return nil, fmt.Errorf("skin: variant %q for %s has empty payload", variant.Name, identity)
		}
		if _, duplicate := seen[variant.Name]; duplicate {
			return nil, fmt.Errorf("skin: duplicate variant name %q for %s", variant.Name, identity)
		}
		seen[variant.Name] = struct{}{}
	}
	return &Collection{
		identity: identity,
		variants: append([]Variant(nil), variants...),
	}, nil
}

// FromPayloads builds an unsigned collection from a name->payload
// mapping as returned by the generation service. Variants are ordered
// by name so repeated generations produce stable output.
func FromPayloads(identity string, slim bool, payloads map[string]string) (*Collection, error) {
	names := make([]string, 0, len(payloads))
	for name := range payloads {
		names = append(names, name)
	}
	sort.Strings(names)

	variants := make([]Variant, 0, len(names))
	for _, name := range names {
		variants = append(variants, Variant{
			Name:    name,
			Payload: payloads[name],
			Slim:    slim,
		})
	}
	return NewCollection(identity, variants)
}

// Identity returns the owning identity.
func (c *Collection) Identity() string {
	return c.identity
}

// Variants returns a copy of every variant.
func (c *Collection) Variants() []Variant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Variant(nil), c.variants...)
}

// Len returns the number of variants.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.variants)
}

// Variant returns a copy of the named variant.
func (c *Collection) Variant(name string) (Variant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, variant := range c.variants {
		if variant.Name == name {
			return variant, true
		}
	}
	return Variant{}, false
}

// Unsigned returns copies of the variants still waiting for a
// signature.
func (c *Collection) Unsigned() []Variant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var unsigned []Variant
	for _, variant := range c.variants {
		if !variant.Signed() {
			unsigned = append(unsigned, variant)
		}
	}
	return unsigned
}

// FullySigned reports whether every variant carries a signature.
func (c *Collection) FullySigned() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, variant := range c.variants {
		if !variant.Signed() {
			return false
		}
	}
	return true
}

// ApplySignature replaces the named variant's payload with the
// canonical payload and records signature, as one step. It returns
// false without changing anything when the variant does not exist, is
// already signed, or signature or payload is empty.
func (c *Collection) ApplySignature(name, payload, signature string) bool {
	if payload == "" || signature == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for index := range c.variants {
		variant := &c.variants[index]
		if variant.Name != name {
			continue
		}
		if variant.Signed() {
			return false
		}
		variant.Payload = payload
		variant.Signature = signature
		return true
	}
	return false
}

// FindByName returns copies of variants whose name matches name
// case-insensitively.
func (c *Collection) FindByName(name string) []Variant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var matches []Variant
	for _, variant := range c.variants {
		if strings.EqualFold(variant.Name, name) {
			matches = append(matches, variant)
		}
	}
	return matches
}
