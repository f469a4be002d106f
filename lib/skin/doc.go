// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package skin defines the data shapes shared by every skinvault
// component: a [Variant] is one rendered appearance option for a
// player, and a [Collection] is the full set of variants owned by one
// identity.
//
// A Variant starts unsigned (empty Signature) and becomes signed once
// the signing authority returns a canonical payload and signature for
// it. The transition is one-way: [Collection.ApplySignature] refuses
// to touch a variant that is already signed, so no reader can observe
// a signature disappearing.
//
// Collections are shared between request handlers, the upload worker,
// and the durable store bridge. All access goes through methods that
// take the collection's lock and hand out copies; callers never hold a
// pointer into the variant slice.
package skin
