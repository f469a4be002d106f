// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Skinvault generates skin variants for player identities, has each
// one signed by a signing authority in the background, and keeps the
// result available over HTTP across restarts.
//
// On startup the durable store (Redis, SQLite, or memory for local
// experiments) is loaded into the cache before the HTTP listener
// opens. Three loops then run until SIGINT or SIGTERM: the HTTP
// server, the upload worker, and the delete drain of the store bridge.
// On the way out a last snapshot is written if anything changed since
// the previous one.
//
// # Routes
//
//	GET    /skin/get/{id}[?create=true]  collection, 404 when absent
//	PUT    /skin/create/{id}             collection, generated on demand
//	POST   /skin/add                     bulk generation of a JSON id list
//	DELETE /skin/delete/{id}             removed collection, 404 when absent
//	GET    /skin/get-all/{variant}       every variant with that name
//	GET    /hello                        liveness
//	GET    /status                       cache, store and worker counters
//
// A generation failure on either creating route answers an empty list.
// Identities are UUIDs, dashed or not; they are stored in the dashed
// lower-case form.
package main
