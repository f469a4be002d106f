// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/skinvault/skinvault/lib/clock"
	"github.com/skinvault/skinvault/lib/skin"
	"github.com/skinvault/skinvault/lib/skinservice"
	"github.com/skinvault/skinvault/lib/uploader"
	"github.com/skinvault/skinvault/lib/version"
)

// maxRequestBody bounds POST /skin/add bodies.
const maxRequestBody = 1 << 20

// statusSource supplies the counters of GET /status.
type statusSource struct {
	collections    func() int
	unsigned       func() int
	dirty          func() bool
	pendingDeletes func() int
	uploader       func() uploader.Stats
}

// handler serves the HTTP routes.
type handler struct {
	service   *skinservice.Service
	status    statusSource
	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger
}

type statusResponse struct {
	Version        string         `json:"version"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	Collections    int            `json:"collections"`
	Unsigned       int            `json:"unsigned_collections"`
	Dirty          bool           `json:"dirty"`
	PendingDeletes int            `json:"pending_deletes"`
	Uploader       uploader.Stats `json:"uploader"`
}

type addResponse struct {
	Accepted int               `json:"accepted"`
	Failed   map[string]string `json:"failed"`
}

func (h *handler) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(h.logRequests)

	router.Get("/hello", h.hello)
	router.Get("/status", h.statusReport)
	router.Route("/skin", func(r chi.Router) {
		r.Get("/get/{id}", h.get)
		r.Put("/create/{id}", h.create)
		r.Post("/add", h.add)
		r.Delete("/delete/{id}", h.remove)
		r.Get("/get-all/{variant}", h.getAll)
	})
	return router
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := h.clock.Now()
		next.ServeHTTP(wrapped, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.Status(),
			"bytes", wrapped.BytesWritten(),
			"duration", h.clock.Now().Sub(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *handler) hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Hello from skinvault")
}

func (h *handler) statusReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Version:        version.Info(),
		UptimeSeconds:  int64(h.clock.Now().Sub(h.startedAt) / time.Second),
		Collections:    h.status.collections(),
		Unsigned:       h.status.unsigned(),
		Dirty:          h.status.dirty(),
		PendingDeletes: h.status.pendingDeletes(),
		Uploader:       h.status.uploader(),
	})
}

// get serves GET /skin/get/{id}. With ?create=true a missing
// collection is generated.
func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityParam(w, r)
	if !ok {
		return
	}
	create := r.URL.Query().Get("create") == "true"
	collection, err := h.service.Get(r.Context(), identity, create)
	if err != nil {
		h.writeError(w, identity, err)
		return
	}
	writeCollection(w, r, collection.Variants())
}

// create serves PUT /skin/create/{id}. A generation failure answers
// an empty list.
func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityParam(w, r)
	if !ok {
		return
	}
	collection, err := h.service.Generate(r.Context(), identity)
	if err != nil {
		h.writeEmpty(w, identity, err)
		return
	}
	writeCollection(w, r, collection.Variants())
}

// add serves POST /skin/add with a JSON array of identities.
func (h *handler) add(w http.ResponseWriter, r *http.Request) {
	var requested []string
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&requested); err != nil {
		http.Error(w, "body must be a JSON array of identities", http.StatusBadRequest)
		return
	}
	if len(requested) == 0 {
		writeJSON(w, http.StatusBadRequest, false)
		return
	}

	response := addResponse{Failed: make(map[string]string)}
	identities := make([]string, 0, len(requested))
	for _, raw := range requested {
		identity, err := canonicalIdentity(raw)
		if err != nil {
			response.Failed[raw] = err.Error()
			continue
		}
		identities = append(identities, identity)
	}

	result := h.service.GenerateBatch(r.Context(), identities)
	response.Accepted = len(result.Accepted)
	for identity, err := range result.Failed {
		response.Failed[identity] = failureReason(err)
	}
	writeJSON(w, http.StatusOK, response)
}

// remove serves DELETE /skin/delete/{id}. A miss is a bare 404.
func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityParam(w, r)
	if !ok {
		return
	}
	collection, err := h.service.Delete(r.Context(), identity)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, collection.Variants())
}

// getAll serves GET /skin/get-all/{variant}.
func (h *handler) getAll(w http.ResponseWriter, r *http.Request) {
	matches, err := h.service.ListVariants(chi.URLParam(r, "variant"))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	variants := make([]skin.Variant, 0, len(matches))
	for _, match := range matches {
		variants = append(variants, match.Variant)
	}
	writeJSON(w, http.StatusOK, variants)
}

func (h *handler) writeError(w http.ResponseWriter, identity string, err error) {
	switch {
	case errors.Is(err, skin.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case skin.IsMalformed(err), skin.IsUpstreamUnavailable(err):
		h.writeEmpty(w, identity, err)
	default:
		h.logger.Error("request failed", "identity", identity, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeEmpty answers a failed generation with an empty variant list.
func (h *handler) writeEmpty(w http.ResponseWriter, identity string, err error) {
	h.logger.Warn("generation failed", "identity", identity, "reason", failureReason(err), "error", err)
	writeJSON(w, http.StatusOK, []skin.Variant{})
}

func failureReason(err error) string {
	switch {
	case skin.IsMalformed(err):
		return "malformed generation response"
	case skin.IsUpstreamUnavailable(err):
		return "generation service unavailable"
	default:
		return err.Error()
	}
}

// identityParam reads and canonicalizes {id}, answering 400 itself
// when it is not a UUID.
func identityParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity, err := canonicalIdentity(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return identity, true
}

func canonicalIdentity(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid identity %q: not a UUID", raw)
	}
	return parsed.String(), nil
}

// writeCollection answers 304 when the client already holds the
// current state of the collection.
func writeCollection(w http.ResponseWriter, r *http.Request, variants []skin.Variant) {
	etag := collectionETag(variants)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, variants)
}

// collectionETag changes whenever any variant of the collection does,
// which in practice means whenever one is signed.
func collectionETag(variants []skin.Variant) string {
	hasher := blake3.New()
	for _, variant := range variants {
		hasher.Write([]byte(variant.Digest()))
	}
	return `"` + hex.EncodeToString(hasher.Sum(nil)[:16]) + `"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}
