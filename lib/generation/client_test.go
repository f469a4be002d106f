// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skinvault/skinvault/lib/skin"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestGenerateParsesVariants(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/abc-123" {
			t.Errorf("path = %q, want /abc-123", request.URL.Path)
		}
		if got := request.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		io.WriteString(writer, `{"slim":true,"data":{"helmet":"A","civilian":"B"}}`)
	})

	result, err := client.Generate(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Slim {
		t.Error("Slim = false")
	}
	if len(result.Payloads) != 2 || result.Payloads["helmet"] != "A" || result.Payloads["civilian"] != "B" {
		t.Errorf("Payloads = %v", result.Payloads)
	}
}

func TestGenerateMalformedResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"missing slim", http.StatusOK, `{"data":{"helmet":"A"}}`},
		{"missing data", http.StatusOK, `{"slim":false}`},
		{"empty data", http.StatusOK, `{"slim":false,"data":{}}`},
		{"non-string payload", http.StatusOK, `{"slim":false,"data":{"helmet":42}}`},
		{"empty payload", http.StatusOK, `{"slim":false,"data":{"helmet":""}}`},
		{"not json", http.StatusOK, `<html>`},
		{"client error", http.StatusNotFound, `no such player`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, func(writer http.ResponseWriter, _ *http.Request) {
				writer.WriteHeader(test.status)
				io.WriteString(writer, test.body)
			})
			_, err := client.Generate(context.Background(), "abc-123")
			if !errors.Is(err, skin.ErrMalformedResponse) {
				t.Fatalf("error = %v, want ErrMalformedResponse", err)
			}
			if errors.Is(err, skin.ErrUpstreamUnavailable) {
				t.Errorf("error %v also matches ErrUpstreamUnavailable", err)
			}
		})
	}
}

func TestGenerateServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, _ *http.Request) {
		http.Error(writer, "overloaded", http.StatusServiceUnavailable)
	})
	_, err := client.Generate(context.Background(), "abc-123")
	if !errors.Is(err, skin.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
	var apiError *APIError
	if !errors.As(err, &apiError) || apiError.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("errors.As(*APIError) failed for %v", err)
	}
}

func TestGenerateTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		select {
		case <-release:
		case <-request.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Generate(ctx, "abc-123")
	if !errors.Is(err, skin.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestGenerateUnreachableIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	address := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: address, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Generate(context.Background(), "abc-123"); !errors.Is(err, skin.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	for _, baseURL := range []string{"ftp://example.com", "localhost:8069", "http://"} {
		if _, err := NewClient(Config{BaseURL: baseURL}); err == nil {
			t.Errorf("NewClient(%q) succeeded", baseURL)
		}
	}
	client, err := NewClient(Config{})
	if err != nil {
		t.Fatalf("NewClient with defaults: %v", err)
	}
	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, DefaultBaseURL)
	}
}
