// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package mineskin

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skinvault/skinvault/lib/clock"
	"github.com/skinvault/skinvault/lib/signing"
	"github.com/skinvault/skinvault/lib/skin"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x01}

func newTestClient(t *testing.T, key string, handler http.HandlerFunc) (*Client, *clock.FakeClock) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	fakeClock := clock.Fake(epoch)
	client, err := NewClient(Config{
		BaseURL:    server.URL,
		Key:        key,
		UserAgent:  "skinvault-test",
		HTTPClient: server.Client(),
		Clock:      fakeClock,
		Logger:     slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, fakeClock
}

func helmetRequest(slim bool) signing.Request {
	return signing.Request{
		Identity: "abc-123",
		Name:     "helmet",
		Payload:  base64.StdEncoding.EncodeToString(pngBytes),
		Slim:     slim,
	}
}

func TestSignUploadsMultipartForm(t *testing.T) {
	client, _ := newTestClient(t, "secret-key", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost || request.URL.Path != "/generate/upload" {
			t.Errorf("request = %s %s", request.Method, request.URL.Path)
		}
		if got := request.Header.Get("User-Agent"); got != "skinvault-test" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := request.Header.Get("Authorization"); got != "Bearer secret-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := request.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		for field, want := range map[string]string{"variant": "slim", "visibility": "0", "name": "helmet"} {
			if got := request.FormValue(field); got != want {
				t.Errorf("%s = %q, want %q", field, got, want)
			}
		}
		file, _, err := request.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		uploaded, _ := io.ReadAll(file)
		if string(uploaded) != string(pngBytes) {
			t.Errorf("uploaded %x, want %x", uploaded, pngBytes)
		}
		io.WriteString(writer, `{"data":{"texture":{"value":"B","signature":"sig-1"}}}`)
	})

	signed, err := client.Sign(context.Background(), helmetRequest(true))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed.Payload != "B" || signed.Signature != "sig-1" {
		t.Errorf("Sign = %+v", signed)
	}
}

func TestSignOmitsAuthorizationWithoutKey(t *testing.T) {
	client, _ := newTestClient(t, "", func(writer http.ResponseWriter, request *http.Request) {
		if got := request.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want none", got)
		}
		if got := request.FormValue("variant"); got != "classic" {
			t.Errorf("variant = %q, want classic", got)
		}
		io.WriteString(writer, `{"data":{"texture":{"value":"B","signature":"sig-1"}}}`)
	})
	if _, err := client.Sign(context.Background(), helmetRequest(false)); err != nil {
		t.Fatalf("Sign: %v", err)
	}
}

func TestSignRateLimitedHoldsWithoutNetwork(t *testing.T) {
	var calls atomic.Int32
	client, fakeClock := newTestClient(t, "", func(writer http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writer.Header().Set("Retry-After", "30")
		writer.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(writer, `{"error":"Too many requests"}`)
	})

	_, err := client.Sign(context.Background(), helmetRequest(false))
	rateLimit, ok := signing.AsRateLimit(err)
	if !ok {
		t.Fatalf("error = %v, want RateLimitError", err)
	}
	if want := epoch.Add(30 * time.Second); !rateLimit.RetryAt.Equal(want) {
		t.Errorf("RetryAt = %v, want %v", rateLimit.RetryAt, want)
	}

	fakeClock.Advance(10 * time.Second)
	if _, err := client.Sign(context.Background(), helmetRequest(false)); err == nil {
		t.Fatal("Sign during hold succeeded")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 while held", got)
	}

	fakeClock.Advance(20 * time.Second)
	client.Sign(context.Background(), helmetRequest(false))
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2 after hold expired", got)
	}
}

func TestRateLimitHintsFromBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want time.Time
	}{
		{"absolute next request", fmt.Sprintf(`{"nextRequest":%d}`, epoch.Add(45*time.Second).Unix()), epoch.Add(45 * time.Second)},
		{"relative next request", `{"nextRequest":5}`, epoch.Add(5 * time.Second)},
		{"delay", `{"delay":7}`, epoch.Add(7 * time.Second)},
		{"no hint", `{}`, epoch.Add(defaultHold)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client, _ := newTestClient(t, "", func(writer http.ResponseWriter, _ *http.Request) {
				writer.WriteHeader(http.StatusTooManyRequests)
				io.WriteString(writer, test.body)
			})
			_, err := client.Sign(context.Background(), helmetRequest(false))
			rateLimit, ok := signing.AsRateLimit(err)
			if !ok {
				t.Fatalf("error = %v, want RateLimitError", err)
			}
			if !rateLimit.RetryAt.Equal(test.want) {
				t.Errorf("RetryAt = %v, want %v", rateLimit.RetryAt, test.want)
			}
		})
	}
}

func TestSuccessNextRequestDelaysFollowingCall(t *testing.T) {
	var calls atomic.Int32
	client, fakeClock := newTestClient(t, "", func(writer http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		io.WriteString(writer, `{"data":{"texture":{"value":"B","signature":"sig-1"}},"nextRequest":3}`)
	})
	if _, err := client.Sign(context.Background(), helmetRequest(false)); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := client.Sign(context.Background(), helmetRequest(false)); err == nil {
		t.Fatal("second Sign before nextRequest succeeded")
	}
	fakeClock.Advance(3 * time.Second)
	if _, err := client.Sign(context.Background(), helmetRequest(false)); err != nil {
		t.Fatalf("Sign after nextRequest: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestSignErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusBadGateway, `upstream down`, skin.ErrUpstreamUnavailable},
		{"rejected image", http.StatusBadRequest, `{"error":"invalid image"}`, skin.ErrMalformedResponse},
		{"missing signature", http.StatusOK, `{"data":{"texture":{"value":"B"}}}`, skin.ErrMalformedResponse},
		{"not json", http.StatusOK, `<html>`, skin.ErrMalformedResponse},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client, _ := newTestClient(t, "", func(writer http.ResponseWriter, _ *http.Request) {
				writer.WriteHeader(test.status)
				io.WriteString(writer, test.body)
			})
			_, err := client.Sign(context.Background(), helmetRequest(false))
			if !errors.Is(err, test.want) {
				t.Fatalf("error = %v, want %v", err, test.want)
			}
			if _, limited := signing.AsRateLimit(err); limited {
				t.Errorf("error %v classified as rate limit", err)
			}
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := newAPIError(http.StatusBadRequest, []byte(`{"errors":[{"message":"bad skin dimensions"}]}`))
	if err.Message != "bad skin dimensions" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestSignRejectsNonBase64Payload(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, "", func(http.ResponseWriter, *http.Request) { calls.Add(1) })
	request := helmetRequest(false)
	request.Payload = "%%%"
	if _, err := client.Sign(context.Background(), request); !errors.Is(err, skin.ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
	if calls.Load() != 0 {
		t.Error("server called for an undecodable payload")
	}
}
