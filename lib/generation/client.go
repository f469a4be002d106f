// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skinvault/skinvault/lib/netutil"
	"github.com/skinvault/skinvault/lib/skin"
)

// DefaultBaseURL is where the generation service listens when nothing
// is configured.
const DefaultBaseURL = "http://localhost:8069"

// DefaultConnectTimeout bounds establishing a connection.
const DefaultConnectTimeout = 15 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient overrides the client built from ConnectTimeout.
	HTTPClient *http.Client

	// ConnectTimeout defaults to DefaultConnectTimeout. Ignored when
	// HTTPClient is set. Whole-call deadlines come from the context.
	ConnectTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is one successful generation.
type Result struct {
	Slim     bool
	Payloads map[string]string
}

// Client calls the generation service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates config and returns a Client.
func NewClient(config Config) (*Client, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("generation: invalid base URL %q", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		connectTimeout := config.ConnectTimeout
		if connectTimeout <= 0 {
			connectTimeout = DefaultConnectTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
		httpClient = &http.Client{Transport: transport}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

// APIError is a non-2xx response from the generation service. It
// unwraps to skin.ErrUpstreamUnavailable for 5xx and to
// skin.ErrMalformedResponse otherwise.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("generation: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("generation: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode >= 500 {
		return skin.ErrUpstreamUnavailable
	}
	return skin.ErrMalformedResponse
}

// response mirrors the service's JSON. Pointer and raw fields let
// decoding tell a missing flag or a non-string payload apart from
// zero values.
type response struct {
	Slim *bool                      `json:"slim"`
	Data map[string]json.RawMessage `json:"data"`
}

// Generate asks the service for the variants of identity. Errors
// satisfy errors.Is with skin.ErrUpstreamUnavailable or
// skin.ErrMalformedResponse.
func (c *Client) Generate(ctx context.Context, identity string) (Result, error) {
	if identity == "" {
		return Result{}, fmt.Errorf("generation: empty identity: %w", skin.ErrMalformedResponse)
	}
	endpoint := c.baseURL + "/" + url.PathEscape(identity)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("generation: building request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResponse, err := c.httpClient.Do(request)
	if err != nil {
		return Result{}, fmt.Errorf("generation: GET %s: %w: %w", identity, skin.ErrUpstreamUnavailable, err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return Result{}, &APIError{
			StatusCode: httpResponse.StatusCode,
			Body:       netutil.ErrorBody(httpResponse.Body),
		}
	}

	body, err := netutil.ReadResponse(httpResponse.Body)
	if err != nil {
		return Result{}, fmt.Errorf("generation: reading response for %s: %w: %w", identity, skin.ErrUpstreamUnavailable, err)
	}

	result, err := parse(body)
	if err != nil {
		return Result{}, fmt.Errorf("generation: response for %s: %w", identity, err)
	}
	c.logger.Debug("generated variants",
		"identity", identity,
		"variants", len(result.Payloads),
		"slim", result.Slim,
		"duration", time.Since(start),
	)
	return result, nil
}

func parse(body []byte) (Result, error) {
	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, errors.Join(skin.ErrMalformedResponse, err)
	}
	if decoded.Slim == nil {
		return Result{}, fmt.Errorf("%w: missing slim flag", skin.ErrMalformedResponse)
	}
	if len(decoded.Data) == 0 {
		return Result{}, fmt.Errorf("%w: no variants", skin.ErrMalformedResponse)
	}
	payloads := make(map[string]string, len(decoded.Data))
	for name, raw := range decoded.Data {
		var payload string
		if err := json.Unmarshal(raw, &payload); err != nil {
			return Result{}, fmt.Errorf("%w: variant %q is not a string", skin.ErrMalformedResponse, name)
		}
		if name == "" || payload == "" {
			return Result{}, fmt.Errorf("%w: empty variant name or payload", skin.ErrMalformedResponse)
		}
		payloads[name] = payload
	}
	return Result{Slim: *decoded.Slim, Payloads: payloads}, nil
}
