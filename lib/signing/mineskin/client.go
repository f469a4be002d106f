// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package mineskin signs skins through the MineSkin API
// (POST /generate/upload). MineSkin uploads the texture to Mojang and
// returns the texture property value and its Yggdrasil signature.
//
// The API enforces a per-key request interval and advertises the next
// permitted request time in every response. The client remembers it
// and answers with *signing.RateLimitError, without a network call,
// until that time passes.
package mineskin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skinvault/skinvault/lib/clock"
	"github.com/skinvault/skinvault/lib/netutil"
	"github.com/skinvault/skinvault/lib/signing"
	"github.com/skinvault/skinvault/lib/skin"
)

const (
	// DefaultBaseURL is the public MineSkin API.
	DefaultBaseURL = "https://api.mineskin.org"

	// DefaultUserAgent identifies the client when none is configured.
	DefaultUserAgent = "SkinToolApi"

	// defaultHold applies when a 429 carries no usable retry hint.
	defaultHold = 10 * time.Second

	// visibilityPublic is MineSkin's "public" visibility value.
	visibilityPublic = "0"
)

// Config configures a Client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Key is the API key sent as a Bearer token. Optional; anonymous
	// requests get a longer request interval.
	Key string

	// UserAgent defaults to DefaultUserAgent.
	UserAgent string

	// HTTPClient defaults to http.DefaultClient. Per-call deadlines
	// come from the context.
	HTTPClient *http.Client

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a signing.Signer backed by MineSkin. It is safe for
// concurrent use.
type Client struct {
	endpoint   string
	key        string
	userAgent  string
	httpClient *http.Client
	rateLimit  *rateLimitTracker
	clock      clock.Clock
	logger     *slog.Logger
}

var _ signing.Signer = (*Client)(nil)

// NewClient validates config and returns a Client.
func NewClient(config Config) (*Client, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("mineskin: invalid base URL %q", config.BaseURL)
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:   baseURL + "/generate/upload",
		key:        config.Key,
		userAgent:  userAgent,
		httpClient: httpClient,
		rateLimit:  newRateLimitTracker(clk),
		clock:      clk,
		logger:     logger,
	}, nil
}

// generateResponse is the subset of MineSkin's answer the client uses.
type generateResponse struct {
	Data struct {
		Texture struct {
			Value     string `json:"value"`
			Signature string `json:"signature"`
		} `json:"texture"`
	} `json:"data"`
	rateHints
}

// rateHints are the scheduling fields MineSkin attaches to successes
// and to 429 answers.
type rateHints struct {
	// NextRequest is a Unix timestamp in seconds on the current API
	// and a relative delay on older deployments.
	NextRequest float64 `json:"nextRequest"`
	Delay       float64 `json:"delay"`
}

// Sign uploads the decoded PNG and returns MineSkin's texture value
// and signature.
func (c *Client) Sign(ctx context.Context, request signing.Request) (signing.Signed, error) {
	if retryAt, limited := c.rateLimit.blocked(); limited {
		return signing.Signed{}, &signing.RateLimitError{RetryAt: retryAt}
	}

	png, err := signing.DecodePayload(request.Payload)
	if err != nil {
		return signing.Signed{}, fmt.Errorf("mineskin: %s/%s: %w", request.Identity, request.Name, err)
	}
	body, contentType, err := buildForm(request, png)
	if err != nil {
		return signing.Signed{}, fmt.Errorf("mineskin: building form: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return signing.Signed{}, fmt.Errorf("mineskin: building request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", contentType)
	httpRequest.Header.Set("Accept", "application/json")
	httpRequest.Header.Set("User-Agent", c.userAgent)
	if c.key != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+c.key)
	}

	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return signing.Signed{}, fmt.Errorf("mineskin: upload %s/%s: %w: %w", request.Identity, request.Name, skin.ErrUpstreamUnavailable, err)
	}
	defer response.Body.Close()

	raw, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return signing.Signed{}, fmt.Errorf("mineskin: reading response: %w: %w", skin.ErrUpstreamUnavailable, err)
	}

	if response.StatusCode == http.StatusTooManyRequests {
		retryAt := c.retryAt(response.Header, raw)
		c.rateLimit.holdUntil(retryAt)
		c.logger.Warn("mineskin rate limited",
			"identity", request.Identity,
			"variant", request.Name,
			"retry_at", retryAt,
		)
		return signing.Signed{}, &signing.RateLimitError{RetryAt: retryAt}
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return signing.Signed{}, newAPIError(response.StatusCode, raw)
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return signing.Signed{}, fmt.Errorf("mineskin: decoding response: %w: %w", skin.ErrMalformedResponse, err)
	}
	if next, ok := c.hintTime(decoded.rateHints); ok {
		c.rateLimit.holdUntil(next)
	}
	texture := decoded.Data.Texture
	if texture.Value == "" || texture.Signature == "" {
		return signing.Signed{}, fmt.Errorf("mineskin: response for %s/%s has no texture: %w", request.Identity, request.Name, skin.ErrMalformedResponse)
	}
	return signing.Signed{Payload: texture.Value, Signature: texture.Signature}, nil
}

func buildForm(request signing.Request, png []byte) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	file, err := writer.CreateFormFile("file", request.Name+".png")
	if err != nil {
		return nil, "", err
	}
	if _, err := file.Write(png); err != nil {
		return nil, "", err
	}
	variant := "classic"
	if request.Slim {
		variant = "slim"
	}
	fields := [][2]string{
		{"variant", variant},
		{"visibility", visibilityPublic},
		{"name", request.Name},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

// retryAt picks the hold for a 429: Retry-After first, then the body
// hints, then defaultHold.
func (c *Client) retryAt(header http.Header, body []byte) time.Time {
	now := c.clock.Now()
	if value := header.Get("Retry-After"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return now.Add(time.Duration(seconds) * time.Second)
		}
		if at, err := http.ParseTime(value); err == nil && at.After(now) {
			return at
		}
	}
	var hints rateHints
	if json.Unmarshal(body, &hints) == nil {
		if at, ok := c.hintTime(hints); ok {
			return at
		}
	}
	return now.Add(defaultHold)
}

// hintTime converts MineSkin's scheduling fields to an absolute time.
// Values above a billion are Unix timestamps; smaller ones are delays
// in seconds.
func (c *Client) hintTime(hints rateHints) (time.Time, bool) {
	now := c.clock.Now()
	switch {
	case hints.NextRequest > 1e9:
		seconds, fraction := math.Modf(hints.NextRequest)
		at := time.Unix(int64(seconds), int64(fraction*float64(time.Second)))
		return at, at.After(now)
	case hints.NextRequest > 0:
		return now.Add(time.Duration(hints.NextRequest * float64(time.Second))), true
	case hints.Delay > 0:
		return now.Add(time.Duration(hints.Delay * float64(time.Second))), true
	}
	return time.Time{}, false
}
