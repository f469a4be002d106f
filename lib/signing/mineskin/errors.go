// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package mineskin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skinvault/skinvault/lib/skin"
)

// APIError is a non-2xx, non-429 answer from MineSkin. Server errors
// unwrap to skin.ErrUpstreamUnavailable; client errors (bad image,
// bad key) unwrap to skin.ErrMalformedResponse.
type APIError struct {
	StatusCode int
	Message    string
}

func newAPIError(status int, body []byte) *APIError {
	var decoded struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &decoded) == nil {
		switch {
		case decoded.Error != "":
			message = decoded.Error
		case decoded.Message != "":
			message = decoded.Message
		case len(decoded.Errors) > 0:
			message = decoded.Errors[0].Message
		}
	}
	if len(message) > 256 {
		message = message[:256] + "..."
	}
	return &APIError{StatusCode: status, Message: message}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mineskin: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode >= 500 || e.StatusCode == 408 {
		return skin.ErrUpstreamUnavailable
	}
	return skin.ErrMalformedResponse
}
