// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"encoding/json"
	"net/http"

	"github.com/membank/membank/pkg/logger"
)

// OAuth 2.0 error codes per RFC 6749 §5.2. These are the only error codes
// that cross the token endpoint boundary.
const (
	ErrorInvalidRequest       = "invalid_request"
	ErrorInvalidGrant         = "invalid_grant"
	ErrorUnsupportedGrantType = "unsupported_grant_type"
	ErrorInvalidClient        = "invalid_client"
	ErrorServerError          = "server_error"
)

// Error is an OAuth-standard error response body.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// NewError builds an OAuth error with the given code and description.
func NewError(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// WriteError writes an OAuth error response as JSON with the given status.
// Token endpoint responses must not be cached per RFC 6749 §5.2.
func WriteError(w http.ResponseWriter, status int, oerr *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(oerr); err != nil {
		logger.Debugw("failed to encode OAuth error response", "error", err)
	}
}

// WriteJSON writes v as a JSON response with the given status. Token and
// registration responses are marked non-cacheable.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugw("failed to encode JSON response", "error", err)
	}
}
