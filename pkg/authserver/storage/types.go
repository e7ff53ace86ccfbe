// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

// Package storage provides storage interfaces and implementations for the
// OAuth authorization server: single-use authorization codes, rotating
// refresh tokens, and dynamic client registrations, all with per-item TTL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TTLs for the ephemeral record types.
const (
	// AuthorizationCodeTTL bounds the window between code issuance and
	// redemption (RFC 6749 §4.1.2 recommends at most 10 minutes; we use 5).
	AuthorizationCodeTTL = 5 * time.Minute

	// RefreshTokenTTL is the lifetime of a refresh token. Each rotation
	// issues a fresh token with a full TTL.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// ClientRegistrationTTL is the lifetime of a dynamic client registration.
	ClientRegistrationTTL = 30 * 24 * time.Hour

	// DefaultCleanupInterval is how often the in-memory backend sweeps
	// expired entries.
	DefaultCleanupInterval = 5 * time.Minute
)

// Sentinel errors returned by Storage implementations.
var (
	// ErrNotFound indicates the record does not exist, was already consumed,
	// or has expired. Callers must not be able to distinguish these cases.
	ErrNotFound = errors.New("record not found")
)

func errEmptyKey(what string) error {
	return fmt.Errorf("%s cannot be empty", what)
}

func errNilRecord() error {
	return errors.New("record cannot be nil")
}

// AuthorizationCode is the server-side state bound to a pending authorization
// code. It is keyed by the opaque code value and consumable exactly once.
type AuthorizationCode struct {
	// CodeChallenge is the client's S256 PKCE challenge, verified at
	// redemption time.
	CodeChallenge string `json:"code_challenge"`

	// APIKeyID identifies the credential the user authenticated with.
	APIKeyID string `json:"api_key_id"`

	// ClientID is the OAuth client the code was issued to.
	ClientID string `json:"client_id"`

	// RedirectURI is the validated redirect target, stored verbatim.
	RedirectURI string `json:"redirect_uri"`

	// Resource is the optional RFC 8707 resource indicator; it becomes the
	// audience of the minted tokens.
	Resource string `json:"resource,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// RefreshToken is the server-side state bound to a rotating refresh token.
// It is keyed by the opaque token value and consumable exactly once; each
// redemption stores a successor under a new key with the same FamilyID.
type RefreshToken struct {
	// APIKeyID identifies the credential that anchors this grant.
	APIKeyID string `json:"api_key_id"`

	// Name is the owning entity's display name, carried into access tokens.
	Name string `json:"name"`

	// Audience is the resource audience fixed at the original code exchange.
	Audience string `json:"audience"`

	// FamilyID links all tokens descended from one authorization grant.
	FamilyID string `json:"family_id"`

	IssuedAt time.Time `json:"issued_at"`
}

// ClientRegistration is a dynamically registered OAuth client (RFC 7591).
// Clients are public; no secret is stored or verified.
type ClientRegistration struct {
	ClientID                string    `json:"client_id"`
	Name                    string    `json:"client_name,omitempty"`
	RedirectURIs            []string  `json:"redirect_uris"`
	GrantTypes              []string  `json:"grant_types"`
	ResponseTypes           []string  `json:"response_types"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	CreatedAt               time.Time `json:"created_at"`
}

// Storage is the durable key-value store with per-item TTL that holds all
// cross-request state for the authorization server.
//
// The Take* operations are the single-use redemption primitives: they fetch
// and delete atomically, so N concurrent redemptions of the same key succeed
// at most once. Implementations must not decompose them into separate get and
// delete calls.
type Storage interface {
	// PutAuthorizationCode stores a pending authorization code with
	// AuthorizationCodeTTL.
	PutAuthorizationCode(ctx context.Context, code string, record *AuthorizationCode) error

	// TakeAuthorizationCode atomically fetches and deletes an authorization
	// code. Returns ErrNotFound if the code is unknown, expired, or was
	// already consumed.
	TakeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// PutRefreshToken stores a refresh token with RefreshTokenTTL.
	PutRefreshToken(ctx context.Context, token string, record *RefreshToken) error

	// TakeRefreshToken atomically fetches and deletes a refresh token.
	// Returns ErrNotFound if the token is unknown, expired, or was already
	// consumed.
	TakeRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// PutClient stores a client registration with ClientRegistrationTTL.
	PutClient(ctx context.Context, client *ClientRegistration) error

	// GetClient retrieves a client registration by ID.
	GetClient(ctx context.Context, clientID string) (*ClientRegistration, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}
