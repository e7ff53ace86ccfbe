// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

// Package oauth provides shared RFC-defined types, constants, and helpers for
// OAuth 2.0 and OAuth 2.1. It serves as the shared foundation for the
// authorization server endpoints and the bearer authentication gate.
package oauth

// Well-known discovery paths.
const (
	// WellKnownAuthorizationServerPath is the RFC 8414 metadata path.
	WellKnownAuthorizationServerPath = "/.well-known/oauth-authorization-server"

	// WellKnownProtectedResourcePath is the RFC 9728 metadata path.
	// Subpaths (e.g. /.well-known/oauth-protected-resource/mcp) are valid.
	WellKnownProtectedResourcePath = "/.well-known/oauth-protected-resource"
)

// Grant types supported by the authorization server.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// ResponseTypeCode is the only supported response type.
const ResponseTypeCode = "code"

// TokenEndpointAuthMethodNone marks public clients (no client secret).
const TokenEndpointAuthMethodNone = "none"

// ScopeFull is the single scope granted to every authenticated principal.
const ScopeFull = "mcp:full"

// TokenTypeBearer is the token_type value in token responses.
const TokenTypeBearer = "Bearer"

// AuthorizationServerMetadata is the OAuth 2.0 Authorization Server Metadata
// document per RFC 8414.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
}

// ProtectedResourceMetadata is the OAuth 2.0 Protected Resource Metadata
// document per RFC 9728.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}

// TokenResponse is the successful token endpoint response per RFC 6749 §5.1.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
