// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

// Package auth provides the bearer authentication gate protecting the memory
// service API. A bearer value is either a raw API key or a signed access
// token; both resolve to the same Principal.
package auth

import "context"

// Principal is the authenticated identity attached to a request.
type Principal struct {
	// APIKeyID is the stable identifier of the API key behind the
	// credential, whether presented directly or via an access token.
	APIKeyID string

	// Name is the human-readable name of the key owner.
	Name string
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext retrieves the principal set by the gate middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
