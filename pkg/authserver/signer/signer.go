// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

// Package signer mints and verifies the short-lived access tokens issued by
// the authorization server. Tokens are stateless HMAC-signed JWTs; nothing is
// persisted, expiry is enforced by claim inspection alone.
package signer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/membank/membank/pkg/oauth"
)

// DefaultAccessTokenTTL is the default access token lifetime.
const DefaultAccessTokenTTL = 24 * time.Hour

// MinSecretLength is the minimum HMAC secret length in bytes. HS256 secrets
// shorter than the hash output weaken the construction (RFC 2104).
const MinSecretLength = 32

// Verification errors. The authentication gate collapses all of these into a
// generic 401; the distinctions exist for logging.
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrTokenExpired    = errors.New("token expired")
)

// Claims are the validated claims extracted from an access token.
type Claims struct {
	// Subject is the API key ID the token was minted for.
	Subject string

	// Name is the owning entity's display name.
	Name string

	// Scope is the granted scope.
	Scope string

	// Audience is the resource the token is bound to.
	Audience string

	ExpiresAt time.Time
}

// Signer mints and verifies HMAC-signed access tokens.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// Option configures a Signer.
type Option func(*Signer)

// WithTTL overrides the default access token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Signer) {
		s.ttl = ttl
	}
}

// New creates a Signer. The secret must be at least MinSecretLength bytes;
// the issuer is the server's own origin and becomes the `iss` claim.
func New(secret []byte, issuer string, opts ...Option) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}

	s := &Signer{
		secret: secret,
		issuer: issuer,
		ttl:    DefaultAccessTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the configured access token lifetime.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Mint signs a new access token for the given principal and audience.
// It returns the compact token and its lifetime in seconds.
func (s *Signer) Mint(apiKeyID, name, audience string) (string, int64, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   apiKeyID,
		"name":  name,
		"scope": oauth.ScopeFull,
		"iss":   s.issuer,
		"aud":   audience,
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, int64(s.ttl.Seconds()), nil
}

// Verify parses and validates an access token. The token must carry a valid
// HMAC signature, the expected issuer, an unexpired `exp`, and an audience
// matching one of expectedAudiences.
func (s *Signer) Verify(tokenString string, expectedAudiences []string) (*Claims, error) {
	token, err := jwt.Parse(tokenString,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrInvalidIssuer
		default:
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	audience, err := matchAudience(mapClaims, expectedAudiences)
	if err != nil {
		return nil, err
	}

	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}

	claims := &Claims{
		Subject:   sub,
		Audience:  audience,
		ExpiresAt: exp.Time,
	}
	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	}
	if scope, ok := mapClaims["scope"].(string); ok {
		claims.Scope = scope
	}
	return claims, nil
}

// matchAudience returns the token audience if it matches one of the expected
// values, ErrInvalidAudience otherwise.
func matchAudience(claims jwt.MapClaims, expected []string) (string, error) {
	audiences, err := claims.GetAudience()
	if err != nil || len(audiences) == 0 {
		return "", ErrInvalidAudience
	}

	for _, aud := range audiences {
		for _, want := range expected {
			if aud == want {
				return aud, nil
			}
		}
	}
	return "", ErrInvalidAudience
}
