// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// RefreshTokenPrefix marks an opaque value as a membank refresh token.
const RefreshTokenPrefix = "mrt_"

// Entropy sizes. Authorization codes carry 256 bits, refresh tokens 256 bits,
// both above the RFC 6749 §10.10 minimum.
const (
	authCodeBytes     = 32
	refreshTokenBytes = 32
)

// GenerateAuthorizationCode returns a new opaque single-use authorization
// code: 32 random bytes, hex-encoded.
func GenerateAuthorizationCode() (string, error) {
	buf := make([]byte, authCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateRefreshToken returns a new opaque refresh token:
// "mrt_" + 32 random bytes, base64url-encoded without padding.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return RefreshTokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
