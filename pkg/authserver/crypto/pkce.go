// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

// Package crypto provides the cryptographic primitives for the authorization
// server: opaque token generation and PKCE verification.
package crypto

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/oauth2"
)

// PKCEChallengeMethodS256 is the only PKCE challenge method we accept
// (RFC 7636). The "plain" method is rejected per OAuth 2.1.
const PKCEChallengeMethodS256 = "S256"

// ErrPKCEMismatch indicates the code_verifier does not match the stored
// code_challenge.
var ErrPKCEMismatch = errors.New("PKCE verification failed")

// ComputePKCEChallenge computes the S256 code_challenge for a code_verifier
// per RFC 7636 Section 4.2: BASE64URL(SHA256(code_verifier)), no padding.
//
// This delegates to oauth2.S256ChallengeFromVerifier() from golang.org/x/oauth2.
func ComputePKCEChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// VerifyPKCE checks a code_verifier against the code_challenge stored with an
// authorization code. The comparison is constant-time.
func VerifyPKCE(verifier, challenge string) error {
	computed := ComputePKCEChallenge(verifier)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
		return ErrPKCEMismatch
	}
	return nil
}
