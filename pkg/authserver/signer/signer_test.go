// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membank/membank/pkg/oauth"
)

const testIssuer = "https://membank.example.com"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestSigner(t *testing.T, opts ...Option) *Signer {
	t.Helper()
	s, err := New(testSecret, testIssuer, opts...)
	require.NoError(t, err)
	return s
}

func TestNew_RejectsWeakSecret(t *testing.T) {
	t.Parallel()

	_, err := New([]byte("short"), testIssuer)
	assert.Error(t, err)

	_, err = New(testSecret, "")
	assert.Error(t, err)
}

func TestMintAndVerify(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	token, expiresIn, err := s.Mint("key-1", "agent-1", testIssuer)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultAccessTokenTTL.Seconds()), expiresIn)

	claims, err := s.Verify(token, []string{testIssuer})
	require.NoError(t, err)
	assert.Equal(t, "key-1", claims.Subject)
	assert.Equal(t, "agent-1", claims.Name)
	assert.Equal(t, oauth.ScopeFull, claims.Scope)
	assert.Equal(t, testIssuer, claims.Audience)
	assert.WithinDuration(t, time.Now().Add(DefaultAccessTokenTTL), claims.ExpiresAt, time.Minute)
}

func TestVerify_WrongSignature(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	other, err := New([]byte("ffffffffffffffffffffffffffffffff"), testIssuer)
	require.NoError(t, err)

	token, _, err := other.Mint("key-1", "agent-1", testIssuer)
	require.NoError(t, err)

	_, err = s.Verify(token, []string{testIssuer})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_TamperedToken(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	token, _, err := s.Mint("key-1", "agent-1", testIssuer)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = s.Verify(tampered, []string{testIssuer})
	assert.Error(t, err)
}

func TestVerify_AudienceBinding(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	resource := "https://memory.example.com/mcp"
	token, _, err := s.Mint("key-1", "agent-1", resource)
	require.NoError(t, err)

	// Verifies against the minted audience.
	claims, err := s.Verify(token, []string{testIssuer, resource})
	require.NoError(t, err)
	assert.Equal(t, resource, claims.Audience)

	// Fails against any other audience.
	_, err = s.Verify(token, []string{testIssuer})
	assert.ErrorIs(t, err, ErrInvalidAudience)

	_, err = s.Verify(token, []string{"https://other.example.com"})
	assert.ErrorIs(t, err, ErrInvalidAudience)
}

func TestVerify_WrongIssuer(t *testing.T) {
	t.Parallel()

	other, err := New(testSecret, "https://impostor.example.com")
	require.NoError(t, err)
	token, _, err := other.Mint("key-1", "agent-1", testIssuer)
	require.NoError(t, err)

	s := newTestSigner(t)
	_, err = s.Verify(token, []string{testIssuer})
	assert.ErrorIs(t, err, ErrInvalidIssuer)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t, WithTTL(-time.Minute))

	token, _, err := s.Mint("key-1", "agent-1", testIssuer)
	require.NoError(t, err)

	_, err = s.Verify(token, []string{testIssuer})
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_RejectsAlgNone(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	// A token signed with "none" must never pass, even with valid claims.
	unsafe := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "key-1",
		"iss": testIssuer,
		"aud": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsafe.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.Verify(token, []string{testIssuer})
	assert.Error(t, err)
}

func TestWithTTL(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t, WithTTL(30*time.Minute))

	assert.Equal(t, 30*time.Minute, s.TTL())

	_, expiresIn, err := s.Mint("key-1", "agent-1", testIssuer)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), expiresIn)
}
