// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membank/membank/pkg/apikeys"
	"github.com/membank/membank/pkg/authserver/crypto"
	"github.com/membank/membank/pkg/authserver/storage"
)

func TestAuthorizeFormHandler_ParamValidation(t *testing.T) {
	t.Parallel()

	challenge := crypto.ComputePKCEChallenge(testVerifier)

	tests := []struct {
		name       string
		query      url.Values
		wantStatus int
		wantBody   string
	}{
		{
			name: "valid request renders form",
			query: url.Values{
				"redirect_uri":          {"http://localhost:8666/callback"},
				"code_challenge":        {challenge},
				"code_challenge_method": {"S256"},
			},
			wantStatus: http.StatusOK,
			wantBody:   `name="api_key"`,
		},
		{
			name: "missing redirect_uri",
			query: url.Values{
				"code_challenge":        {challenge},
				"code_challenge_method": {"S256"},
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   "redirect_uri is required",
		},
		{
			name: "missing code_challenge",
			query: url.Values{
				"redirect_uri":          {"http://localhost:8666/callback"},
				"code_challenge_method": {"S256"},
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   "code_challenge is required",
		},
		{
			name: "plain method rejected",
			query: url.Values{
				"redirect_uri":          {"http://localhost:8666/callback"},
				"code_challenge":        {testVerifier},
				"code_challenge_method": {"plain"},
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   "code_challenge_method must be S256",
		},
		{
			name: "missing method rejected",
			query: url.Values{
				"redirect_uri":   {"http://localhost:8666/callback"},
				"code_challenge": {challenge},
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   "code_challenge_method must be S256",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			rec := env.do(t, http.MethodGet, "/oauth/authorize?"+tt.query.Encode(), nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestAuthorizeFormHandler_CarriesParamsThrough(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	challenge := crypto.ComputePKCEChallenge(testVerifier)

	query := url.Values{
		"redirect_uri":          {"http://localhost:8666/callback"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"state":                 {"xyzzy"},
		"resource":              {"https://mcp.example.com"},
	}
	rec := env.do(t, http.MethodGet, "/oauth/authorize?"+query.Encode(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="`+challenge+`"`)
	assert.Contains(t, body, `value="xyzzy"`)
	assert.Contains(t, body, `value="https://mcp.example.com"`)
}

func TestAuthorizeSubmitHandler_InvalidKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setupKey func(t *testing.T, env *testEnv) string
		wantMsg  string
	}{
		{
			name: "unknown key",
			setupKey: func(_ *testing.T, _ *testEnv) string {
				return "msk_deadbeef"
			},
			wantMsg: "invalid API key",
		},
		{
			name: "revoked key",
			setupKey: func(t *testing.T, env *testEnv) string {
				plaintext, key := env.createKey(t, "revoked")
				require.NoError(t, env.keys.Deactivate(t.Context(), key.ID))
				return plaintext
			},
			wantMsg: "invalid API key",
		},
		{
			name: "expired key",
			setupKey: func(t *testing.T, env *testEnv) string {
				plaintext, key, err := apikeys.Generate("expired", expiredAt(-time.Hour))
				require.NoError(t, err)
				require.NoError(t, env.keys.Create(t.Context(), key))
				return plaintext
			},
			wantMsg: "API key has expired",
		},
		{
			name: "empty key",
			setupKey: func(_ *testing.T, _ *testEnv) string {
				return ""
			},
			wantMsg: "invalid API key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			form := url.Values{
				"api_key":               {tt.setupKey(t, env)},
				"redirect_uri":          {"http://localhost:8666/callback"},
				"code_challenge":        {crypto.ComputePKCEChallenge(testVerifier)},
				"code_challenge_method": {"S256"},
			}

			rec := env.do(t, http.MethodPost, "/oauth/authorize", form)

			// Credential failures re-render the form, never redirect.
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
			assert.Contains(t, rec.Body.String(), `name="api_key"`)
		})
	}
}

func TestAuthorizeSubmitHandler_IssuesCode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	plaintext, key := env.createKey(t, "agent-1")

	code := env.obtainCode(t, plaintext, "http://localhost:8666/callback?flavor=native", "https://mcp.example.com", "state-1")

	// The stored record binds the code to the key, challenge, and resource.
	record, err := env.storage.TakeAuthorizationCode(t.Context(), code)
	require.NoError(t, err)
	assert.Equal(t, key.ID, record.APIKeyID)
	assert.Equal(t, crypto.ComputePKCEChallenge(testVerifier), record.CodeChallenge)
	assert.Equal(t, "https://mcp.example.com", record.Resource)
	assert.Equal(t, "http://localhost:8666/callback?flavor=native", record.RedirectURI)
}

func TestAuthorizeSubmitHandler_PreservesRedirectQuery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	plaintext, _ := env.createKey(t, "agent-1")

	form := url.Values{
		"api_key":               {plaintext},
		"redirect_uri":          {"http://localhost:8666/callback?port=9000"},
		"code_challenge":        {crypto.ComputePKCEChallenge(testVerifier)},
		"code_challenge_method": {"S256"},
	}
	rec := env.do(t, http.MethodPost, "/oauth/authorize", form)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "9000", loc.Query().Get("port"))
	assert.NotEmpty(t, loc.Query().Get("code"))
}

func TestAuthorizeSubmitHandler_RegisteredClientRedirectMismatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	plaintext, _ := env.createKey(t, "agent-1")

	require.NoError(t, env.storage.PutClient(t.Context(), &storage.ClientRegistration{
		ClientID:     "client-1",
		Name:         "registered client",
		RedirectURIs: []string{"http://localhost:8666/callback"},
	}))

	form := url.Values{
		"api_key":               {plaintext},
		"client_id":             {"client-1"},
		"redirect_uri":          {"https://evil.example.com/callback"},
		"code_challenge":        {crypto.ComputePKCEChallenge(testVerifier)},
		"code_challenge_method": {"S256"},
	}
	rec := env.do(t, http.MethodPost, "/oauth/authorize", form)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "does not match the registered client")
}
