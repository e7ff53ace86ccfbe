// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membank/membank/pkg/oauth"
)

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterClientHandler_Defaults(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := postJSON(t, env.router, "/oauth/register", map[string]any{
		"redirect_uris": []string{"http://localhost:8666/callback"},
	})

	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var resp clientRegistrationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ClientID)
	assert.Equal(t, []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken}, resp.GrantTypes)
	assert.Equal(t, []string{oauth.ResponseTypeCode}, resp.ResponseTypes)
	assert.Equal(t, oauth.TokenEndpointAuthMethodNone, resp.TokenEndpointAuthMethod)
	assert.NotZero(t, resp.ClientIDIssuedAt)

	// The registration is retrievable by the authorize endpoint.
	client, err := env.storage.GetClient(t.Context(), resp.ClientID)
	require.NoError(t, err)
	assert.Equal(t, resp.ClientID, client.ClientID)
}

func TestRegisterClientHandler_RedirectURIValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		uri    string
		wantOK bool
	}{
		{name: "https allowed", uri: "https://app.example.com/callback", wantOK: true},
		{name: "loopback http allowed", uri: "http://localhost:9000/callback", wantOK: true},
		{name: "loopback ip allowed", uri: "http://127.0.0.1:9000/callback", wantOK: true},
		{name: "custom scheme allowed", uri: "myapp://callback", wantOK: true},
		{name: "non-loopback http rejected", uri: "http://evil.example.com/callback", wantOK: false},
		{name: "javascript rejected", uri: "javascript:alert(1)", wantOK: false},
		{name: "schemeless rejected", uri: "not-a-uri", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			rec := postJSON(t, env.router, "/oauth/register", map[string]any{
				"redirect_uris": []string{tt.uri},
			})

			if tt.wantOK {
				assert.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
			} else {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestRegisterClientHandler_RejectsConfidentialClients(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := postJSON(t, env.router, "/oauth/register", map[string]any{
		"token_endpoint_auth_method": "client_secret_basic",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "public clients")
}

func TestRegisterClientHandler_RequiresJSON(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader("client_name=foo"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "application/json")
}

func TestRegisterClientHandler_MalformedBody(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
