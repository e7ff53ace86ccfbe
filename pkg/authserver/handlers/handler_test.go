// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/membank/membank/pkg/apikeys"
	"github.com/membank/membank/pkg/authserver/crypto"
	"github.com/membank/membank/pkg/authserver/signer"
	"github.com/membank/membank/pkg/authserver/storage"
)

const (
	testIssuer   = "https://auth.example.com"
	testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

type testEnv struct {
	handler *Handler
	storage *storage.MemoryStorage
	keys    *apikeys.MemoryStore
	signer  *signer.Signer
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	stor := storage.NewMemoryStorage()
	t.Cleanup(func() { _ = stor.Close() })

	keys := apikeys.NewMemoryStore()

	sgn, err := signer.New([]byte("0123456789abcdef0123456789abcdef"), testIssuer)
	require.NoError(t, err)

	h := NewHandler(testIssuer, stor, keys, sgn)
	return &testEnv{
		handler: h,
		storage: stor,
		keys:    keys,
		signer:  sgn,
		router:  h.Routes(),
	}
}

// createKey provisions an API key and returns the plaintext and the record.
func (e *testEnv) createKey(t *testing.T, name string) (string, *apikeys.Key) {
	t.Helper()
	plaintext, key, err := apikeys.Generate(name, nil)
	require.NoError(t, err)
	require.NoError(t, e.keys.Create(t.Context(), key))
	return plaintext, key
}

// obtainCode walks the authorization leg and returns the issued code.
func (e *testEnv) obtainCode(t *testing.T, plaintext, redirectURI, resource, state string) string {
	t.Helper()

	form := url.Values{
		"api_key":               {plaintext},
		"redirect_uri":          {redirectURI},
		"code_challenge":        {crypto.ComputePKCEChallenge(testVerifier)},
		"code_challenge_method": {crypto.PKCEChallengeMethodS256},
	}
	if resource != "" {
		form.Set("resource", resource)
	}
	if state != "" {
		form.Set("state", state)
	}

	rec := e.do(t, http.MethodPost, "/oauth/authorize", form)
	require.Equal(t, http.StatusFound, rec.Code, "body: %s", rec.Body.String())

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	if state != "" {
		require.Equal(t, state, loc.Query().Get("state"))
	}
	return code
}

// do sends a form-encoded request through the router.
func (e *testEnv) do(t *testing.T, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func expiredAt(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}
