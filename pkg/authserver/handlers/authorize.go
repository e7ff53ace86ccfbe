// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/membank/membank/pkg/apikeys"
	"github.com/membank/membank/pkg/authserver/crypto"
	"github.com/membank/membank/pkg/authserver/storage"
	"github.com/membank/membank/pkg/logger"
)

//go:embed templates/authorize.html
var templateFS embed.FS

var authorizeTemplate = template.Must(template.ParseFS(templateFS, "templates/authorize.html"))

// authorizePageData carries the request parameters through the credential
// form so the POST sees the same authorization request.
type authorizePageData struct {
	Action              string
	ClientName          string
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Resource            string
	Scope               string
	Error               string
}

// AuthorizeFormHandler validates the authorization request and renders the
// credential-entry form. Parameter errors are terminal pages, never
// redirects: the redirect URI is not trusted until the user approves.
func (h *Handler) AuthorizeFormHandler(w http.ResponseWriter, r *http.Request) {
	data, errMsg := h.validateAuthorizeParams(r.Context(), r.URL.Query())
	if errMsg != "" {
		writeHTMLError(w, http.StatusBadRequest, errMsg)
		return
	}
	h.renderAuthorizeForm(w, data)
}

// AuthorizeSubmitHandler verifies the submitted API key and, on success,
// issues an authorization code and redirects back to the client.
func (h *Handler) AuthorizeSubmitHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		writeHTMLError(w, http.StatusBadRequest, "malformed form submission")
		return
	}

	data, errMsg := h.validateAuthorizeParams(ctx, r.PostForm)
	if errMsg != "" {
		writeHTMLError(w, http.StatusBadRequest, errMsg)
		return
	}

	rawKey := r.PostForm.Get("api_key")
	if rawKey == "" {
		data.Error = "invalid API key"
		h.renderAuthorizeForm(w, data)
		return
	}

	key, err := h.keys.GetByHash(ctx, apikeys.HashKey(rawKey))
	if err != nil || !key.Active {
		// Unknown and inactive keys get the same message.
		data.Error = "invalid API key"
		h.renderAuthorizeForm(w, data)
		return
	}
	if key.ExpiresAt != nil && !key.ExpiresAt.After(time.Now()) {
		data.Error = "API key has expired"
		h.renderAuthorizeForm(w, data)
		return
	}

	code, err := crypto.GenerateAuthorizationCode()
	if err != nil {
		logger.Errorw("failed to generate authorization code", "error", err)
		writeHTMLError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	record := &storage.AuthorizationCode{
		CodeChallenge: data.CodeChallenge,
		APIKeyID:      key.ID,
		ClientID:      data.ClientID,
		RedirectURI:   data.RedirectURI,
		Resource:      data.Resource,
		CreatedAt:     time.Now(),
	}
	if err := h.storage.PutAuthorizationCode(ctx, code, record); err != nil {
		logger.Errorw("failed to store authorization code", "error", err)
		writeHTMLError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// The redirect URI was validated as parseable above and is used verbatim.
	redirect, _ := url.Parse(data.RedirectURI)
	q := redirect.Query()
	q.Set("code", code)
	if data.State != "" {
		q.Set("state", data.State)
	}
	redirect.RawQuery = q.Encode()

	logger.Infow("authorization code issued", "client_id", data.ClientID, "api_key_id", key.ID)
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

// validateAuthorizeParams checks the OAuth parameters shared by the GET and
// POST legs. It returns page data on success or a human-readable error.
func (h *Handler) validateAuthorizeParams(ctx context.Context, params url.Values) (*authorizePageData, string) {
	redirectURI := params.Get("redirect_uri")
	if redirectURI == "" {
		return nil, "redirect_uri is required"
	}
	if _, err := url.Parse(redirectURI); err != nil {
		return nil, "redirect_uri is not a valid URI"
	}

	challenge := params.Get("code_challenge")
	if challenge == "" {
		return nil, "code_challenge is required"
	}
	if method := params.Get("code_challenge_method"); method != crypto.PKCEChallengeMethodS256 {
		return nil, fmt.Sprintf("code_challenge_method must be %s", crypto.PKCEChallengeMethodS256)
	}

	data := &authorizePageData{
		Action:              "/oauth/authorize",
		ClientID:            params.Get("client_id"),
		RedirectURI:         redirectURI,
		State:               params.Get("state"),
		CodeChallenge:       challenge,
		CodeChallengeMethod: crypto.PKCEChallengeMethodS256,
		Resource:            params.Get("resource"),
		Scope:               params.Get("scope"),
	}

	// Registration is optional; when the client registered we can show its
	// name and enforce its redirect URIs.
	if data.ClientID != "" {
		if client, err := h.storage.GetClient(ctx, data.ClientID); err == nil {
			data.ClientName = client.Name
			if len(client.RedirectURIs) > 0 && !containsString(client.RedirectURIs, redirectURI) {
				return nil, "redirect_uri does not match the registered client"
			}
		}
	}

	return data, ""
}

func (h *Handler) renderAuthorizeForm(w http.ResponseWriter, data *authorizePageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := authorizeTemplate.Execute(w, data); err != nil {
		logger.Errorw("failed to render authorize form", "error", err)
	}
}

func writeHTMLError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html><html><body><h1>Authorization error</h1><p>%s</p></body></html>", template.HTMLEscapeString(msg))
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
