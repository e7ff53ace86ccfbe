// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/membank/membank/pkg/apikeys"
	"github.com/membank/membank/pkg/authserver/signer"
	"github.com/membank/membank/pkg/authserver/storage"
	"github.com/membank/membank/pkg/oauth"
)

// Handler provides HTTP handlers for the OAuth authorization server endpoints.
type Handler struct {
	issuer  string
	storage storage.Storage
	keys    apikeys.Store
	signer  *signer.Signer
}

// NewHandler creates a new Handler with the given dependencies. The issuer is
// the server's external origin, without a trailing slash.
func NewHandler(issuer string, stor storage.Storage, keys apikeys.Store, sgn *signer.Signer) *Handler {
	return &Handler{
		issuer:  issuer,
		storage: stor,
		keys:    keys,
		signer:  sgn,
	}
}

// Routes returns a router with all OAuth endpoints registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.OAuthRoutes(r)
	h.WellKnownRoutes(r)
	return r
}

// OAuthRoutes registers the OAuth endpoints (authorize, token, register) on
// the provided router.
func (h *Handler) OAuthRoutes(r chi.Router) {
	r.Get("/oauth/authorize", h.AuthorizeFormHandler)
	r.Post("/oauth/authorize", h.AuthorizeSubmitHandler)
	r.Post("/oauth/token", h.TokenHandler)
	r.Post("/oauth/register", h.RegisterClientHandler)
}

// WellKnownRoutes registers the RFC 8414 discovery endpoint on the provided
// router. The RFC 9728 protected-resource document is served by the
// authentication gate, next to the resources it describes.
func (h *Handler) WellKnownRoutes(r chi.Router) {
	r.Get(oauth.WellKnownAuthorizationServerPath, h.DiscoveryHandler)
}
