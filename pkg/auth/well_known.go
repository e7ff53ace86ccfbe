// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/membank/membank/pkg/logger"
	"github.com/membank/membank/pkg/oauth"
)

// NewProtectedResourceHandler serves the RFC 9728 protected resource
// metadata document. The endpoint is unauthenticated and CORS-open: browser
// based clients fetch it before they have any credential.
func NewProtectedResourceHandler(resource, authorizationServer string) http.Handler {
	doc := &oauth.ProtectedResourceMetadata{
		Resource:               resource,
		AuthorizationServers:   []string{authorizationServer},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        []string{oauth.ScopeFull},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "mcp-protocol-version, Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			logger.Debugw("failed to write protected resource metadata", "error", err)
		}
	})
}

// WellKnownRoutes registers the protected resource metadata document at its
// RFC 9728 path and the /mcp subpath variant some clients probe.
func WellKnownRoutes(r chi.Router, resource, authorizationServer string) {
	h := NewProtectedResourceHandler(resource, authorizationServer)
	r.Handle(oauth.WellKnownProtectedResourcePath, h)
	r.Handle(oauth.WellKnownProtectedResourcePath+"/mcp", h)
}
