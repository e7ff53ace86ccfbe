// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/membank/membank/pkg/authserver/crypto"
	"github.com/membank/membank/pkg/logger"
	"github.com/membank/membank/pkg/oauth"
)

// DiscoveryHandler serves the RFC 8414 authorization server metadata
// document. The document is static per server instance.
func (h *Handler) DiscoveryHandler(w http.ResponseWriter, _ *http.Request) {
	doc := &oauth.AuthorizationServerMetadata{
		Issuer:                            h.issuer,
		AuthorizationEndpoint:             h.issuer + "/oauth/authorize",
		TokenEndpoint:                     h.issuer + "/oauth/token",
		RegistrationEndpoint:              h.issuer + "/oauth/register",
		ResponseTypesSupported:            []string{oauth.ResponseTypeCode},
		GrantTypesSupported:               []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken},
		CodeChallengeMethodsSupported:     []string{crypto.PKCEChallengeMethodS256},
		TokenEndpointAuthMethodsSupported: []string{oauth.TokenEndpointAuthMethodNone},
		ScopesSupported:                   []string{oauth.ScopeFull},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		logger.Debugw("failed to write discovery document", "error", err)
	}
}
