// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/membank/membank/pkg/authserver/storage"
	"github.com/membank/membank/pkg/logger"
	"github.com/membank/membank/pkg/oauth"
)

// maxRequestBodySize caps request bodies on the JSON endpoints.
const maxRequestBodySize = 64 * 1024

// clientRegistrationRequest is the RFC 7591 registration request, reduced to
// the fields public clients actually send.
type clientRegistrationRequest struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

// clientRegistrationResponse is the RFC 7591 registration response.
type clientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
}

// RegisterClientHandler implements dynamic client registration (RFC 7591)
// for public clients. Registrations expire and clients are expected to
// re-register.
func (h *Handler) RegisterClientHandler(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		oauth.WriteError(w, http.StatusBadRequest,
			oauth.NewError(oauth.ErrorInvalidRequest, "Content-Type must be application/json"))
		return
	}

	var req clientRegistrationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		oauth.WriteError(w, http.StatusBadRequest,
			oauth.NewError(oauth.ErrorInvalidRequest, "malformed JSON body"))
		return
	}

	if req.ClientName == "" {
		req.ClientName = "membank client"
	}
	if len(req.GrantTypes) == 0 {
		req.GrantTypes = []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken}
	}
	if len(req.ResponseTypes) == 0 {
		req.ResponseTypes = []string{oauth.ResponseTypeCode}
	}
	if req.TokenEndpointAuthMethod == "" {
		req.TokenEndpointAuthMethod = oauth.TokenEndpointAuthMethodNone
	}
	if req.TokenEndpointAuthMethod != oauth.TokenEndpointAuthMethodNone {
		oauth.WriteError(w, http.StatusBadRequest,
			oauth.NewError(oauth.ErrorInvalidRequest, "only public clients are supported"))
		return
	}

	for _, raw := range req.RedirectURIs {
		if err := validateRedirectURI(raw); err != nil {
			oauth.WriteError(w, http.StatusBadRequest,
				oauth.NewError(oauth.ErrorInvalidRequest, "invalid redirect_uri: "+err.Error()))
			return
		}
	}

	registration := &storage.ClientRegistration{
		ClientID:                uuid.NewString(),
		Name:                    req.ClientName,
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              req.GrantTypes,
		ResponseTypes:           req.ResponseTypes,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
		CreatedAt:               time.Now(),
	}
	if err := h.storage.PutClient(r.Context(), registration); err != nil {
		logger.Errorw("failed to store client registration", "error", err)
		oauth.WriteError(w, http.StatusInternalServerError,
			oauth.NewError(oauth.ErrorServerError, "failed to store client registration"))
		return
	}

	logger.Infow("client registered", "client_id", registration.ClientID, "client_name", registration.Name)
	oauth.WriteJSON(w, http.StatusCreated, &clientRegistrationResponse{
		ClientID:                registration.ClientID,
		ClientName:              registration.Name,
		RedirectURIs:            registration.RedirectURIs,
		GrantTypes:              registration.GrantTypes,
		ResponseTypes:           registration.ResponseTypes,
		TokenEndpointAuthMethod: registration.TokenEndpointAuthMethod,
		ClientIDIssuedAt:        registration.CreatedAt.Unix(),
	})
}

var (
	errNonLoopbackHTTP   = errors.New("http redirect URIs must use a loopback host")
	errUnsupportedScheme = errors.New("unsupported redirect URI scheme")
)

// validateRedirectURI accepts https URIs, loopback http URIs, and custom
// schemes for native clients.
func validateRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
		return errNonLoopbackHTTP
	case "", "javascript", "data":
		return errUnsupportedScheme
	default:
		return nil
	}
}
