// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/membank/membank/pkg/apikeys"
	"github.com/membank/membank/pkg/authserver/crypto"
	"github.com/membank/membank/pkg/authserver/storage"
	"github.com/membank/membank/pkg/logger"
	"github.com/membank/membank/pkg/oauth"
)

// tokenRequest holds the parameters of a token endpoint request, accepted as
// either application/x-www-form-urlencoded or application/json.
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier"`
	RedirectURI  string `json:"redirect_uri"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	Resource     string `json:"resource"`
}

// TokenHandler implements the OAuth token endpoint. Only the
// authorization_code and refresh_token grants are supported.
func (h *Handler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	req, oerr := parseTokenRequest(r)
	if oerr != nil {
		oauth.WriteError(w, http.StatusBadRequest, oerr)
		return
	}

	switch req.GrantType {
	case oauth.GrantTypeAuthorizationCode:
		h.handleAuthorizationCodeGrant(w, r, req)
	case oauth.GrantTypeRefreshToken:
		h.handleRefreshTokenGrant(w, r, req)
	default:
		oauth.WriteError(w, http.StatusBadRequest,
			oauth.NewError(oauth.ErrorUnsupportedGrantType, "unsupported grant type: "+req.GrantType))
	}
}

func (h *Handler) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request, req *tokenRequest) {
	ctx := r.Context()

	if req.Code == "" {
		oauth.WriteError(w, http.StatusBadRequest,
			oauth.NewError(oauth.ErrorInvalidRequest, "code is required"))
		return
	}
	if req.CodeVerifier == "" {
		oauth.WriteError(w, http.StatusBadRequest,
			oauth.NewError(oauth.ErrorInvalidRequest, "code_verifier is required"))
		return
	}

	// Take is atomic; a second exchange of the same code cannot succeed.
	code, err := h.storage.TakeAuthorizationCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			oauth.WriteError(w, http.StatusBadRequest,
				oauth.NewError(oauth.ErrorInvalidGrant, "invalid or expired authorization code"))
			return
		}
		logger.Errorw("failed to take authorization code", "error", err)
		oauth.WriteError(w, http.StatusInternalServerError,
			oauth.NewError(oauth.ErrorServerError, "storage failure"))
		return
	}

	if err := crypto.VerifyPKCE(req.CodeVerifier, code.CodeChallenge); err != nil {
		oauth.WriteError(w, http.StatusBadRequest,
			oauth.NewError(oauth.ErrorInvalidGrant, "PKCE verification failed"))
		return
	}

	key, oerr := h.resolveAPIKey(r, code.APIKeyID)
	if oerr != nil {
		oauth.WriteError(w, http.StatusBadRequest, oerr)
		return
	}

	audience := code.Resource
	if audience == "" {
		audience = h.issuer
	}

	h.issueTokens(ctx, w, key, audience, "")
}

func (h *Handler) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request, req *tokenRequest) {
	ctx := r.Context()

	if req.RefreshToken == "" {
		oauth.WriteError(w, http.StatusBadRequest,
			oauth.NewError(oauth.ErrorInvalidRequest, "refresh_token is required"))
		return
	}

	// The old token is consumed before any further validation, so a token
	// presented with a revoked key is gone either way.
	token, err := h.storage.TakeRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			oauth.WriteError(w, http.StatusBadRequest,
				oauth.NewError(oauth.ErrorInvalidGrant, "invalid or expired refresh token"))
			return
		}
		logger.Errorw("failed to take refresh token", "error", err)
		oauth.WriteError(w, http.StatusInternalServerError,
			oauth.NewError(oauth.ErrorServerError, "storage failure"))
		return
	}

	key, oerr := h.resolveAPIKey(r, token.APIKeyID)
	if oerr != nil {
		logger.Infow("refresh token consumed for invalid API key",
			"api_key_id", token.APIKeyID, "family_id", token.FamilyID)
		oauth.WriteError(w, http.StatusBadRequest, oerr)
		return
	}

	h.issueTokens(ctx, w, key, token.Audience, token.FamilyID)
}

// resolveAPIKey re-resolves the API key behind a grant and enforces that it
// is still active and unexpired. Revoking a key invalidates every grant
// derived from it at the next token endpoint interaction.
func (h *Handler) resolveAPIKey(r *http.Request, apiKeyID string) (*apikeys.Key, *oauth.Error) {
	key, err := h.keys.GetByID(r.Context(), apiKeyID)
	if err != nil {
		if errors.Is(err, apikeys.ErrNotFound) {
			return nil, oauth.NewError(oauth.ErrorInvalidGrant, "API key no longer valid")
		}
		logger.Errorw("failed to resolve API key", "api_key_id", apiKeyID, "error", err)
		return nil, oauth.NewError(oauth.ErrorServerError, "storage failure")
	}
	if !key.Valid(time.Now()) {
		return nil, oauth.NewError(oauth.ErrorInvalidGrant, "API key no longer valid")
	}
	return key, nil
}

// issueTokens mints an access token and a fresh refresh token for the key.
// An empty familyID starts a new rotation family.
func (h *Handler) issueTokens(ctx context.Context, w http.ResponseWriter, key *apikeys.Key, audience, familyID string) {
	accessToken, expiresIn, err := h.signer.Mint(key.ID, key.Name, audience)
	if err != nil {
		logger.Errorw("failed to mint access token", "api_key_id", key.ID, "error", err)
		oauth.WriteError(w, http.StatusInternalServerError,
			oauth.NewError(oauth.ErrorServerError, "failed to issue access token"))
		return
	}

	refreshToken, err := crypto.GenerateRefreshToken()
	if err != nil {
		logger.Errorw("failed to generate refresh token", "error", err)
		oauth.WriteError(w, http.StatusInternalServerError,
			oauth.NewError(oauth.ErrorServerError, "failed to issue refresh token"))
		return
	}
	if familyID == "" {
		familyID = uuid.NewString()
	}

	record := &storage.RefreshToken{
		APIKeyID: key.ID,
		Name:     key.Name,
		Audience: audience,
		FamilyID: familyID,
		IssuedAt: time.Now(),
	}
	if err := h.storage.PutRefreshToken(ctx, refreshToken, record); err != nil {
		logger.Errorw("failed to store refresh token", "error", err)
		oauth.WriteError(w, http.StatusInternalServerError,
			oauth.NewError(oauth.ErrorServerError, "failed to issue refresh token"))
		return
	}

	oauth.WriteJSON(w, http.StatusOK, &oauth.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    oauth.TokenTypeBearer,
		ExpiresIn:    expiresIn,
		RefreshToken: refreshToken,
		Scope:        oauth.ScopeFull,
	})
}

// parseTokenRequest reads the token request from either a form-encoded or a
// JSON body.
func parseTokenRequest(r *http.Request) (*tokenRequest, *oauth.Error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil && contentType != "" {
		return nil, oauth.NewError(oauth.ErrorInvalidRequest, "malformed Content-Type header")
	}

	if mediaType == "application/json" {
		var req tokenRequest
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
			return nil, oauth.NewError(oauth.ErrorInvalidRequest, "malformed JSON body")
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, oauth.NewError(oauth.ErrorInvalidRequest, "malformed form body")
	}
	return &tokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		RefreshToken: strings.TrimSpace(r.PostForm.Get("refresh_token")),
		ClientID:     r.PostForm.Get("client_id"),
		Resource:     r.PostForm.Get("resource"),
	}, nil
}
