// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/membank/membank/pkg/apikeys"
	"github.com/membank/membank/pkg/authserver/signer"
	"github.com/membank/membank/pkg/logger"
)

// touchTimeout bounds the background last-used update.
const touchTimeout = 5 * time.Second

// Gate authenticates bearer credentials for the protected API surface.
type Gate struct {
	keys                apikeys.Store
	signer              *signer.Signer
	issuer              string
	resourceMetadataURL string
	audiences           []string
}

// NewGate creates a gate that accepts raw API keys from the store and access
// tokens minted by the signer for any of the given audiences.
func NewGate(keys apikeys.Store, sgn *signer.Signer, issuer, resourceMetadataURL string, audiences []string) *Gate {
	if len(audiences) == 0 {
		audiences = []string{issuer}
	}
	return &Gate{
		keys:                keys,
		signer:              sgn,
		issuer:              issuer,
		resourceMetadataURL: resourceMetadataURL,
		audiences:           audiences,
	}
}

// Middleware authenticates the request and attaches the resolved Principal
// to the context. All failures return a uniform 401; the response body never
// explains which check failed.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := extractBearer(r)
		if !ok {
			g.unauthorized(w, false)
			return
		}

		var (
			principal Principal
			err       error
		)
		if strings.HasPrefix(raw, apikeys.KeyPrefix) {
			principal, err = g.authenticateAPIKey(r.Context(), raw)
		} else {
			principal, err = g.authenticateAccessToken(raw)
		}
		if err != nil {
			logger.Debugw("authentication failed", "error", err)
			g.unauthorized(w, true)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func (g *Gate) authenticateAPIKey(ctx context.Context, raw string) (Principal, error) {
	key, err := g.keys.GetByHash(ctx, apikeys.HashKey(raw))
	if err != nil {
		return Principal{}, fmt.Errorf("api key lookup: %w", err)
	}
	if !key.Valid(time.Now()) {
		return Principal{}, fmt.Errorf("api key %s is not valid", key.ID)
	}

	// Best-effort; an authenticated request never fails on this.
	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := g.keys.TouchLastUsed(touchCtx, key.ID, time.Now()); err != nil {
			logger.Debugw("failed to update last-used timestamp", "api_key_id", key.ID, "error", err)
		}
	}()

	return Principal{APIKeyID: key.ID, Name: key.Name}, nil
}

func (g *Gate) authenticateAccessToken(raw string) (Principal, error) {
	claims, err := g.signer.Verify(raw, g.audiences)
	if err != nil {
		return Principal{}, fmt.Errorf("token verification: %w", err)
	}
	return Principal{APIKeyID: claims.Subject, Name: claims.Name}, nil
}

func (g *Gate) unauthorized(w http.ResponseWriter, invalidToken bool) {
	w.Header().Set("WWW-Authenticate", g.buildWWWAuthenticate(invalidToken))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// buildWWWAuthenticate assembles the RFC 6750 challenge, pointing clients at
// the RFC 9728 resource metadata so they can discover the authorization
// server.
func (g *Gate) buildWWWAuthenticate(invalidToken bool) string {
	parts := []string{fmt.Sprintf(`realm=%q`, g.issuer)}

	if g.resourceMetadataURL != "" {
		parts = append(parts, fmt.Sprintf(`resource_metadata=%q`, g.resourceMetadataURL))
	}
	if invalidToken {
		parts = append(parts, `error="invalid_token"`)
	}
	return "Bearer " + strings.Join(parts, ", ")
}

// extractBearer pulls the bearer value from the Authorization header. The
// scheme comparison is case-insensitive per RFC 9110.
func extractBearer(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}
