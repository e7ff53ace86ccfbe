// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/membank/membank/pkg/apikeys"
	"github.com/membank/membank/pkg/authserver/handlers"
	"github.com/membank/membank/pkg/authserver/signer"
	"github.com/membank/membank/pkg/authserver/storage"
	"github.com/membank/membank/pkg/logger"
)

// defaultRedisKeyPrefix namespaces OAuth state in a shared redis instance.
const defaultRedisKeyPrefix = "membank:auth:"

// Server is the assembled OAuth authorization server. It owns the storage
// backend and exposes an http.Handler serving all OAuth endpoints.
type Server struct {
	handler http.Handler
	storage storage.Storage
	signer  *signer.Signer
	issuer  string
}

// New builds a server from the config and the API key store backing user
// credentials. The caller retains ownership of the key store; Close releases
// only the OAuth state storage.
func New(ctx context.Context, cfg Config, keys apikeys.Store) (*Server, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if keys == nil {
		return nil, fmt.Errorf("api key store is required")
	}

	stor, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	sgn, err := signer.New(cfg.SigningSecret, cfg.Issuer, signer.WithTTL(cfg.AccessTokenTTL))
	if err != nil {
		_ = stor.Close()
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}

	h := handlers.NewHandler(cfg.Issuer, stor, keys, sgn)

	logger.Infow("authorization server initialized",
		"issuer", cfg.Issuer,
		"storage", cfg.Storage.Backend,
		"access_token_ttl", cfg.AccessTokenTTL,
	)

	return &Server{
		handler: h.Routes(),
		storage: stor,
		signer:  sgn,
		issuer:  cfg.Issuer,
	}, nil
}

func newStorage(ctx context.Context, cfg StorageConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case StorageBackendMemory:
		return storage.NewMemoryStorage(), nil
	case StorageBackendRedis:
		rc := cfg.Redis
		if rc.KeyPrefix == "" {
			rc.KeyPrefix = defaultRedisKeyPrefix
		}
		return storage.NewRedisStorage(ctx, rc)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Handler returns the router serving all OAuth endpoints:
//
//   - GET  /.well-known/oauth-authorization-server
//   - GET  /oauth/authorize
//   - POST /oauth/authorize
//   - POST /oauth/token
//   - POST /oauth/register
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Mount registers the OAuth endpoints on an existing router.
func (s *Server) Mount(r chi.Router) {
	r.Mount("/", s.handler)
}

// Signer returns the token signer, shared with the authentication gate so
// both sides agree on the signing secret.
func (s *Server) Signer() *signer.Signer {
	return s.signer
}

// Health reports whether the storage backend is reachable.
func (s *Server) Health(ctx context.Context) error {
	return s.storage.Health(ctx)
}

// Close releases the storage backend.
func (s *Server) Close() error {
	return s.storage.Close()
}

// Serve runs an http.Server for the handler until ctx is cancelled, then
// shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
