// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/membank/membank/pkg/apikeys"
	"github.com/membank/membank/pkg/auth"
	"github.com/membank/membank/pkg/authserver"
	"github.com/membank/membank/pkg/authserver/storage"
	"github.com/membank/membank/pkg/logger"
	"github.com/membank/membank/pkg/oauth"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the membank server",
	Long: `Start the membank server: the OAuth authorization server endpoints,
the discovery documents, and the protected API surface behind the
authentication gate.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("address", ":8666", "Address to listen on")
	serveCmd.Flags().String("issuer", "http://localhost:8666", "External origin of this server (no trailing slash)")
	serveCmd.Flags().String("resource", "", "Resource identifier of the protected API (defaults to the issuer)")
	serveCmd.Flags().String("db-path", "membank.db", "Path to the SQLite database holding API keys")
	serveCmd.Flags().String("storage", authserver.StorageBackendMemory, "OAuth state backend: memory or redis")
	serveCmd.Flags().String("redis-addr", "", "Redis address (host:port) for the redis backend")
	serveCmd.Flags().String("redis-password", "", "Redis password")
	serveCmd.Flags().Duration("access-token-ttl", 0, "Access token lifetime (default 24h)")

	for _, flag := range []string{
		"address", "issuer", "resource", "db-path",
		"storage", "redis-addr", "redis-password", "access-token-ttl",
	} {
		if err := viper.BindPFlag(flag, serveCmd.Flags().Lookup(flag)); err != nil {
			logger.Fatalf("Failed to bind %s flag: %v", flag, err)
		}
	}

	// The signing secret never travels via flag; it would leak into process
	// listings.
	if err := viper.BindEnv("signing-secret", "MEMBANK_SIGNING_SECRET"); err != nil {
		logger.Fatalf("Failed to bind signing secret env var: %v", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret := viper.GetString("signing-secret")
	if secret == "" {
		return fmt.Errorf("MEMBANK_SIGNING_SECRET must be set")
	}

	issuer := viper.GetString("issuer")
	resource := viper.GetString("resource")
	if resource == "" {
		resource = issuer
	}

	keys, err := apikeys.NewSQLiteStore(ctx, viper.GetString("db-path"))
	if err != nil {
		return fmt.Errorf("failed to open API key store: %w", err)
	}
	defer keys.Close()

	cfg := authserver.DefaultConfig()
	cfg.Issuer = issuer
	cfg.SigningSecret = []byte(secret)
	cfg.Audiences = []string{resource}
	cfg.AccessTokenTTL = viper.GetDuration("access-token-ttl")
	cfg.Storage = authserver.StorageConfig{
		Backend: viper.GetString("storage"),
		Redis: storage.RedisConfig{
			Addr:     viper.GetString("redis-addr"),
			Password: viper.GetString("redis-password"),
		},
	}

	srv, err := authserver.New(ctx, cfg, keys)
	if err != nil {
		return fmt.Errorf("failed to create authorization server: %w", err)
	}
	defer srv.Close()

	gate := auth.NewGate(keys, srv.Signer(), issuer,
		issuer+oauth.WellKnownProtectedResourcePath, []string{resource, issuer})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(25 * time.Second))

	srv.Mount(r)
	auth.WellKnownRoutes(r, resource, issuer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := srv.Health(req.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Group(func(r chi.Router) {
		r.Use(gate.Middleware)
		r.Get("/api/v1/whoami", whoamiHandler)
	})

	logger.Infof("Starting membank server on %s", viper.GetString("address"))
	return authserver.Serve(ctx, viper.GetString("address"), r)
}

// whoamiHandler echoes the authenticated principal. It doubles as a smoke
// test for both credential paths.
func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"api_key_id": principal.APIKeyID,
		"name":       principal.Name,
	}); err != nil {
		logger.Debugw("failed to encode whoami response", "error", err)
	}
}
