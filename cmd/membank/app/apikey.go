// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/membank/membank/pkg/apikeys"
)

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "Create, list, and revoke the API keys that anchor membank identities.",
	}

	cmd.PersistentFlags().String("db-path", "membank.db", "Path to the SQLite database holding API keys")

	cmd.AddCommand(newAPIKeyCreateCmd())
	cmd.AddCommand(newAPIKeyListCmd())
	cmd.AddCommand(newAPIKeyRevokeCmd())

	return cmd
}

func openKeyStore(cmd *cobra.Command) (*apikeys.SQLiteStore, error) {
	dbPath, err := cmd.Flags().GetString("db-path")
	if err != nil {
		return nil, err
	}
	return apikeys.NewSQLiteStore(cmd.Context(), dbPath)
}

func newAPIKeyCreateCmd() *cobra.Command {
	var (
		name      string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long: `Create a new API key for the named entity.

The plaintext key is printed exactly once; only its hash is stored.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			var expiresAt *time.Time
			if expiresIn > 0 {
				t := time.Now().Add(expiresIn)
				expiresAt = &t
			}

			store, err := openKeyStore(cmd)
			if err != nil {
				return fmt.Errorf("failed to open API key store: %w", err)
			}
			defer store.Close()

			plaintext, key, err := apikeys.Generate(name, expiresAt)
			if err != nil {
				return fmt.Errorf("failed to generate API key: %w", err)
			}
			if err := store.Create(cmd.Context(), key); err != nil {
				return fmt.Errorf("failed to store API key: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ID:   %s\n", key.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Name: %s\n", key.Name)
			if key.ExpiresAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Expires: %s\n", key.ExpiresAt.Format(time.RFC3339))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nAPI key (shown only once):\n%s\n", plaintext)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name of the entity owning the key")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Key lifetime (e.g. 720h); zero means no expiry")

	return cmd
}

func newAPIKeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openKeyStore(cmd)
			if err != nil {
				return fmt.Errorf("failed to open API key store: %w", err)
			}
			defer store.Close()

			keys, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list API keys: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACTIVE\tCREATED\tEXPIRES\tLAST USED")
			for _, key := range keys {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n",
					key.ID,
					key.Name,
					key.Active,
					key.CreatedAt.Format(time.RFC3339),
					formatOptionalTime(key.ExpiresAt),
					formatOptionalTime(key.LastUsedAt),
				)
			}
			return w.Flush()
		},
	}
}

func newAPIKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Long: `Revoke an API key by ID.

Revocation is permanent. Tokens minted from the key stop working at their
next interaction with the token endpoint or the authentication gate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openKeyStore(cmd)
			if err != nil {
				return fmt.Errorf("failed to open API key store: %w", err)
			}
			defer store.Close()

			if err := store.Deactivate(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to revoke API key: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "API key %s revoked\n", args[0])
			return nil
		},
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
