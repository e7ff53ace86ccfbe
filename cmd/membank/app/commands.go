// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the membank command-line
// application.
package app

import (
	"github.com/spf13/cobra"

	"github.com/membank/membank/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "membank",
	DisableAutoGenTag: true,
	Short:             "membank is a memory service for AI agents",
	Long: `membank is a long-term memory service for AI agents.

It exposes an OAuth 2.1 authorization server with PKCE and rotating refresh
tokens, anchored on operator-provisioned API keys, plus a protected API
surface that accepts either raw API keys or the access tokens minted from
them.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the membank CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newAPIKeyCmd())

	return rootCmd
}
