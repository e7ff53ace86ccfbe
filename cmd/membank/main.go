// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the membank CLI.
package main

import (
	"os"

	"github.com/membank/membank/cmd/membank/app"
	"github.com/membank/membank/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
