// Package main is the entry point for the snippetkeep server.
//
// The main package stays minimal — its job is to:
//  1. Set up logging
//  2. Load configuration
//  3. Create and start the server
//
// All actual logic lives in the internal packages. The cmd/ directory is a
// Go convention for executable entry points; a project can grow more
// (cmd/migrate, cmd/cli) without the packages caring.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/snippetkeep/internal/config"
	"github.com/sakif/snippetkeep/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ensure the database directory exists (like `mkdir -p`).
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(cfg.DBPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
