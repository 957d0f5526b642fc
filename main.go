package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideanator/ideanator/pkg/config"
	"github.com/ideanator/ideanator/pkg/utils"
)

// main starts the local backend the browser UI talks to. The process runs
// until interrupted; the HTTP server shuts down gracefully on SIGINT/SIGTERM.
func main() {
	// Initialize logging system
	utils.InitLogger()
	logger := utils.GetLogger()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("Failed to write default config", "error", err)
	}

	cfg, cfgPath, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Info("Loaded config", "path", cfgPath)

	server, err := NewServer(cfg)
	if err != nil {
		logger.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
	logger.Info("Listening", "host", cfg.Host(), "port", server.Port())

	<-ctx.Done()
	logger.Info("Shutting down")
}
