// Logging setup shared by all packages
package utils

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *slog.Logger
)

// InitLogger configures the process-wide structured logger. The level can be
// overridden with IDEANATOR_LOG_LEVEL (debug, info, warn, error).
func InitLogger() {
	loggerOnce.Do(func() {
		level := slog.LevelInfo
		switch strings.ToLower(os.Getenv("IDEANATOR_LOG_LEVEL")) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		logger = slog.New(handler)
		slog.SetDefault(logger)
	})
}

// GetLogger returns the shared logger, initializing it on first use.
func GetLogger() *slog.Logger {
	InitLogger()
	return logger
}
