package config

import (
	"log/slog"
	"os"
	"strings"
)

// SetupLogger installs a JSON slog handler on stdout as the default logger.
func SetupLogger(level, service string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).With("service", service)
	slog.SetDefault(logger)
	return logger
}
