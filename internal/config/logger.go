package config

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs the process-wide structured logger. Format and level
// come from LOG_FORMAT and LOG_LEVEL; JSON is the default for production
// log shipping, text for local development.
func InitLogger(cfg *Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))

	slog.Info("Logger initialized", "level", cfg.LogLevel, "format", cfg.LogFormat)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
