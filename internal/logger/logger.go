package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"committeehub/config"

	"gopkg.in/lumberjack.v2"
)

// New builds a JSON logger writing to stdout and, when a file is configured,
// to a rotating log file.
func New(cfg config.LogConfig) *slog.Logger {
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, os.Stdout)
	}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	return NewWithWriter(io.MultiWriter(writers...), cfg.Level)
}

func NewWithWriter(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Init installs the configured logger as the slog default and returns it.
func Init(cfg config.LogConfig) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	logger.Info("logger initialized", "level", cfg.Level, "file", cfg.File)
	return logger
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
