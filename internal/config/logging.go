package config

import (
	"fmt"
	"io"
	"log/slog"
)

// Logger builds the process logger from the logging section.
func (c LoggingConfig) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", c.Level)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch c.Format {
	case "text", "console", "":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s", c.Format)
	}
	return slog.New(handler), nil
}

// SetupLogging installs the configured logger as the slog default, which is
// what the ecat package logs through.
func (c LoggingConfig) SetupLogging(w io.Writer) error {
	logger, err := c.Logger(w)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
