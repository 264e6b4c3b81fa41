package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/licensegate/internal/config"
)

// NewLogger creates a structured zerolog.Logger writing JSON to stdout,
// tagged with the service name and auth mode from the config.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()

	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.AuthMode != "" {
		ctx = ctx.Str("auth_mode", string(cfg.AuthMode))
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
