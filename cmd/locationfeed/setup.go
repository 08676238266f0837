package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"locationfeed/internal/config"
	"locationfeed/internal/logging"
)

// loadPlaybackConfig reads the config file when given, otherwise the preset.
func loadPlaybackConfig(path, preset string) (*config.PlaybackConfig, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.Preset(preset)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// setupLogger builds the process logger from the environment and installs it
// as the slog default.
func setupLogger(e config.Env, out io.Writer) *slog.Logger {
	l := logging.NewWithOptions(out, e.LogFormat, e.LogLevel)
	slog.SetDefault(l)
	return l
}

// signalContext derives a context cancelled on SIGINT/SIGTERM that carries l.
func signalContext(parent context.Context, l *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return logging.NewContext(ctx, l), stop
}
