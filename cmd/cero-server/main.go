package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"cero/internal/app"
	"cero/internal/config"
	"cero/internal/db"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("cero-server"),
		kong.Description("Single-threaded blocking HTTP server."),
	)

	cfg, err := config.Load(&cli)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	logger.Info("starting cero")

	// Ensure DB directory exists
	dbDir := filepath.Dir(cfg.DB.Path)
	if dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0o700); err != nil {
			logger.Error("create db dir", "dir", dbDir, "err", err)
			os.Exit(1)
		}
	}

	d, err := db.Open(cfg.DB.Path)
	if err != nil {
		logger.Error("open database", "path", cfg.DB.Path, "err", err)
		os.Exit(1)
	}
	defer d.Close()
	logger.Info("database initialized", "path", cfg.DB.Path)

	a := app.New(cfg, d, logger)

	// Clean up expired sessions on startup
	if n, err := a.Sessions.CleanupExpired(); err != nil {
		logger.Error("session cleanup failed", "err", err)
	} else {
		logger.Info("cleaned up expired sessions", "count", n)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Info("received shutdown signal", "signal", sig.String())
		a.Server.Close()
	}()

	logger.Info("listening", "addr", cfg.Server.Addr())
	if err := a.Server.ListenAndServe(); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}
