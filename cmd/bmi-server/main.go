package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/khirotaka/bmi-mcp/internal/server"
)

func main() {
	// stdout carries the protocol, so logs go to stderr
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if os.Getenv("LOG_LEVEL") == "DEBUG" {
		opts.Level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewMCPServer()
	srv.Setup()
	slog.Debug("Serving tools on stdio", "server", server.Name, "version", server.Version)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Failed to run server", "error", err)
		os.Exit(1)
	}
}
