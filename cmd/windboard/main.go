package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/windboard/windboard/pkg/analysis"
	"github.com/windboard/windboard/pkg/engine"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/metrics"
	"github.com/windboard/windboard/pkg/render"
	"github.com/windboard/windboard/pkg/server"
	"github.com/windboard/windboard/pkg/storage"

	"github.com/levenlabs/go-lflag"
)

func main() {
	// init packages
	e := engine.Configured()
	r := analysis.Configured(e, render.New())
	s := storage.Configured()

	// init server
	srv := server.Configured(r, s)

	// parse flags
	lflag.Configure()

	level, err := log.LevelFromLLog()
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	metrics.Init()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
