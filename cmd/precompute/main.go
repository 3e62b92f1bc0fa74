// Command precompute runs the real analysis once and stores the result that
// the server serves in static mode.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/windboard/windboard/pkg/analysis"
	"github.com/windboard/windboard/pkg/engine"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/render"
	"github.com/windboard/windboard/pkg/sanitize"
	"github.com/windboard/windboard/pkg/storage"
	"github.com/windboard/windboard/pkg/types"
)

func main() {
	e := engine.Configured()
	r := analysis.Configured(e, render.New())
	s := storage.Configured()
	plantName := lflag.String("plant-name", types.DefaultPlantName, "Plant to analyze")
	numSim := lflag.Int("precompute-simulations", 20, "Number of Monte Carlo simulations for the stored result")
	lflag.Configure()

	level, err := log.LevelFromLLog()
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, _ = log.WithRun(ctx, *plantName)

	os.Exit(run(ctx, r, s, *plantName, *numSim))
}

func run(ctx context.Context, r *analysis.Runner, s storage.Database, plantName string, numSim int) int {
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	start := time.Now()
	log.Ctx(ctx).InfoContext(ctx, "starting pre-computation", slog.Int("numSimulations", numSim))

	resp, err := r.WithMode(types.ModePrecomputed).WithNumSimulations(numSim).Compute(ctx, plantName)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "analysis failed", slog.String("debugNote", analysis.DebugNote(err)), slog.Any("error", err))
		return 1
	}
	resp = sanitize.Response(resp)

	if err := s.SaveResult(ctx, storage.PlantID(plantName), resp); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save result", slog.Any("error", err))
		return 1
	}
	log.Ctx(ctx).InfoContext(ctx, "pre-computation complete",
		slog.Float64("aepGWh", resp.AEPGWh),
		slog.String("uncertainty", resp.Uncertainty),
		slog.Duration("took", time.Since(start)),
	)
	return 0
}
