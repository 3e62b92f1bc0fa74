// Package analysis runs the AEP analysis of a plant and assembles the
// dashboard response, falling back to synthetic data when the real analysis
// cannot complete.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/windboard/windboard/pkg/aggregate"
	"github.com/windboard/windboard/pkg/engine"
	"github.com/windboard/windboard/pkg/fallback"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/metrics"
	"github.com/windboard/windboard/pkg/sanitize"
	"github.com/windboard/windboard/pkg/types"
	"gonum.org/v1/gonum/stat"
)

// EngineName is reported by the health endpoint.
const EngineName = "MonteCarloAEP"

// Renderer draws the plot images of a response.
type Renderer interface {
	AEPHistogram(samples []float64, mean float64, plantName string) (string, error)
	Overview(payload types.ChartPayload) (string, error)
}

// Runner runs analyses against the configured engine.
type Runner struct {
	engine   *engine.Engine
	builder  *Builder
	fallback *fallback.Generator
	renderer Renderer
	numSim   int
	mode     types.Mode
}

// NewRunner returns a Runner reporting REAL_DATA responses.
func NewRunner(eng *engine.Engine, builder *Builder, gen *fallback.Generator, renderer Renderer, numSim int) *Runner {
	if eng == nil {
		eng = &engine.Engine{}
	}
	if builder == nil {
		builder = NewBuilder(DefaultConfig())
	}
	return &Runner{
		engine:   eng,
		builder:  builder,
		fallback: gen,
		renderer: renderer,
		numSim:   numSim,
		mode:     types.ModeRealData,
	}
}

// Configured sets up a Runner based on flags.
func Configured(eng *engine.Engine, renderer Renderer) *Runner {
	numSim := lflag.Int("num-simulations", 5, "Number of Monte Carlo simulations per analysis")
	configPath := lflag.String("pipeline-config", "", "Optional YAML file overriding the pipeline tuning constants")
	seed := lflag.Int("fallback-seed", 0, "Seed for synthetic data and availability draws (0 picks a random seed per request)")

	r := NewRunner(eng, nil, nil, renderer, 5)
	lflag.Do(func() {
		cfg, err := LoadConfig(*configPath)
		if err != nil {
			panic(fmt.Sprintf("failed to load pipeline config: %v", err))
		}
		if *numSim < 1 {
			panic("num-simulations must be at least 1")
		}
		r.numSim = *numSim
		r.builder = NewBuilder(cfg)
		r.fallback = fallback.NewGenerator(renderer)
		if *seed != 0 {
			s := uint64(*seed)
			r.builder.NewSource = func() rand.Source { return rand.NewPCG(s, s+1) }
			r.fallback = fallback.Seeded(s, renderer)
		}
	})
	return r
}

// WithMode returns a copy of r that labels its responses with mode.
func (r *Runner) WithMode(mode types.Mode) *Runner {
	c := *r
	c.mode = mode
	return &c
}

// WithNumSimulations returns a copy of r running n simulations.
func (r *Runner) WithNumSimulations(n int) *Runner {
	c := *r
	c.numSim = n
	return &c
}

// Preconditions returns an error naming every missing prerequisite of the
// real analysis.
func (r *Runner) Preconditions(ctx context.Context) error {
	var reasons []string
	if r.engine.Estimator == nil {
		reasons = append(reasons, "AEP estimator not configured")
	}
	if r.engine.Loader != nil {
		if err := r.engine.Loader.DataAvailable(ctx); err != nil {
			reasons = append(reasons, err.Error())
		}
	} else {
		reasons = append(reasons, "plant loader not configured")
	}
	if len(reasons) > 0 {
		return &EngineError{Stage: StagePrecondition, Err: errors.New(strings.Join(reasons, "; "))}
	}
	return nil
}

// Analyze returns the analysis of plantName. It always returns a complete
// response: when the real analysis fails a synthetic one is returned with the
// failure as its debug note.
func (r *Runner) Analyze(ctx context.Context, plantName string) types.AnalysisResponse {
	start := time.Now()
	ctx, _ = log.WithRun(ctx, plantName)

	resp, err := r.Compute(ctx, plantName)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "real analysis failed, using synthetic data", slog.Any("error", err))
		resp = r.fallback.Response(ctx, plantName, DebugNote(err))
	}
	resp = sanitize.Response(resp)
	metrics.ObserveAnalysis(string(resp.Mode), time.Since(start))
	log.Ctx(ctx).InfoContext(ctx, "analysis complete",
		slog.String("mode", string(resp.Mode)),
		slog.Duration("took", time.Since(start)),
	)
	return resp
}

// Compute runs the real analysis of plantName. Panics are returned as an
// EngineError.
func (r *Runner) Compute(ctx context.Context, plantName string) (resp types.AnalysisResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &EngineError{Stage: StagePanic, Err: fmt.Errorf("%v", rec)}
		}
	}()
	if err := r.Preconditions(ctx); err != nil {
		return types.AnalysisResponse{}, err
	}

	plant, err := r.engine.Loader.Load(ctx)
	if err != nil {
		return types.AnalysisResponse{}, &EngineError{Stage: StageLoad, Err: err}
	}
	if plant == nil {
		return types.AnalysisResponse{}, &EngineError{Stage: StageLoad, Err: errors.New("loader returned no plant")}
	}
	if plant.Name == "" {
		plant.Name = plantName
	}
	log.Ctx(ctx).InfoContext(ctx, "plant loaded",
		slog.String("loader", r.engine.Loader.Name()),
		slog.Int("rows", plant.SCADA.Len()),
		slog.Any("turbines", plant.Assets.IDs()),
	)

	results, err := r.engine.Estimator.Run(ctx, plant, r.numSim)
	if err != nil {
		return types.AnalysisResponse{}, &EngineError{Stage: StageEstimate, Err: err}
	}

	aep := fallback.AEPGWh
	if samples := aggregate.FiniteSamples(results.AEPGWh); len(samples) > 0 {
		aep = stat.Mean(samples, nil)
	}

	var plot string
	if r.renderer != nil {
		plot, err = r.renderer.AEPHistogram(results.AEPGWh, aep, plantName)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to render aep plot", slog.Any("error", err))
			plot = ""
		}
	}

	numSim := r.numSim
	if len(results.AEPGWh) > 0 {
		numSim = len(results.AEPGWh)
	}
	payload, diags := r.builder.Build(ctx, plant, results.AEPGWh, numSim)
	payload.Summary.PlantName = plantName
	// the plant tables are the largest allocation of a run
	plant = nil

	for _, d := range diags {
		metrics.IncDiagnostic(diagnosticKind(d))
		log.Ctx(ctx).WarnContext(ctx, "analysis diagnostic", slog.Any("error", d))
	}

	return types.AnalysisResponse{
		Status:      types.StatusSuccess,
		Mode:        r.mode,
		AEPGWh:      aggregate.Round(aep, 2),
		Uncertainty: Uncertainty(results.AvailPct),
		PlotImage:   plot,
		ChartData:   payload,
	}, nil
}

// Uncertainty formats the sample standard deviation of the availability
// losses as a percentage. Fewer than two finite values report the synthetic
// uncertainty.
func Uncertainty(availPct []float64) string {
	values := aggregate.FiniteSamples(availPct)
	if len(values) < 2 {
		return fallback.Uncertainty
	}
	return formatPercent(aggregate.Round(stat.StdDev(values, nil)*100, 2))
}

func formatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback.Uncertainty
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "%"
}

// Health reports which parts of the real analysis are available.
func (r *Runner) Health(ctx context.Context) types.HealthResponse {
	h := types.HealthResponse{
		Status:           "Backend Active",
		Engine:           EngineName,
		LibraryInstalled: r.engine.Estimator != nil,
		EngieLoader:      r.engine.Loader != nil,
	}
	if r.engine.Loader != nil {
		h.DataAvailable = r.engine.Loader.DataAvailable(ctx) == nil
	}
	return h
}
