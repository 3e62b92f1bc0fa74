// Package fallback builds a synthetic chart payload used whenever the real
// analysis cannot complete.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/windboard/windboard/pkg/aggregate"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/types"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// AEPGWh is the headline AEP reported by a synthetic response.
	AEPGWh = 14.25
	// AEPStdDev is the spread of the synthetic AEP samples.
	AEPStdDev = 0.64
	// Uncertainty is the uncertainty reported by a synthetic response.
	Uncertainty = "4.5%"
	// NumSimulations is the number of synthetic AEP samples.
	NumSimulations = 50
	// AEPSeed seeds the synthetic AEP samples so the distribution is the same
	// on every call.
	AEPSeed = 42
	// AEPBins is the number of bins in the synthetic AEP distribution.
	AEPBins = 12

	ratedKW        = 2050.0
	ratedMW        = ratedKW / 1000
	turbineCount   = 4
	maxWindSpeed   = 25.5
	windSpeedStep  = 0.5
	hoursPerYear   = 8760
	cutInSpeed     = 3.0
	ratedSpeed     = 12.0
	cutOutSpeed    = 25.0
	rampPeakKW     = 2000.0
	rampWidthMS    = ratedSpeed - cutInSpeed
	monthlyMinGWh  = 0.9
	monthlyMaxGWh  = 1.5
	monthlyMinFrac = 0.78
	monthlyMaxFrac = 1.05
)

// Plotter renders an overview image for a payload as a data URI.
type Plotter interface {
	Overview(p types.ChartPayload) (string, error)
}

// Generator builds synthetic payloads. Each call draws from a fresh source
// returned by NewSource, so a Generator can be shared between requests.
type Generator struct {
	NewSource func() rand.Source
	Plotter   Plotter
}

// NewGenerator returns a Generator drawing from randomly seeded sources.
func NewGenerator(p Plotter) *Generator {
	return &Generator{
		NewSource: func() rand.Source {
			return rand.NewPCG(rand.Uint64(), rand.Uint64())
		},
		Plotter: p,
	}
}

// Seeded returns a Generator whose output is fully determined by seed.
func Seeded(seed uint64, p Plotter) *Generator {
	return &Generator{
		NewSource: func() rand.Source {
			return rand.NewPCG(seed, seed)
		},
		Plotter: p,
	}
}

func (g *Generator) source() rand.Source {
	if g == nil || g.NewSource == nil {
		return rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return g.NewSource()
}

// AEPSamples returns the synthetic AEP samples. They never change between
// calls.
func AEPSamples() []float64 {
	dist := distuv.Normal{Mu: AEPGWh, Sigma: AEPStdDev, Src: rand.NewPCG(AEPSeed, 0)}
	samples := make([]float64, NumSimulations)
	for i := range samples {
		samples[i] = dist.Rand()
	}
	return samples
}

// Generate returns a complete synthetic payload for plantName.
func (g *Generator) Generate(plantName string) types.ChartPayload {
	src := g.source()
	uniform := func(lo, hi float64) float64 {
		return distuv.Uniform{Min: lo, Max: hi, Src: src}.Rand()
	}

	steps := int(maxWindSpeed/windSpeedStep) + 1
	curve := make([]types.PowerCurveBin, 0, steps)
	for i := 0; i < steps; i++ {
		ws := float64(i) * windSpeedStep
		var ideal, actual float64
		switch {
		case ws < cutInSpeed:
		case ws < ratedSpeed:
			ideal = math.Min(rampPeakKW*math.Pow((ws-cutInSpeed)/rampWidthMS, 3), ratedKW)
			actual = ideal * uniform(0.82, 0.95)
		case ws < cutOutSpeed:
			ideal = ratedKW
			actual = ideal * uniform(0.88, 0.96)
		}
		curve = append(curve, types.PowerCurveBin{
			WindSpeed:   aggregate.Round(ws, 1),
			ActualPower: aggregate.Round(actual, 1),
			IdealPower:  aggregate.Round(ideal, 1),
		})
	}

	monthly := make([]types.MonthlyRecord, 0, len(types.MonthLabels))
	for _, m := range types.MonthLabels {
		expected := aggregate.Round(uniform(monthlyMinGWh, monthlyMaxGWh), 2)
		monthly = append(monthly, types.MonthlyRecord{
			Month:       m,
			ExpectedGWh: expected,
			ActualGWh:   aggregate.Round(expected*uniform(monthlyMinFrac, monthlyMaxFrac), 2),
		})
	}

	turbines := make([]types.TurbineRecord, 0, turbineCount)
	cfs := make([]float64, 0, turbineCount)
	avs := make([]float64, 0, turbineCount)
	for i := 1; i <= turbineCount; i++ {
		cf := aggregate.Round(uniform(0.28, 0.38), 3)
		av := aggregate.Round(uniform(0.92, 0.99), 3)
		cfs = append(cfs, cf)
		avs = append(avs, av)
		turbines = append(turbines, types.TurbineRecord{
			TurbineID:       fmt.Sprintf("T%02d", i),
			CapacityFactor:  cf,
			Availability:    av,
			AnnualEnergyMWh: aggregate.Round(cf*ratedMW*hoursPerYear, 1),
		})
	}

	return types.ChartPayload{
		PowerCurve:        curve,
		MonthlyProduction: monthly,
		AEPDistribution:   aggregate.Histogram(AEPSamples(), AEPBins),
		TurbineComparison: turbines,
		Summary: types.Summary{
			TotalTurbines:     turbineCount,
			RatedPowerMW:      ratedMW,
			AvgCapacityFactor: aggregate.Round(stat.Mean(cfs, nil), 3),
			AvgAvailability:   aggregate.Round(stat.Mean(avs, nil), 3),
			PlantName:         plantName,
			NumSimulations:    NumSimulations,
		},
	}
}

// Response wraps a synthetic payload in a SIMULATION_FALLBACK response with
// reason as its debug note. A failed plot leaves plot_image empty.
func (g *Generator) Response(ctx context.Context, plantName, reason string) types.AnalysisResponse {
	payload := g.Generate(plantName)
	var plot string
	if g != nil && g.Plotter != nil {
		var err error
		plot, err = g.Plotter.Overview(payload)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to render fallback plot", slog.Any("error", err))
			plot = ""
		}
	}
	return types.AnalysisResponse{
		Status:      types.StatusSuccess,
		Mode:        types.ModeSimulationFallback,
		DebugNote:   reason,
		AEPGWh:      AEPGWh,
		Uncertainty: Uncertainty,
		PlotImage:   plot,
		ChartData:   payload,
	}
}
