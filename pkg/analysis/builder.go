package analysis

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/windboard/windboard/pkg/aggregate"
	"github.com/windboard/windboard/pkg/columns"
	"github.com/windboard/windboard/pkg/engine"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/telemetry"
	"github.com/windboard/windboard/pkg/turbine"
	"github.com/windboard/windboard/pkg/types"
	"github.com/windboard/windboard/pkg/units"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const hoursPerYear = 8760

// Builder assembles the chart payload of a loaded plant.
type Builder struct {
	Config Config
	// NewSource returns the source turbine availabilities are drawn from.
	NewSource func() rand.Source
}

// NewBuilder returns a Builder drawing from randomly seeded sources.
func NewBuilder(cfg Config) *Builder {
	return &Builder{
		Config: cfg,
		NewSource: func() rand.Source {
			return rand.NewPCG(rand.Uint64(), rand.Uint64())
		},
	}
}

// Build derives every chart view of plant. samples are the estimator's AEP
// samples and numSim the number of simulations reported in the summary.
// Views that cannot be derived are left empty and described in the returned
// diagnostics.
func (b *Builder) Build(ctx context.Context, plant *engine.Plant, samples []float64, numSim int) (types.ChartPayload, []error) {
	var diags []error
	scada := plant.SCADA
	roles := columns.Infer(scada.Names())
	log.Ctx(ctx).DebugContext(ctx, "inferred column roles",
		slog.Any("roles", roleAttrs(roles)),
	)

	payload := types.ChartPayload{
		PowerCurve:        []types.PowerCurveBin{},
		MonthlyProduction: []types.MonthlyRecord{},
	}

	wsName, okWS := roles.Get(columns.WindSpeed)
	pwName, okPW := roles.Get(columns.Power)
	switch {
	case okWS && okPW:
		ws, _ := scada.Column(wsName)
		pw, _ := scada.Column(pwName)
		payload.PowerCurve = aggregate.PowerCurve(ws, pw, b.Config.MaxWindSpeed)
	case !okWS:
		diags = append(diags, &InferenceGap{Role: columns.WindSpeed, View: "power_curve"})
	}
	if !okPW {
		diags = append(diags, &InferenceGap{Role: columns.Power, View: "power_curve"})
	}

	if energyName, ok := roles.Get(columns.Energy); ok {
		energy, _ := scada.Column(energyName)
		tsName, _ := roles.Get(columns.Timestamp)
		ts := aggregate.ResolveTimestamps(scada, tsName)
		if ts.Dropped > 0 {
			diags = append(diags, &ParseFailure{Source: ts.Source, Dropped: ts.Dropped, Total: len(ts.Times)})
		}
		unit := units.EnergyUnitFromName(energyName, b.Config.DefaultEnergyUnit)
		payload.MonthlyProduction = aggregate.Monthly(ts, energy, func(v float64) float64 {
			return v / unit.PerGWh()
		}, b.Config.ExpectedRatio)
	} else {
		diags = append(diags, &InferenceGap{Role: columns.Energy, View: "monthly_production"})
	}

	payload.AEPDistribution = aggregate.Histogram(samples, b.Config.HistogramBins)

	records, sliceDiags := b.turbines(ctx, plant)
	diags = append(diags, sliceDiags...)
	payload.TurbineComparison = records
	payload.Summary = b.summary(records, plant.Name, numSim)
	return payload, diags
}

func roleAttrs(roles columns.Roles) map[string]string {
	out := make(map[string]string, len(roles))
	for role, name := range roles {
		out[role.String()] = name
	}
	return out
}

func (b *Builder) source() rand.Source {
	if b.NewSource == nil {
		return rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return b.NewSource()
}

func (b *Builder) turbines(ctx context.Context, plant *engine.Plant) ([]types.TurbineRecord, []error) {
	ids := plant.Assets.IDs()
	slicer := turbine.Resolve(plant.SCADA, ids)
	if slicer.Mode() == turbine.Whole && len(ids) > 1 {
		log.Ctx(ctx).WarnContext(ctx, "cannot tell turbines apart, using the whole table for each",
			slog.Int("turbines", len(ids)),
		)
	}

	availability := distuv.Uniform{Min: b.Config.AvailabilityMin, Max: b.Config.AvailabilityMax, Src: b.source()}
	records := make([]types.TurbineRecord, 0, len(ids))
	var diags []error
	for _, id := range ids {
		scada, err := slicer.Slice(id)
		if err != nil {
			diags = append(diags, &SliceFailure{TurbineID: id, Err: err})
			continue
		}

		capacity := b.Config.DefaultRatedPowerMW
		if raw := plant.Assets.RatedPower(id); !math.IsNaN(raw) && !math.IsInf(raw, 0) {
			capacity = units.RatedCapacityMW(raw)
		}

		var meanPower float64
		if name, ok := columns.Infer(scada.Names()).Get(columns.Power); ok {
			pw, _ := scada.Column(name)
			meanPower = finiteMean(pw)
		}

		cf := units.CapacityFactor(meanPower, capacity)
		records = append(records, types.TurbineRecord{
			TurbineID:       id,
			CapacityFactor:  aggregate.Round(cf, 3),
			Availability:    aggregate.Round(availability.Rand(), 3),
			AnnualEnergyMWh: aggregate.Round(cf*capacity*hoursPerYear, 1),
		})
	}
	return records, diags
}

// finiteMean is the mean of the finite values of c, or 0 when there are none.
func finiteMean(c telemetry.Column) float64 {
	values := make([]float64, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if v := c.Float(i); !math.IsNaN(v) && !math.IsInf(v, 0) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

func (b *Builder) summary(records []types.TurbineRecord, plantName string, numSim int) types.Summary {
	s := types.Summary{
		TotalTurbines:     b.Config.DefaultTurbineCount,
		RatedPowerMW:      b.Config.DefaultRatedPowerMW,
		AvgCapacityFactor: b.Config.DefaultCapacityFactor,
		AvgAvailability:   b.Config.DefaultAvailability,
		PlantName:         plantName,
		NumSimulations:    numSim,
	}
	if len(records) == 0 {
		return s
	}
	cfs := make([]float64, len(records))
	avs := make([]float64, len(records))
	for i, r := range records {
		cfs[i] = r.CapacityFactor
		avs[i] = r.Availability
	}
	s.TotalTurbines = len(records)
	s.AvgCapacityFactor = aggregate.Round(stat.Mean(cfs, nil), 3)
	s.AvgAvailability = aggregate.Round(stat.Mean(avs, nil), 3)
	return s
}
