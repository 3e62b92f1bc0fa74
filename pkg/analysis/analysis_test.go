package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/windboard/windboard/pkg/columns"
	"github.com/windboard/windboard/pkg/engine"
	"github.com/windboard/windboard/pkg/engine/enginemock"
	"github.com/windboard/windboard/pkg/fallback"
	"github.com/windboard/windboard/pkg/telemetry"
	"github.com/windboard/windboard/pkg/turbine"
	"github.com/windboard/windboard/pkg/types"
	"github.com/windboard/windboard/pkg/units"
)

type fakeRenderer struct {
	err error
}

func (f fakeRenderer) AEPHistogram(samples []float64, mean float64, plantName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("data:image/png;base64,hist-%d", len(samples)), nil
}

func (f fakeRenderer) Overview(payload types.ChartPayload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "data:image/png;base64,overview", nil
}

func seededBuilder() *Builder {
	b := NewBuilder(DefaultConfig())
	b.NewSource = func() rand.Source { return rand.NewPCG(7, 7) }
	return b
}

// twoMonthPlant has two days of hourly data, one in January and one in
// February, for a single turbine addressed by a flat table.
func twoMonthPlant() *engine.Plant {
	var (
		times []string
		ws    []float64
		power []float64
	)
	for i := 0; i < 48; i++ {
		day := time.Date(2014, time.January, 15, 0, 0, 0, 0, time.UTC)
		if i >= 24 {
			day = time.Date(2014, time.February, 15, 0, 0, 0, 0, time.UTC)
		}
		times = append(times, day.Add(time.Duration(i%24)*time.Hour).Format("2006-01-02 15:04:05"))
		ws = append(ws, float64(i)*0.25)
		power = append(power, 100)
	}
	return &engine.Plant{
		Name: "La Haute Borne",
		SCADA: &telemetry.Table{Columns: []telemetry.Column{
			telemetry.StringColumn("Date_time", times),
			telemetry.FloatColumn("Ws_avg", ws),
			telemetry.FloatColumn("P_avg", power),
		}},
		Assets: telemetry.AssetTable{Assets: []telemetry.Asset{{ID: "R80711", RatedPower: 2050}}},
	}
}

func TestBuildScenarioA(t *testing.T) {
	plant := twoMonthPlant()
	payload, diags := seededBuilder().Build(context.Background(), plant, []float64{14, 14.5, 15}, 3)
	assert.Empty(t, diags)

	require.Len(t, payload.MonthlyProduction, 2)
	assert.Equal(t, "Jan", payload.MonthlyProduction[0].Month)
	assert.Equal(t, "Feb", payload.MonthlyProduction[1].Month)

	require.NotEmpty(t, payload.PowerCurve)
	for i := 1; i < len(payload.PowerCurve); i++ {
		assert.InDelta(t, 0.5, payload.PowerCurve[i].WindSpeed-payload.PowerCurve[i-1].WindSpeed, 1e-9)
	}
	assert.Equal(t, 12.0, payload.PowerCurve[len(payload.PowerCurve)-1].WindSpeed)

	require.Len(t, payload.TurbineComparison, 1)
	rec := payload.TurbineComparison[0]
	assert.Equal(t, "R80711", rec.TurbineID)
	assert.Equal(t, 0.049, rec.CapacityFactor)
	assert.GreaterOrEqual(t, rec.Availability, 0.92)
	assert.LessOrEqual(t, rec.Availability, 0.99)

	assert.Len(t, payload.AEPDistribution, 10)
	assert.Equal(t, 1, payload.Summary.TotalTurbines)
	assert.Equal(t, 3, payload.Summary.NumSimulations)
	assert.Equal(t, "La Haute Borne", payload.Summary.PlantName)
	assert.Equal(t, 2.05, payload.Summary.RatedPowerMW)
}

func TestBuildScenarioB(t *testing.T) {
	plant := &engine.Plant{
		Name: "p",
		SCADA: &telemetry.Table{Columns: []telemetry.Column{
			telemetry.StringColumn("timestamp", []string{"2014-03-01 00:00:00", "2014-03-01 00:10:00", "not a date"}),
			telemetry.FloatColumn("energy_mwh", []float64{1, 2, 4}),
			telemetry.FloatColumn("Ba_avg", []float64{0, 0, 0}),
		}},
		Assets: telemetry.AssetTable{Assets: []telemetry.Asset{{ID: "T1", RatedPower: math.NaN()}}},
	}
	payload, diags := seededBuilder().Build(context.Background(), plant, []float64{14}, 1)

	assert.Empty(t, payload.PowerCurve)
	assert.NotNil(t, payload.PowerCurve)
	require.Len(t, payload.MonthlyProduction, 1)
	assert.Equal(t, types.MonthlyRecord{Month: "Mar", ExpectedGWh: 0.003, ActualGWh: 0.003}, payload.MonthlyProduction[0])
	assert.Len(t, payload.AEPDistribution, 10)
	require.Len(t, payload.TurbineComparison, 1)
	assert.Equal(t, 0.0, payload.TurbineComparison[0].CapacityFactor)

	var (
		gaps  []columns.Role
		parse *ParseFailure
	)
	for _, d := range diags {
		var gap *InferenceGap
		if errors.As(d, &gap) {
			gaps = append(gaps, gap.Role)
		}
		errors.As(d, &parse)
	}
	assert.ElementsMatch(t, []columns.Role{columns.WindSpeed, columns.Power}, gaps)
	require.NotNil(t, parse)
	assert.Equal(t, 1, parse.Dropped)
	assert.Equal(t, 3, parse.Total)
}

func TestBuildMultiLevelIndex(t *testing.T) {
	ts := time.Date(2015, time.June, 1, 0, 0, 0, 0, time.UTC)
	plant := &engine.Plant{
		Name: "p",
		SCADA: &telemetry.Table{
			Columns: []telemetry.Column{
				telemetry.FloatColumn("Ws_avg", []float64{8, 9, 8, 9}),
				telemetry.FloatColumn("P_avg", []float64{1025, 1025, 4000, 4000}),
			},
			Index: telemetry.Index{Levels: []telemetry.Column{
				telemetry.TimeColumn("time", []time.Time{ts, ts.Add(time.Hour), ts, ts.Add(time.Hour)}),
				telemetry.StringColumn("asset_id", []string{"A", "A", "B", "B"}),
			}},
		},
		Assets: telemetry.AssetTable{Assets: []telemetry.Asset{
			{ID: "A", RatedPower: 2050},
			{ID: "B", RatedPower: 2.05},
			{ID: "C", RatedPower: 2050},
		}},
	}
	payload, diags := seededBuilder().Build(context.Background(), plant, nil, 5)

	require.Len(t, payload.TurbineComparison, 2)
	assert.Equal(t, "A", payload.TurbineComparison[0].TurbineID)
	assert.Equal(t, 0.5, payload.TurbineComparison[0].CapacityFactor)
	assert.Equal(t, 8979.0, payload.TurbineComparison[0].AnnualEnergyMWh)
	assert.Equal(t, "B", payload.TurbineComparison[1].TurbineID)
	assert.Equal(t, 1.0, payload.TurbineComparison[1].CapacityFactor)
	assert.Equal(t, 2, payload.Summary.TotalTurbines)
	assert.Equal(t, 0.75, payload.Summary.AvgCapacityFactor)

	require.Len(t, diags, 1)
	var sf *SliceFailure
	require.ErrorAs(t, diags[0], &sf)
	assert.Equal(t, "C", sf.TurbineID)
	assert.ErrorIs(t, diags[0], turbine.ErrTurbineNotFound)

	require.Len(t, payload.MonthlyProduction, 1)
	assert.Equal(t, "Jun", payload.MonthlyProduction[0].Month)
	assert.Empty(t, payload.AEPDistribution)
	assert.NotNil(t, payload.AEPDistribution)
}

func TestBuildNoTurbines(t *testing.T) {
	plant := &engine.Plant{Name: "p", SCADA: &telemetry.Table{}}
	payload, _ := seededBuilder().Build(context.Background(), plant, nil, 5)
	assert.Empty(t, payload.TurbineComparison)
	assert.Equal(t, types.Summary{
		TotalTurbines:     4,
		RatedPowerMW:      2.05,
		AvgCapacityFactor: 0.33,
		AvgAvailability:   0.96,
		PlantName:         "p",
		NumSimulations:    5,
	}, payload.Summary)
}

func TestBuildDeterministic(t *testing.T) {
	a, _ := seededBuilder().Build(context.Background(), twoMonthPlant(), []float64{14, 15}, 2)
	b, _ := seededBuilder().Build(context.Background(), twoMonthPlant(), []float64{14, 15}, 2)
	assert.Equal(t, a, b)
}

func newMocks(plant *engine.Plant) (*enginemock.MockLoader, *enginemock.MockEstimator) {
	loader := &enginemock.MockLoader{}
	loader.On("DataAvailable", mock.Anything).Return(nil)
	loader.On("Load", mock.Anything).Return(plant, nil)
	return loader, &enginemock.MockEstimator{}
}

func TestAnalyzeRealData(t *testing.T) {
	plant := twoMonthPlant()
	loader, estimator := newMocks(plant)
	estimator.On("Run", mock.Anything, plant, 5).Return(engine.Results{
		AEPGWh:   []float64{14.1, 14.5},
		AvailPct: []float64{0.02, 0.03},
	}, nil)

	r := NewRunner(&engine.Engine{Loader: loader, Estimator: estimator}, seededBuilder(), fallback.Seeded(1, nil), fakeRenderer{}, 5)
	resp := r.Analyze(context.Background(), "My Plant")

	assert.Equal(t, types.StatusSuccess, resp.Status)
	assert.Equal(t, types.ModeRealData, resp.Mode)
	assert.Empty(t, resp.DebugNote)
	assert.Equal(t, 14.3, resp.AEPGWh)
	assert.Equal(t, "0.71%", resp.Uncertainty)
	assert.Equal(t, "data:image/png;base64,hist-2", resp.PlotImage)
	assert.Equal(t, "My Plant", resp.ChartData.Summary.PlantName)
	assert.Equal(t, 2, resp.ChartData.Summary.NumSimulations)
	assert.Len(t, resp.ChartData.MonthlyProduction, 2)
	estimator.AssertExpectations(t)
	loader.AssertExpectations(t)
}

func TestAnalyzeRenderFailure(t *testing.T) {
	plant := twoMonthPlant()
	loader, estimator := newMocks(plant)
	estimator.On("Run", mock.Anything, plant, 5).Return(engine.Results{AEPGWh: []float64{14}}, nil)

	r := NewRunner(&engine.Engine{Loader: loader, Estimator: estimator}, seededBuilder(), nil, fakeRenderer{err: errors.New("no font")}, 5)
	resp := r.Analyze(context.Background(), "p")
	assert.Equal(t, types.ModeRealData, resp.Mode)
	assert.Empty(t, resp.PlotImage)
	assert.Equal(t, "4.5%", resp.Uncertainty)
}

func assertCompleteFallback(t *testing.T, resp types.AnalysisResponse) {
	t.Helper()
	assert.Equal(t, types.StatusSuccess, resp.Status)
	assert.Equal(t, types.ModeSimulationFallback, resp.Mode)
	assert.Equal(t, fallback.AEPGWh, resp.AEPGWh)
	assert.Equal(t, fallback.Uncertainty, resp.Uncertainty)
	assert.Len(t, resp.ChartData.PowerCurve, 52)
	assert.Len(t, resp.ChartData.MonthlyProduction, 12)
	assert.Len(t, resp.ChartData.AEPDistribution, fallback.AEPBins)
	assert.Len(t, resp.ChartData.TurbineComparison, 4)
	assert.Equal(t, fallback.NumSimulations, resp.ChartData.Summary.NumSimulations)
}

func TestAnalyzeScenarioC(t *testing.T) {
	plant := twoMonthPlant()
	loader, estimator := newMocks(plant)
	estimator.On("Run", mock.Anything, plant, 5).Return(engine.Results{}, fmt.Errorf("%w: killed", engine.ErrResourceExhausted))

	r := NewRunner(&engine.Engine{Loader: loader, Estimator: estimator}, seededBuilder(), fallback.Seeded(1, fakeRenderer{}), fakeRenderer{}, 5)
	resp := r.Analyze(context.Background(), "p")

	assertCompleteFallback(t, resp)
	assert.Equal(t, MemoryErrorNote, resp.DebugNote)
	assert.Equal(t, "data:image/png;base64,overview", resp.PlotImage)
	assert.Equal(t, "p", resp.ChartData.Summary.PlantName)
}

func TestAnalyzePreconditions(t *testing.T) {
	loader := &enginemock.MockLoader{}
	loader.On("DataAvailable", mock.Anything).Return(errors.New("data path missing: /data"))

	r := NewRunner(&engine.Engine{Loader: loader}, nil, fallback.Seeded(1, nil), nil, 5)
	resp := r.Analyze(context.Background(), "p")
	assertCompleteFallback(t, resp)
	assert.Equal(t, "AEP estimator not configured; data path missing: /data", resp.DebugNote)
	loader.AssertNotCalled(t, "Load", mock.Anything)

	resp = NewRunner(nil, nil, nil, nil, 5).Analyze(context.Background(), "p")
	assertCompleteFallback(t, resp)
	assert.Equal(t, "AEP estimator not configured; plant loader not configured", resp.DebugNote)
}

func TestAnalyzeLoadError(t *testing.T) {
	loader := &enginemock.MockLoader{}
	loader.On("DataAvailable", mock.Anything).Return(nil)
	loader.On("Load", mock.Anything).Return(nil, errors.New("failed to parse scada"))

	r := NewRunner(&engine.Engine{Loader: loader, Estimator: &enginemock.MockEstimator{}}, nil, fallback.Seeded(1, nil), nil, 5)
	resp := r.Analyze(context.Background(), "p")
	assertCompleteFallback(t, resp)
	assert.Equal(t, "failed to parse scada", resp.DebugNote)
}

func TestAnalyzePanic(t *testing.T) {
	loader := &enginemock.MockLoader{}
	loader.On("DataAvailable", mock.Anything).Return(nil)
	loader.On("Load", mock.Anything).Run(func(mock.Arguments) {
		panic("index out of range")
	})

	r := NewRunner(&engine.Engine{Loader: loader, Estimator: &enginemock.MockEstimator{}}, nil, fallback.Seeded(1, nil), nil, 5)
	resp := r.Analyze(context.Background(), "p")
	assertCompleteFallback(t, resp)
	assert.Equal(t, "index out of range", resp.DebugNote)

	_, err := r.Compute(context.Background(), "p")
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, StagePanic, ee.Stage)
}

func TestPrecomputedMode(t *testing.T) {
	plant := twoMonthPlant()
	loader, estimator := newMocks(plant)
	estimator.On("Run", mock.Anything, plant, 20).Return(engine.Results{AEPGWh: []float64{14, 16}}, nil)

	r := NewRunner(&engine.Engine{Loader: loader, Estimator: estimator}, seededBuilder(), nil, nil, 5).
		WithMode(types.ModePrecomputed).
		WithNumSimulations(20)
	resp, err := r.Compute(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, types.ModePrecomputed, resp.Mode)
	assert.Equal(t, 15.0, resp.AEPGWh)
	estimator.AssertExpectations(t)
}

func TestUncertainty(t *testing.T) {
	assert.Equal(t, "0.71%", Uncertainty([]float64{0.02, 0.03}))
	assert.Equal(t, "4.5%", Uncertainty([]float64{0.02}))
	assert.Equal(t, "4.5%", Uncertainty([]float64{math.NaN(), 0.02}))
	assert.Equal(t, "4.5%", Uncertainty(nil))
	assert.Equal(t, "0.0%", Uncertainty([]float64{0.02, 0.02}))
	assert.Equal(t, "2.0%", formatPercent(2))
}

func TestHealth(t *testing.T) {
	loader := &enginemock.MockLoader{}
	loader.On("DataAvailable", mock.Anything).Return(nil)
	h := NewRunner(&engine.Engine{Loader: loader}, nil, nil, nil, 5).Health(context.Background())
	assert.Equal(t, types.HealthResponse{
		Status:        "Backend Active",
		Engine:        EngineName,
		DataAvailable: true,
		EngieLoader:   true,
	}, h)

	h = NewRunner(nil, nil, nil, nil, 5).Health(context.Background())
	assert.False(t, h.DataAvailable)
	assert.False(t, h.EngieLoader)
}

func TestDebugNote(t *testing.T) {
	assert.Empty(t, DebugNote(nil))
	assert.Equal(t, MemoryErrorNote, DebugNote(&EngineError{Stage: StageEstimate, Err: engine.ErrResourceExhausted}))
	assert.Equal(t, "boom", DebugNote(&EngineError{Stage: StageLoad, Err: errors.New("boom")}))
	assert.Equal(t, "plain", DebugNote(errors.New("plain")))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("expected_ratio: 1.1\ndefault_energy_unit: mwh\nmax_wind_speed: 30\n"), 0o600))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1.1, cfg.ExpectedRatio)
	assert.Equal(t, units.MWh, cfg.DefaultEnergyUnit)
	assert.Equal(t, 30.0, cfg.MaxWindSpeed)
	assert.Equal(t, 10, cfg.HistogramBins)

	require.NoError(t, os.WriteFile(path, []byte("max_wind_speed: 40\ndefault_energy_unit: joule\n"), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "max_wind_speed")
	assert.ErrorContains(t, err, "default_energy_unit")

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
