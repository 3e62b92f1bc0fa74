package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windboard/windboard/pkg/telemetry"
	"github.com/windboard/windboard/pkg/types"
	"github.com/windboard/windboard/pkg/units"
)

func kwhToGWh(v float64) float64 {
	return units.EnergyToGWh(v, "P_avg", units.KWh)
}

func TestBucket(t *testing.T) {
	assert.Equal(t, 3.5, Bucket(3.4))
	assert.Equal(t, 3.0, Bucket(3.2))
	assert.Equal(t, 3.0, Bucket(3.25), "halfway rounds to even")
	assert.Equal(t, 3.5, Bucket(3.75-0.01))
	assert.Equal(t, 4.0, Bucket(3.75))
	assert.False(t, math.Signbit(Bucket(-0.1)))
}

func TestPowerCurve(t *testing.T) {
	ws := telemetry.FloatColumn("Ws_avg", []float64{3.1, 2.9, 5.0, math.NaN(), 31, -2, 5.1, 8})
	p := telemetry.FloatColumn("P_avg", []float64{100, 120, 400, 50, 2000, 0, 500, math.NaN()})

	curve := PowerCurve(ws, p, 30)
	assert.Equal(t, []types.PowerCurveBin{
		{WindSpeed: 3, ActualPower: 110, IdealPower: 120},
		{WindSpeed: 5, ActualPower: 450, IdealPower: 500},
	}, curve)
}

func TestPowerCurveProperties(t *testing.T) {
	n := 500
	wsVals := make([]float64, n)
	pVals := make([]float64, n)
	for i := range wsVals {
		wsVals[i] = float64(i%61) * 0.53
		pVals[i] = float64(i)
	}
	curve := PowerCurve(telemetry.FloatColumn("ws", wsVals), telemetry.FloatColumn("p", pVals), 25)
	require.NotEmpty(t, curve)
	for i, bin := range curve {
		assert.GreaterOrEqual(t, bin.WindSpeed, 0.0)
		assert.LessOrEqual(t, bin.WindSpeed, 25.0)
		assert.Equal(t, 0.0, math.Mod(bin.WindSpeed, BucketWidth))
		assert.LessOrEqual(t, bin.ActualPower, bin.IdealPower)
		if i > 0 {
			assert.Greater(t, bin.WindSpeed, curve[i-1].WindSpeed)
		}
	}
}

func TestPowerCurveEmpty(t *testing.T) {
	curve := PowerCurve(telemetry.Column{}, telemetry.Column{}, 30)
	assert.NotNil(t, curve)
	assert.Empty(t, curve)
}

func hourly(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func TestResolveTimestamps(t *testing.T) {
	start := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("column", func(t *testing.T) {
		table := &telemetry.Table{Columns: []telemetry.Column{
			telemetry.StringColumn("Date_time", []string{"2014-01-01T00:00:00+01:00", "garbage", "2014-02-01 00:00:00"}),
		}}
		ts := ResolveTimestamps(table, "Date_time")
		assert.Equal(t, "column:Date_time", ts.Source)
		assert.Equal(t, []bool{true, false, true}, ts.Valid)
		assert.Equal(t, 1, ts.Dropped)
		assert.Equal(t, time.December, ts.Times[0].Month(), "offsets are converted to UTC")
	})

	t.Run("single level index", func(t *testing.T) {
		table := &telemetry.Table{
			Columns: []telemetry.Column{telemetry.FloatColumn("P_avg", []float64{1, 2})},
			Index:   telemetry.Index{Levels: []telemetry.Column{telemetry.TimeColumn("time", hourly(start, 2))}},
		}
		ts := ResolveTimestamps(table, "")
		assert.Equal(t, "index", ts.Source)
		assert.Equal(t, 0, ts.Dropped)
	})

	t.Run("timestamp level of multi-level index", func(t *testing.T) {
		table := &telemetry.Table{
			Columns: []telemetry.Column{telemetry.FloatColumn("P_avg", []float64{1, 2})},
			Index: telemetry.Index{Levels: []telemetry.Column{
				telemetry.StringColumn("asset_id", []string{"R80711", "R80711"}),
				telemetry.StringColumn("time", []string{"2014-01-01T00:00:00Z", "2014-01-01T01:00:00Z"}),
				telemetry.FloatColumn("seq", []float64{1, 2}),
			}},
		}
		ts := ResolveTimestamps(table, "")
		assert.Equal(t, "index_level:time", ts.Source)
		assert.Equal(t, []bool{true, true}, ts.Valid)
	})

	t.Run("innermost level coerced", func(t *testing.T) {
		table := &telemetry.Table{
			Columns: []telemetry.Column{telemetry.FloatColumn("P_avg", []float64{1, 2})},
			Index: telemetry.Index{Levels: []telemetry.Column{
				telemetry.StringColumn("asset_id", []string{"R80711", "R80711"}),
				telemetry.FloatColumn("seq", []float64{1, 2}),
			}},
		}
		ts := ResolveTimestamps(table, "")
		assert.Equal(t, "index_level:seq", ts.Source)
		assert.Equal(t, 2, ts.Dropped)
	})

	t.Run("missing named column falls back to index", func(t *testing.T) {
		table := &telemetry.Table{
			Columns: []telemetry.Column{telemetry.FloatColumn("P_avg", []float64{1})},
			Index:   telemetry.Index{Levels: []telemetry.Column{telemetry.TimeColumn("time", hourly(start, 1))}},
		}
		assert.Equal(t, "index", ResolveTimestamps(table, "Date_time").Source)
	})

	t.Run("positional index", func(t *testing.T) {
		table := &telemetry.Table{Columns: []telemetry.Column{telemetry.FloatColumn("P_avg", []float64{1, 2, 3})}}
		ts := ResolveTimestamps(table, "")
		assert.Equal(t, 3, ts.Dropped)
		assert.Empty(t, Monthly(ts, table.Columns[0], kwhToGWh, 1.05))
	})
}

func TestMonthlyTwoMonthsHourly(t *testing.T) {
	times := hourly(time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC), (31+28)*24)
	energy := make([]float64, len(times))
	for i := range energy {
		energy[i] = 1000
	}
	energy[5] = math.NaN()
	table := &telemetry.Table{
		Columns: []telemetry.Column{
			telemetry.TimeColumn("Date_time", times),
			telemetry.FloatColumn("P_avg", energy),
		},
	}
	ts := ResolveTimestamps(table, "Date_time")
	records := Monthly(ts, table.Columns[1], kwhToGWh, 1.05)
	require.Len(t, records, 2)
	assert.Equal(t, "Jan", records[0].Month)
	assert.Equal(t, "Feb", records[1].Month)
	assert.InDelta(t, 0.743, records[0].ActualGWh, 1e-9)
	assert.InDelta(t, 0.78, records[0].ExpectedGWh, 1e-9)
	assert.InDelta(t, 0.672, records[1].ActualGWh, 1e-9)
	assert.InDelta(t, 0.706, records[1].ExpectedGWh, 1e-9)
}

func TestMonthlyProperties(t *testing.T) {
	times := hourly(time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC), 24*800)
	energy := make([]float64, len(times))
	for i := range energy {
		energy[i] = float64(i%7) - 2
	}
	ts := TimeSeries{Times: times, Valid: make([]bool, len(times))}
	for i := range ts.Valid {
		ts.Valid[i] = true
	}
	records := Monthly(ts, telemetry.FloatColumn("energy_mwh", energy), func(v float64) float64 {
		return units.EnergyToGWh(v, "energy_mwh", units.KWh)
	}, 1.05)
	require.Len(t, records, 12)
	labels := map[string]struct{}{}
	for _, r := range records {
		labels[r.Month] = struct{}{}
		assert.GreaterOrEqual(t, r.ActualGWh, 0.0)
		assert.GreaterOrEqual(t, r.ExpectedGWh, 0.0)
		assert.Contains(t, types.MonthLabels[:], r.Month)
	}
	assert.Len(t, labels, 12)
}

func TestMonthlyNegativeClamped(t *testing.T) {
	ts := TimeSeries{
		Times: []time.Time{time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC)},
		Valid: []bool{true},
	}
	records := Monthly(ts, telemetry.FloatColumn("P_avg", []float64{-5e6}), kwhToGWh, 1.05)
	require.Len(t, records, 1)
	assert.Equal(t, types.MonthlyRecord{Month: "Mar"}, records[0])
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{12, 13, 14, 14, 15, 16}, 10)
	require.Len(t, bins, 10)
	total := 0
	for i, b := range bins {
		total += b.Count
		if i > 0 {
			assert.Equal(t, bins[i-1].BinEnd, b.BinStart)
		}
		assert.Less(t, b.BinStart, b.BinEnd)
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 12.0, bins[0].BinStart)
	assert.Equal(t, 12.4, bins[0].BinEnd)
	assert.Equal(t, "12.0-12.4", bins[0].BinLabel)
	assert.Equal(t, 1, bins[0].Count)
	assert.Equal(t, 16.0, bins[9].BinEnd)
	assert.Equal(t, 1, bins[9].Count, "last bin includes its right edge")
}

func TestHistogramSkipsNonFinite(t *testing.T) {
	samples := []float64{math.NaN(), 14.2, math.Inf(1), 13.9, math.Inf(-1), 14.8}
	bins := Histogram(samples, 12)
	require.Len(t, bins, 12)
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 3, total)
}

func TestHistogramDegenerate(t *testing.T) {
	bins := Histogram([]float64{14, 14, 14}, 10)
	require.Len(t, bins, 10)
	assert.Equal(t, 13.5, bins[0].BinStart)
	assert.Equal(t, 14.5, bins[9].BinEnd)
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 3, total)

	assert.Empty(t, Histogram(nil, 10))
	assert.NotNil(t, Histogram([]float64{math.NaN()}, 10))
	assert.Len(t, Histogram([]float64{1, 2}, 0), DefaultHistogramBins)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23, Round(1.2345, 2))
	assert.Equal(t, 14.3, Round(14.25, 1))
	assert.Equal(t, -2.0, Round(-1.5, 0))
}
