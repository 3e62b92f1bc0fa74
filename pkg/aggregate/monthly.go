package aggregate

import (
	"math"
	"time"

	"github.com/windboard/windboard/pkg/telemetry"
	"github.com/windboard/windboard/pkg/types"
)

// TimeSeries is the per-row timestamp of a table. Rows whose timestamp could
// not be parsed have Valid[i] == false.
type TimeSeries struct {
	Times   []time.Time
	Valid   []bool
	Source  string
	Dropped int
}

func timeSeries(c telemetry.Column, source string) TimeSeries {
	ts := TimeSeries{
		Times:  make([]time.Time, c.Len()),
		Valid:  make([]bool, c.Len()),
		Source: source,
	}
	for i := range ts.Times {
		ts.Times[i], ts.Valid[i] = c.Time(i)
		if !ts.Valid[i] {
			ts.Dropped++
		}
	}
	return ts
}

func looksLikeTime(c telemetry.Column) bool {
	if c.Len() == 0 {
		return false
	}
	switch c.Kind {
	case telemetry.KindTime:
		return true
	case telemetry.KindString:
		_, ok := telemetry.ParseTime(c.Strings[0])
		return ok
	default:
		return false
	}
}

// ResolveTimestamps finds the timestamp of every row of table, trying in
// order: the named timestamp column, a single-level index, the first
// timestamp-like level of a multi-level index, then the innermost index level.
// A table addressed only by position has no timestamps.
func ResolveTimestamps(table *telemetry.Table, column string) TimeSeries {
	if column != "" {
		if c, ok := table.Column(column); ok {
			return timeSeries(c, "column:"+column)
		}
	}
	levels := table.Index.Levels
	switch len(levels) {
	case 0:
		n := table.Len()
		return TimeSeries{
			Times:   make([]time.Time, n),
			Valid:   make([]bool, n),
			Source:  "none",
			Dropped: n,
		}
	case 1:
		return timeSeries(levels[0], "index")
	}
	for _, l := range levels {
		if looksLikeTime(l) {
			return timeSeries(l, "index_level:"+l.Name)
		}
	}
	last := levels[len(levels)-1]
	return timeSeries(last, "index_level:"+last.Name)
}

// Monthly sums energy per calendar month. toGWh converts a raw monthly sum to
// GWh. Expected production is the actual production scaled by expectedRatio.
// Missing energy values are skipped and negative totals are reported as zero.
func Monthly(ts TimeSeries, energy telemetry.Column, toGWh func(float64) float64, expectedRatio float64) []types.MonthlyRecord {
	var (
		sums [12]float64
		seen [12]bool
	)
	n := min(len(ts.Times), energy.Len())
	for i := 0; i < n; i++ {
		if !ts.Valid[i] {
			continue
		}
		m := int(ts.Times[i].Month()) - 1
		seen[m] = true
		if v := energy.Float(i); !math.IsNaN(v) && !math.IsInf(v, 0) {
			sums[m] += v
		}
	}

	records := make([]types.MonthlyRecord, 0, 12)
	for m := range sums {
		if !seen[m] {
			continue
		}
		actual := Round(math.Max(toGWh(sums[m]), 0), 3)
		records = append(records, types.MonthlyRecord{
			Month:       types.MonthLabels[m],
			ExpectedGWh: Round(actual*expectedRatio, 3),
			ActualGWh:   actual,
		})
	}
	return records
}
