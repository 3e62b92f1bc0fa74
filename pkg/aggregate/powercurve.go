// Package aggregate derives chart views from telemetry columns and AEP
// samples. Every function returns a non-nil slice, empty when nothing could be
// derived.
package aggregate

import (
	"math"
	"sort"

	"github.com/windboard/windboard/pkg/telemetry"
	"github.com/windboard/windboard/pkg/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BucketWidth is the wind speed bucket size in m/s.
const BucketWidth = 0.5

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Bucket snaps a wind speed to the nearest BucketWidth. Halfway values round
// to even, like the plant reports.
func Bucket(ws float64) float64 {
	b := math.RoundToEven(ws/BucketWidth) * BucketWidth
	if b == 0 {
		// drop the sign of -0
		return 0
	}
	return b
}

// PowerCurve bins power by wind speed. Rows missing either value are
// dropped and only buckets within [0, maxWindSpeed] are kept. Each bin holds
// the mean (actual) and max (ideal) power of its bucket.
func PowerCurve(windSpeed, power telemetry.Column, maxWindSpeed float64) []types.PowerCurveBin {
	n := min(windSpeed.Len(), power.Len())
	buckets := make(map[float64][]float64)
	for i := 0; i < n; i++ {
		ws, p := windSpeed.Float(i), power.Float(i)
		if math.IsNaN(ws) || math.IsNaN(p) || math.IsInf(ws, 0) || math.IsInf(p, 0) {
			continue
		}
		b := Bucket(ws)
		if b < 0 || b > maxWindSpeed {
			continue
		}
		buckets[b] = append(buckets[b], p)
	}

	keys := make([]float64, 0, len(buckets))
	for b := range buckets {
		keys = append(keys, b)
	}
	sort.Float64s(keys)

	curve := make([]types.PowerCurveBin, 0, len(keys))
	for _, b := range keys {
		vals := buckets[b]
		curve = append(curve, types.PowerCurveBin{
			WindSpeed:   Round(b, 1),
			ActualPower: Round(stat.Mean(vals, nil), 1),
			IdealPower:  Round(floats.Max(vals), 1),
		})
	}
	return curve
}
