package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/windboard/windboard/pkg/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultHistogramBins is the number of bins used for the AEP distribution.
const DefaultHistogramBins = 10

// FiniteSamples returns the finite values of samples, sorted ascending.
func FiniteSamples(samples []float64) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		out = append(out, s)
	}
	sort.Float64s(out)
	return out
}

// Histogram bins the finite samples into equal-width bins spanning their
// range. The last bin includes its right edge. A single distinct value is
// spread over [v-0.5, v+0.5].
func Histogram(samples []float64, bins int) []types.HistogramBin {
	if bins < 1 {
		bins = DefaultHistogramBins
	}
	x := FiniteSamples(samples)
	if len(x) == 0 {
		return []types.HistogramBin{}
	}

	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	edges := floats.Span(make([]float64, bins+1), lo, hi)
	dividers := make([]float64, len(edges))
	copy(dividers, edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, x, nil)

	out := make([]types.HistogramBin, bins)
	for i := range out {
		out[i] = types.HistogramBin{
			BinStart: Round(edges[i], 2),
			BinEnd:   Round(edges[i+1], 2),
			BinLabel: fmt.Sprintf("%.1f-%.1f", edges[i], edges[i+1]),
			Count:    int(counts[i]),
		}
	}
	return out
}
