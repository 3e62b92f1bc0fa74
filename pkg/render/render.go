// Package render draws analysis charts as embeddable PNG data URIs.
package render

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	charts "github.com/vicanso/go-charts/v2"
	"github.com/windboard/windboard/pkg/aggregate"
	"github.com/windboard/windboard/pkg/types"
)

const dataURIPrefix = "data:image/png;base64,"

// HistogramBins is the number of bars in the AEP distribution plot.
const HistogramBins = 12

// Renderer draws charts with a fixed theme and size.
type Renderer struct {
	theme  string
	width  int
	height int
}

// New returns a Renderer sized like the dashboard's plot panel.
func New() *Renderer {
	return &Renderer{
		theme:  "light",
		width:  1000,
		height: 600,
	}
}

func (r *Renderer) options(title string, labels, legend []string) []charts.OptionFunc {
	return []charts.OptionFunc{
		charts.PNGTypeOption(),
		charts.TitleTextOptionFunc(title),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc(legend, charts.PositionRight),
		charts.ThemeOptionFunc(r.theme),
		charts.WidthOptionFunc(r.width),
		charts.HeightOptionFunc(r.height),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	}
}

func encode(p *charts.Painter) (string, error) {
	buf, err := p.Bytes()
	if err != nil {
		return "", fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf), nil
}

// AEPHistogram plots the distribution of the AEP samples with their mean in
// the title.
func (r *Renderer) AEPHistogram(samples []float64, mean float64, plantName string) (string, error) {
	bins := aggregate.Histogram(samples, HistogramBins)
	if len(bins) == 0 {
		return "", errors.New("no finite AEP samples to plot")
	}
	labels := make([]string, len(bins))
	counts := make([]float64, len(bins))
	for i, b := range bins {
		labels[i] = b.BinLabel
		counts[i] = float64(b.Count)
	}

	title := fmt.Sprintf("AEP Monte Carlo Distribution - %s (mean %s GWh)", plantName, strconv.FormatFloat(mean, 'f', 2, 64))
	p, err := charts.BarRender(
		[][]float64{counts},
		r.options(title, labels, []string{"Frequency"})...,
	)
	if err != nil {
		return "", fmt.Errorf("failed to render AEP histogram: %w", err)
	}
	return encode(p)
}

// Overview plots the ideal and actual power curve of a payload.
func (r *Renderer) Overview(payload types.ChartPayload) (string, error) {
	if len(payload.PowerCurve) == 0 {
		return "", errors.New("no power curve to plot")
	}
	labels := make([]string, len(payload.PowerCurve))
	ideal := make([]float64, len(payload.PowerCurve))
	actual := make([]float64, len(payload.PowerCurve))
	for i, b := range payload.PowerCurve {
		labels[i] = strconv.FormatFloat(b.WindSpeed, 'f', 1, 64)
		ideal[i] = b.IdealPower
		actual[i] = b.ActualPower
	}

	p, err := charts.LineRender(
		[][]float64{ideal, actual},
		r.options("Power Curve (kW by m/s)", labels, []string{"Ideal", "Actual"})...,
	)
	if err != nil {
		return "", fmt.Errorf("failed to render power curve: %w", err)
	}
	return encode(p)
}
