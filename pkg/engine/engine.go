// Package engine provides the plant data loaders and the Monte Carlo AEP
// estimator the analysis pipeline runs against.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/windboard/windboard/pkg/telemetry"
)

// ErrResourceExhausted is returned by an Estimator that ran out of memory or
// another hard resource while running.
var ErrResourceExhausted = errors.New("estimator resources exhausted")

// Plant is a loaded plant dataset.
type Plant struct {
	Name   string
	SCADA  *telemetry.Table
	Assets telemetry.AssetTable
}

// Results is the output of a Monte Carlo AEP run. AvailPct holds availability
// losses as fractions, one per simulation.
type Results struct {
	AEPGWh   []float64 `json:"aep_GWh"`
	AvailPct []float64 `json:"avail_pct"`
}

// Loader loads a plant dataset.
type Loader interface {
	// Name identifies the loader in logs and health output.
	Name() string
	// DataAvailable returns an error describing why Load cannot succeed.
	DataAvailable(ctx context.Context) error
	Load(ctx context.Context) (*Plant, error)
}

// Estimator runs the Monte Carlo AEP analysis for a plant.
type Estimator interface {
	Name() string
	Run(ctx context.Context, plant *Plant, numSim int) (Results, error)
}

// Engine holds the configured collaborators. Either may be nil when it has not
// been configured.
type Engine struct {
	Loader    Loader
	Estimator Estimator
}

// Configured sets up the loader and estimator based on flags.
func Configured() *Engine {
	provider := lflag.String("loader", "csv", "Plant data loader to use (available: csv, influx)")
	estimatorURL := lflag.String("estimator-url", "", "Base URL of the Monte Carlo AEP estimator service")
	estimatorTimeout := lflag.Duration("estimator-timeout", 10*time.Minute, "Timeout for a single estimator run")

	csvLoader := configuredCSV()
	influxLoader := configuredInflux()

	e := &Engine{}
	lflag.Do(func() {
		switch *provider {
		case "csv":
			e.Loader = csvLoader
		case "influx":
			if err := influxLoader.Validate(); err != nil {
				panic(fmt.Sprintf("influx validation failed: %v", err))
			}
			influxLoader.Init()
			e.Loader = influxLoader
		default:
			panic(fmt.Sprintf("unknown loader: %s", *provider))
		}
		if *estimatorURL != "" {
			e.Estimator = NewRemoteEstimator(*estimatorURL, *estimatorTimeout)
		}
	})
	return e
}
