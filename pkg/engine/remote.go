package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/windboard/windboard/pkg/common"
	"github.com/windboard/windboard/pkg/units"
)

// RemoteEstimator runs the Monte Carlo AEP analysis on a remote estimator
// service.
type RemoteEstimator struct {
	baseURL string
	client  *http.Client
}

// NewRemoteEstimator returns an estimator posting runs to baseURL.
func NewRemoteEstimator(baseURL string, timeout time.Duration) *RemoteEstimator {
	return &RemoteEstimator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  common.HTTPClient(timeout),
	}
}

type runTurbine struct {
	ID         string  `json:"id"`
	RatedPower float64 `json:"rated_power_mw"`
}

type runRequest struct {
	PlantName string       `json:"plant_name"`
	NumSim    int          `json:"num_sim"`
	Rows      int          `json:"rows"`
	Columns   []string     `json:"columns"`
	Turbines  []runTurbine `json:"turbines"`
}

// Name implements Estimator.
func (e *RemoteEstimator) Name() string {
	return "remote"
}

// Run implements Estimator. A 507 Insufficient Storage or 503 response with
// a memory error is reported as ErrResourceExhausted.
func (e *RemoteEstimator) Run(ctx context.Context, plant *Plant, numSim int) (Results, error) {
	if plant == nil {
		return Results{}, errors.New("no plant to run")
	}
	reqBody := runRequest{
		PlantName: plant.Name,
		NumSim:    numSim,
		Rows:      plant.SCADA.Len(),
		Turbines:  make([]runTurbine, len(plant.Assets.Assets)),
	}
	if plant.SCADA != nil {
		reqBody.Columns = plant.SCADA.Names()
	}
	for i, a := range plant.Assets.Assets {
		reqBody.Turbines[i] = runTurbine{ID: a.ID, RatedPower: units.RatedCapacityMW(a.RatedPower)}
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return Results{}, fmt.Errorf("failed to encode run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/aep/run", bytes.NewReader(b))
	if err != nil {
		return Results{}, fmt.Errorf("failed to create run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Results{}, fmt.Errorf("estimator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		if resp.StatusCode == http.StatusInsufficientStorage ||
			(resp.StatusCode == http.StatusServiceUnavailable && strings.Contains(strings.ToLower(msg), "memory")) {
			return Results{}, fmt.Errorf("%w: %s", ErrResourceExhausted, msg)
		}
		return Results{}, fmt.Errorf("estimator returned status %d: %s", resp.StatusCode, msg)
	}

	var results Results
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Results{}, fmt.Errorf("failed to decode estimator results: %w", err)
	}
	return results, nil
}
