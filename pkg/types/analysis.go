package types

// DefaultPlantName is used when a request does not name a plant.
const DefaultPlantName = "La Haute Borne"

// Mode describes where an analysis response came from.
type Mode string

const (
	ModeRealData           Mode = "REAL_DATA"
	ModeSimulationFallback Mode = "SIMULATION_FALLBACK"
	ModePrecomputed        Mode = "REAL_DATA (PRE-COMPUTED)"
	ModeErrorFallback      Mode = "ERROR_FALLBACK"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// AnalysisRequest is the body accepted by the analyze endpoint.
type AnalysisRequest struct {
	PlantName string `json:"plant_name"`
}

// AnalysisResponse is returned by the analyze endpoint and persisted as the
// pre-computed artifact.
type AnalysisResponse struct {
	Status      string       `json:"status"`
	Mode        Mode         `json:"mode"`
	DebugNote   string       `json:"debug_note,omitempty"`
	AEPGWh      float64      `json:"aep_gwh"`
	Uncertainty string       `json:"uncertainty"`
	PlotImage   string       `json:"plot_image"`
	ChartData   ChartPayload `json:"chart_data"`
}

// HealthResponse is returned by the root health endpoint.
type HealthResponse struct {
	Status           string `json:"status"`
	Engine           string `json:"engine"`
	LibraryInstalled bool   `json:"library_installed"`
	DataAvailable    bool   `json:"data_available"`
	EngieLoader      bool   `json:"engie_loader"`
}

// MissingResult is served in static mode when no pre-computed result could be
// loaded at startup.
type MissingResult struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Mode   Mode   `json:"mode"`
}
