package types

// PowerCurveBin is one 0.5 m/s wind speed bucket of the observed power curve.
type PowerCurveBin struct {
	WindSpeed   float64 `json:"wind_speed"`
	ActualPower float64 `json:"actual_power"` // mean power in the bucket
	IdealPower  float64 `json:"ideal_power"`  // max power in the bucket
}

// MonthlyRecord holds the energy produced in one calendar month.
type MonthlyRecord struct {
	Month       string  `json:"month"`
	ExpectedGWh float64 `json:"expected_gwh"`
	ActualGWh   float64 `json:"actual_gwh"`
}

// HistogramBin is one bin of the AEP sample distribution.
type HistogramBin struct {
	BinStart float64 `json:"bin_start"`
	BinEnd   float64 `json:"bin_end"`
	BinLabel string  `json:"bin_label"`
	Count    int     `json:"count"`
}

// TurbineRecord summarizes a single turbine.
type TurbineRecord struct {
	TurbineID       string  `json:"turbine_id"`
	CapacityFactor  float64 `json:"capacity_factor"`
	Availability    float64 `json:"availability"`
	AnnualEnergyMWh float64 `json:"annual_energy_mwh"`
}

// Summary holds plant level figures shown above the charts.
type Summary struct {
	TotalTurbines     int     `json:"total_turbines"`
	RatedPowerMW      float64 `json:"rated_power_mw"`
	AvgCapacityFactor float64 `json:"avg_capacity_factor"`
	AvgAvailability   float64 `json:"avg_availability"`
	PlantName         string  `json:"plant_name"`
	NumSimulations    int     `json:"num_simulations"`
}

// ChartPayload is the chart-ready view of an analysis. Real and synthetic
// payloads share this exact shape.
type ChartPayload struct {
	PowerCurve        []PowerCurveBin `json:"power_curve"`
	MonthlyProduction []MonthlyRecord `json:"monthly_production"`
	AEPDistribution   []HistogramBin  `json:"aep_distribution"`
	TurbineComparison []TurbineRecord `json:"turbine_comparison"`
	Summary           Summary         `json:"summary"`
}

// MonthLabels are the canonical month labels, January first.
var MonthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
