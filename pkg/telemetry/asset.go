package telemetry

import "math"

// Asset describes one turbine. RatedPower is in the raw units of the source
// table and is NaN when unknown.
type Asset struct {
	ID         string
	RatedPower float64
}

// AssetTable lists the turbines of a plant in source order.
type AssetTable struct {
	Assets []Asset
}

// IDs returns the turbine ids in table order.
func (a AssetTable) IDs() []string {
	ids := make([]string, len(a.Assets))
	for i, asset := range a.Assets {
		ids[i] = asset.ID
	}
	return ids
}

// RatedPower returns the raw rated power of a turbine, or NaN if it is not
// listed.
func (a AssetTable) RatedPower(id string) float64 {
	for _, asset := range a.Assets {
		if asset.ID == id {
			return asset.RatedPower
		}
	}
	return math.NaN()
}
