// Package units converts raw telemetry magnitudes to canonical units.
package units

import (
	"fmt"
	"math"
	"strings"
)

// EnergyUnit is the unit of an energy column.
type EnergyUnit string

const (
	Wh  EnergyUnit = "Wh"
	KWh EnergyUnit = "kWh"
	MWh EnergyUnit = "MWh"
)

// DefaultRatedCapacityMW is used when a turbine has no usable rated power.
const DefaultRatedCapacityMW = 2.05

// ParseEnergyUnit parses a unit name case-insensitively.
func ParseEnergyUnit(s string) (EnergyUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wh":
		return Wh, nil
	case "kwh":
		return KWh, nil
	case "mwh":
		return MWh, nil
	default:
		return "", fmt.Errorf("unknown energy unit: %q", s)
	}
}

// PerGWh returns how many of the unit make up one GWh.
func (u EnergyUnit) PerGWh() float64 {
	switch u {
	case Wh:
		return 1e9
	case MWh:
		return 1e3
	default:
		return 1e6
	}
}

// EnergyUnitFromName guesses the unit of a column from its name, falling
// back to def when the name carries no unit.
func EnergyUnitFromName(column string, def EnergyUnit) EnergyUnit {
	name := strings.ToLower(column)
	switch {
	case strings.Contains(name, "kwh"):
		return KWh
	case strings.Contains(name, "mwh"):
		return MWh
	case strings.Contains(name, "wh"):
		return Wh
	default:
		return def
	}
}

// EnergyToGWh converts a value from the named column to GWh.
func EnergyToGWh(value float64, column string, def EnergyUnit) float64 {
	return value / EnergyUnitFromName(column, def).PerGWh()
}

// RatedCapacityMW converts a raw rated power to MW. Values above 10 are taken
// to be kW.
func RatedCapacityMW(raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return DefaultRatedCapacityMW
	}
	if raw > 10 {
		return raw / 1000
	}
	return raw
}

// CapacityFactor returns meanPower as a fraction of capacityMW. Mean power
// above 10,000 is taken to be W, anything else kW. The result is clamped to
// [0, 1].
func CapacityFactor(meanPower, capacityMW float64) float64 {
	if !(capacityMW > 0) || math.IsInf(capacityMW, 0) || math.IsNaN(meanPower) {
		return 0
	}
	var cf float64
	if meanPower > 10000 {
		cf = meanPower / (capacityMW * 1e6)
	} else {
		cf = meanPower / (capacityMW * 1e3)
	}
	return math.Min(math.Max(cf, 0), 1)
}
