package analysis

import (
	"errors"
	"fmt"
	"os"

	"github.com/windboard/windboard/pkg/units"
	"gopkg.in/yaml.v3"
)

// Config holds the tuning constants of the analysis pipeline.
type Config struct {
	// ExpectedRatio scales actual monthly production into the expected
	// production shown next to it.
	ExpectedRatio float64 `yaml:"expected_ratio"`
	// DefaultEnergyUnit applies to energy columns whose name carries no unit.
	DefaultEnergyUnit units.EnergyUnit `yaml:"default_energy_unit"`
	MaxWindSpeed      float64          `yaml:"max_wind_speed"`
	HistogramBins     int              `yaml:"histogram_bins"`

	DefaultRatedPowerMW   float64 `yaml:"default_rated_power_mw"`
	DefaultCapacityFactor float64 `yaml:"default_capacity_factor"`
	DefaultAvailability   float64 `yaml:"default_availability"`
	DefaultTurbineCount   int     `yaml:"default_turbine_count"`

	// Per-turbine availability is drawn uniformly from this range.
	AvailabilityMin float64 `yaml:"availability_min"`
	AvailabilityMax float64 `yaml:"availability_max"`
}

// maxWindSpeedLimit bounds MaxWindSpeed.
const maxWindSpeedLimit = 30

// DefaultConfig returns the built-in pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ExpectedRatio:         1.05,
		DefaultEnergyUnit:     units.KWh,
		MaxWindSpeed:          25,
		HistogramBins:         10,
		DefaultRatedPowerMW:   units.DefaultRatedCapacityMW,
		DefaultCapacityFactor: 0.33,
		DefaultAvailability:   0.96,
		DefaultTurbineCount:   4,
		AvailabilityMin:       0.92,
		AvailabilityMax:       0.99,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys missing from the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid pipeline config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration and normalizes the energy unit.
func (c *Config) Validate() error {
	var errs []error
	if !(c.ExpectedRatio > 0) {
		errs = append(errs, errors.New("expected_ratio must be positive"))
	}
	u, err := units.ParseEnergyUnit(string(c.DefaultEnergyUnit))
	if err != nil {
		errs = append(errs, fmt.Errorf("default_energy_unit: %w", err))
	} else {
		c.DefaultEnergyUnit = u
	}
	if !(c.MaxWindSpeed > 0) || c.MaxWindSpeed > maxWindSpeedLimit {
		errs = append(errs, fmt.Errorf("max_wind_speed must be in (0, %d]", maxWindSpeedLimit))
	}
	if c.HistogramBins < 1 {
		errs = append(errs, errors.New("histogram_bins must be at least 1"))
	}
	if !(c.DefaultRatedPowerMW > 0) {
		errs = append(errs, errors.New("default_rated_power_mw must be positive"))
	}
	for name, v := range map[string]float64{
		"default_capacity_factor": c.DefaultCapacityFactor,
		"default_availability":    c.DefaultAvailability,
		"availability_min":        c.AvailabilityMin,
		"availability_max":        c.AvailabilityMax,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1]", name))
		}
	}
	if c.AvailabilityMin > c.AvailabilityMax {
		errs = append(errs, errors.New("availability_min must not exceed availability_max"))
	}
	if c.DefaultTurbineCount < 0 {
		errs = append(errs, errors.New("default_turbine_count must not be negative"))
	}
	return errors.Join(errs...)
}
