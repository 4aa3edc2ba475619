package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/flow.report/internal/edie"
	"github.com/banshee-data/flow.report/internal/fundamental"
	"github.com/banshee-data/flow.report/internal/render"
	"github.com/banshee-data/flow.report/internal/trajectory"
)

// DefaultConfigPath is the path to the canonical analysis defaults file,
// describing the single-lane ring road used by the study.
const DefaultConfigPath = "config/analysis.defaults.json"

const maxConfigSize = 1 * 1024 * 1024 // 1MB

// AnalysisConfig describes the corridor and the aggregation grid. The grid
// and corridor geometry are required; everything else falls back to the
// Get* defaults when omitted.
type AnalysisConfig struct {
	DX             *float64           `json:"dx"`
	DT             *float64           `json:"dt"`
	CorridorLength *float64           `json:"corridor_length"`
	SegmentOffsets map[string]float64 `json:"segment_offsets"`

	Workers      *int    `json:"workers,omitempty"`
	VehicleClass *string `json:"vehicle_class,omitempty"` // all, regular or stable

	// Plot colour range, as percentiles of the plotted quantity.
	PlotUpperPercentile *float64 `json:"plot_upper_percentile,omitempty"`
	PlotLowerPercentile *float64 `json:"plot_lower_percentile,omitempty"`
	TimeSpaceMaxPoints  *int     `json:"time_space_max_points,omitempty"`

	// Greenshields jam density bounds in veh/km.
	FitMinJamDensity *float64 `json:"fit_min_jam_density,omitempty"`
	FitMaxJamDensity *float64 `json:"fit_max_jam_density,omitempty"`
}

// LoadAnalysisConfig loads and validates an AnalysisConfig from a JSON file.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AnalysisConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", cleanPath, err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or one of its parents. It panics when the file cannot be found and is
// intended for tests.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that required values are present and all values are in
// range.
func (c *AnalysisConfig) Validate() error {
	var errs []error
	positive := func(name string, v *float64) {
		switch {
		case v == nil:
			errs = append(errs, fmt.Errorf("%s is required", name))
		case !(*v > 0):
			errs = append(errs, fmt.Errorf("%s must be positive, got %g", name, *v))
		}
	}
	positive("dx", c.DX)
	positive("dt", c.DT)
	positive("corridor_length", c.CorridorLength)

	if c.SegmentOffsets == nil {
		errs = append(errs, errors.New("segment_offsets is required (use {} for a single segment)"))
	}
	for seg, off := range c.SegmentOffsets {
		if off < 0 || (c.CorridorLength != nil && off >= *c.CorridorLength) {
			errs = append(errs, fmt.Errorf("segment_offsets[%q] = %g is outside the corridor", seg, off))
		}
	}

	if c.Workers != nil && *c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be non-negative, got %d", *c.Workers))
	}
	if c.VehicleClass != nil {
		if _, err := ParseClass(*c.VehicleClass); err != nil {
			errs = append(errs, err)
		}
	}

	lo, hi := c.GetPlotLowerPercentile(), c.GetPlotUpperPercentile()
	if lo < 0 || hi > 100 || lo >= hi {
		errs = append(errs, fmt.Errorf("plot percentiles must satisfy 0 <= lower < upper <= 100, got %g and %g", lo, hi))
	}
	if c.TimeSpaceMaxPoints != nil && *c.TimeSpaceMaxPoints < 0 {
		errs = append(errs, fmt.Errorf("time_space_max_points must be non-negative, got %d", *c.TimeSpaceMaxPoints))
	}

	b := c.FitBounds()
	if !(b.MinJam > 0) || b.MinJam >= b.MaxJam {
		errs = append(errs, fmt.Errorf("fit jam density bounds must satisfy 0 < min < max, got [%g, %g]", b.MinJam, b.MaxJam))
	}
	return errors.Join(errs...)
}

// ParseClass maps a vehicle class name to a trajectory class. "all" and
// the empty string select every vehicle.
func ParseClass(s string) (string, error) {
	switch s {
	case "", "all":
		return trajectory.ClassAll, nil
	case trajectory.ClassRegular, trajectory.ClassStable:
		return s, nil
	}
	return "", fmt.Errorf("vehicle_class must be all, regular or stable, got %q", s)
}

// EdieParams returns the aggregation grid. The config must be valid.
func (c *AnalysisConfig) EdieParams() edie.Params {
	return edie.Params{DX: *c.DX, DT: *c.DT, Length: *c.CorridorLength}
}

// Offsets returns the segment offset table.
func (c *AnalysisConfig) Offsets() trajectory.SegmentOffsets {
	out := make(trajectory.SegmentOffsets, len(c.SegmentOffsets))
	for k, v := range c.SegmentOffsets {
		out[k] = v
	}
	return out
}

// GetWorkers returns the aggregation worker count; 0 means one per CPU.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetVehicleClass returns the configured class filter.
func (c *AnalysisConfig) GetVehicleClass() string {
	if c.VehicleClass == nil {
		return trajectory.ClassAll
	}
	class, err := ParseClass(*c.VehicleClass)
	if err != nil {
		return trajectory.ClassAll
	}
	return class
}

func (c *AnalysisConfig) GetPlotUpperPercentile() float64 {
	if c.PlotUpperPercentile == nil {
		return render.DefaultContourOptions.Upper
	}
	return *c.PlotUpperPercentile
}

func (c *AnalysisConfig) GetPlotLowerPercentile() float64 {
	if c.PlotLowerPercentile == nil {
		return render.DefaultContourOptions.Lower
	}
	return *c.PlotLowerPercentile
}

// GetTimeSpaceMaxPoints caps the points drawn in time-space diagrams.
func (c *AnalysisConfig) GetTimeSpaceMaxPoints() int {
	if c.TimeSpaceMaxPoints == nil {
		return 200000
	}
	return *c.TimeSpaceMaxPoints
}

// ContourOptions returns the plot colour range settings.
func (c *AnalysisConfig) ContourOptions() render.ContourOptions {
	return render.ContourOptions{Lower: c.GetPlotLowerPercentile(), Upper: c.GetPlotUpperPercentile()}
}

// FitBounds returns the Greenshields jam density bounds.
func (c *AnalysisConfig) FitBounds() fundamental.Bounds {
	b := fundamental.DefaultBounds
	if c.FitMinJamDensity != nil {
		b.MinJam = *c.FitMinJamDensity
	}
	if c.FitMaxJamDensity != nil {
		b.MaxJam = *c.FitMaxJamDensity
	}
	return b
}
