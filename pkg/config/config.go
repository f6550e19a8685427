// Package config provides configuration loading and management for volstraighten.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"volstraighten/pkg/straighten"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for rasterization and resampling
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Straightening parameters
	Straighten struct {
		// Step is the arc length between output slices, in voxels
		Step float64 `yaml:"step"`

		// Margin is added to the largest half-width to size every output slice
		Margin int `yaml:"margin"`

		// ConflictTolerance is the frame-index band treated as one cross-section
		ConflictTolerance int `yaml:"conflictTolerance"`

		// GrowthRounds caps boundary growth
		GrowthRounds int `yaml:"growthRounds"`

		// SuperSampleFactor multiplies the corner distance between quads into a plane count
		SuperSampleFactor float64 `yaml:"superSampleFactor"`

		// MaxBendDegrees rejects curves that turn more than this between slices
		MaxBendDegrees float64 `yaml:"maxBendDegrees"`

		// EllipsoidThickness is the cross-section ellipsoid radius along the curve
		EllipsoidThickness float64 `yaml:"ellipsoidThickness"`

		// UpRadiusRatio scales the half-width into the ellipsoid's up radius
		UpRadiusRatio float64 `yaml:"upRadiusRatio"`

		// StopOnCoverage ends growth once every annotation is labeled
		StopOnCoverage bool `yaml:"stopOnCoverage"`

		// SearchRadius bounds the nearest-voxel fallback when re-projecting points
		SearchRadius float64 `yaml:"searchRadius"`
	} `yaml:"straighten"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults writes the label volume next to the outputs
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// Verbose enables pipeline logging on stderr
		Verbose bool `yaml:"verbose"`

		// SliceFormat is the image format of exported slices: tiff, png or jpeg
		SliceFormat string `yaml:"sliceFormat"`

		// PlotProfile writes a per-slice profile plot
		PlotProfile bool `yaml:"plotProfile"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	// Set default straightening parameters
	p := straighten.DefaultParams()
	cfg.Straighten.Step = p.Step
	cfg.Straighten.Margin = p.Margin
	cfg.Straighten.ConflictTolerance = p.ConflictTolerance
	cfg.Straighten.GrowthRounds = p.GrowthRounds
	cfg.Straighten.SuperSampleFactor = p.SuperSampleFactor
	cfg.Straighten.MaxBendDegrees = p.MaxBendDegrees
	cfg.Straighten.EllipsoidThickness = p.EllipsoidThickness
	cfg.Straighten.UpRadiusRatio = p.UpRadiusRatio
	cfg.Straighten.StopOnCoverage = p.StopOnCoverage
	cfg.Straighten.SearchRadius = p.SearchRadius

	// Set default output parameters
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.Verbose = false
	cfg.Output.SliceFormat = "tiff"
	cfg.Output.PlotProfile = false

	return cfg
}

// Params converts the configuration into pipeline parameters
func (c *Config) Params() straighten.Params {
	return straighten.Params{
		Step:               c.Straighten.Step,
		Margin:             c.Straighten.Margin,
		MaxBendDegrees:     c.Straighten.MaxBendDegrees,
		ConflictTolerance:  c.Straighten.ConflictTolerance,
		GrowthRounds:       c.Straighten.GrowthRounds,
		StopOnCoverage:     c.Straighten.StopOnCoverage,
		SuperSampleFactor:  c.Straighten.SuperSampleFactor,
		EllipsoidThickness: c.Straighten.EllipsoidThickness,
		UpRadiusRatio:      c.Straighten.UpRadiusRatio,
		SearchRadius:       c.Straighten.SearchRadius,
		NumCores:           c.Processing.NumCores,
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return errors.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	switch c.Output.SliceFormat {
	case "tiff", "png", "jpeg":
	default:
		return errors.Errorf("output.sliceFormat must be tiff, png or jpeg, got %q", c.Output.SliceFormat)
	}
	return errors.Wrap(c.Params().Validate(), "invalid straighten section")
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
