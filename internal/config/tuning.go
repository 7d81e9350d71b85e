package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/glyph.codec/internal/glyph/crystal"
	"github.com/banshee-data/glyph.codec/internal/glyph/ifs"
	"github.com/banshee-data/glyph.codec/internal/glyph/lattice"
	"github.com/banshee-data/glyph.codec/internal/glyph/pipeline"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root tuning configuration. Every field is optional;
// the Get* accessors supply the default for a field the file omits.
type TuningConfig struct {
	// Grid
	Resolution    *int `json:"resolution,omitempty"`
	MaxResolution *int `json:"max_resolution,omitempty"`

	// Lattice detection
	WindowSize            *int     `json:"window_size,omitempty"`
	PeakThreshold         *float64 `json:"peak_threshold,omitempty"`
	MaxPeaks              *int     `json:"max_peaks,omitempty"`
	BravaisTolerance      *float64 `json:"bravais_tolerance,omitempty"`
	ConfidenceSampleRange *int     `json:"confidence_sample_range,omitempty"`

	// Crystalline encoder
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`

	// IFS fallback
	IFSTransforms    *int    `json:"ifs_transforms,omitempty"`
	IFSMaxTransforms *int    `json:"ifs_max_transforms,omitempty"`
	IFSIterations    *int    `json:"ifs_iterations,omitempty"`
	IFSSeed          *uint64 `json:"ifs_seed,omitempty"` // 0 seeds from the clock

	// Service
	Workers      *int    `json:"workers,omitempty"`
	JobQueueSize *int    `json:"job_queue_size,omitempty"`
	JobTimeout   *string `json:"job_timeout,omitempty"` // duration string like "5m"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The path must
// have a .json extension and the file must be under 1MB. Omitted fields
// keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. It panics if the file cannot be loaded and is
// intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/glyph/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *TuningConfig) Validate() error {
	positive := []struct {
		name string
		v    *int
	}{
		{"resolution", c.Resolution},
		{"max_resolution", c.MaxResolution},
		{"window_size", c.WindowSize},
		{"max_peaks", c.MaxPeaks},
		{"confidence_sample_range", c.ConfidenceSampleRange},
		{"ifs_transforms", c.IFSTransforms},
		{"ifs_max_transforms", c.IFSMaxTransforms},
		{"ifs_iterations", c.IFSIterations},
		{"workers", c.Workers},
		{"job_queue_size", c.JobQueueSize},
	}
	for _, f := range positive {
		if f.v != nil && *f.v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", f.name, *f.v)
		}
	}

	if c.GetMaxResolution() > voxel.MaxSide {
		return fmt.Errorf("max_resolution must be at most %d, got %d", voxel.MaxSide, c.GetMaxResolution())
	}
	if c.GetResolution() > c.GetMaxResolution() {
		return fmt.Errorf("resolution %d exceeds max_resolution %d", c.GetResolution(), c.GetMaxResolution())
	}
	if c.PeakThreshold != nil && (*c.PeakThreshold < 0 || *c.PeakThreshold >= 1) {
		return fmt.Errorf("peak_threshold must be in [0, 1), got %f", *c.PeakThreshold)
	}
	if c.BravaisTolerance != nil && *c.BravaisTolerance <= 0 {
		return fmt.Errorf("bravais_tolerance must be positive, got %f", *c.BravaisTolerance)
	}
	if c.ConfidenceThreshold != nil && (*c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1) {
		return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", *c.ConfidenceThreshold)
	}
	if c.JobTimeout != nil && *c.JobTimeout != "" {
		if _, err := time.ParseDuration(*c.JobTimeout); err != nil {
			return fmt.Errorf("invalid job_timeout '%s': %w", *c.JobTimeout, err)
		}
	}
	return nil
}

// GetResolution returns the resolution value or the default.
func (c *TuningConfig) GetResolution() int {
	if c.Resolution == nil {
		return pipeline.DefaultResolution
	}
	return *c.Resolution
}

// GetMaxResolution returns the max_resolution value or the default.
func (c *TuningConfig) GetMaxResolution() int {
	if c.MaxResolution == nil {
		return pipeline.DefaultMaxResolution
	}
	return *c.MaxResolution
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return lattice.DefaultWindowSize
	}
	return *c.WindowSize
}

// GetPeakThreshold returns the peak_threshold value or the default.
func (c *TuningConfig) GetPeakThreshold() float64 {
	if c.PeakThreshold == nil {
		return lattice.DefaultPeakThreshold
	}
	return *c.PeakThreshold
}

// GetMaxPeaks returns the max_peaks value or the default.
func (c *TuningConfig) GetMaxPeaks() int {
	if c.MaxPeaks == nil {
		return lattice.DefaultMaxPeaks
	}
	return *c.MaxPeaks
}

// GetBravaisTolerance returns the bravais_tolerance value or the default.
func (c *TuningConfig) GetBravaisTolerance() float64 {
	if c.BravaisTolerance == nil {
		return lattice.DefaultTolerance
	}
	return *c.BravaisTolerance
}

// GetConfidenceSampleRange returns the confidence_sample_range value or the default.
func (c *TuningConfig) GetConfidenceSampleRange() int {
	if c.ConfidenceSampleRange == nil {
		return lattice.DefaultSampleRange
	}
	return *c.ConfidenceSampleRange
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return crystal.DefaultConfidenceThreshold
	}
	return *c.ConfidenceThreshold
}

// GetIFSTransforms returns the ifs_transforms value or the default.
func (c *TuningConfig) GetIFSTransforms() int {
	if c.IFSTransforms == nil {
		return ifs.DefaultTransforms
	}
	return *c.IFSTransforms
}

// GetIFSMaxTransforms returns the ifs_max_transforms value or the default.
func (c *TuningConfig) GetIFSMaxTransforms() int {
	if c.IFSMaxTransforms == nil {
		return ifs.DefaultMaxTransforms
	}
	return *c.IFSMaxTransforms
}

// GetIFSIterations returns the ifs_iterations value or the default.
func (c *TuningConfig) GetIFSIterations() int {
	if c.IFSIterations == nil {
		return ifs.DefaultIterations
	}
	return *c.IFSIterations
}

// GetIFSSeed returns the ifs_seed value, 0 when unset.
func (c *TuningConfig) GetIFSSeed() uint64 {
	if c.IFSSeed == nil {
		return 0
	}
	return *c.IFSSeed
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetJobQueueSize returns the job_queue_size value or the default.
func (c *TuningConfig) GetJobQueueSize() int {
	if c.JobQueueSize == nil {
		return 64
	}
	return *c.JobQueueSize
}

// GetJobTimeout parses and returns the JobTimeout as a time.Duration.
func (c *TuningConfig) GetJobTimeout() time.Duration {
	if c.JobTimeout == nil || *c.JobTimeout == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(*c.JobTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// LatticeConfig builds the detector configuration.
func (c *TuningConfig) LatticeConfig() lattice.Config {
	return lattice.DefaultConfig().
		WithWindowSize(c.GetWindowSize()).
		WithPeakThreshold(c.GetPeakThreshold()).
		WithMaxPeaks(c.GetMaxPeaks()).
		WithTolerance(c.GetBravaisTolerance()).
		WithSampleRange(c.GetConfidenceSampleRange())
}

// CrystalConfig builds the crystalline encoder configuration.
func (c *TuningConfig) CrystalConfig() crystal.Config {
	return crystal.Config{
		ConfidenceThreshold: c.GetConfidenceThreshold(),
		Detector:            c.LatticeConfig(),
	}
}

// IFSConfig builds the IFS encoder configuration.
func (c *TuningConfig) IFSConfig() ifs.Config {
	return ifs.Config{
		Transforms:    c.GetIFSTransforms(),
		MaxTransforms: c.GetIFSMaxTransforms(),
		Iterations:    c.GetIFSIterations(),
		Seed:          c.GetIFSSeed(),
	}
}

// PipelineConfig builds the orchestrator configuration.
func (c *TuningConfig) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Crystal:       c.CrystalConfig(),
		IFS:           c.IFSConfig(),
		Resolution:    c.GetResolution(),
		MaxResolution: c.GetMaxResolution(),
		Workers:       c.GetWorkers(),
	}
}
