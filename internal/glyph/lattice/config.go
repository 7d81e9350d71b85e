package lattice

import "fmt"

// Default tuning values. They are heuristics, not invariants.
const (
	DefaultWindowSize    = 5
	DefaultPeakThreshold = 0.5
	DefaultMaxPeaks      = 6
	DefaultTolerance     = 0.1
	DefaultSampleRange   = 2
)

// Config holds the detector tuning parameters.
type Config struct {
	WindowSize    int     // local-maximum neighbourhood edge in voxels (default: 5)
	PeakThreshold float64 // minimum normalized amplitude for a peak (default: 0.5)
	MaxPeaks      int     // candidates kept after ranking, self peak included (default: 6)
	Tolerance     float64 // Bravais length/angle tolerance (default: 0.1)
	SampleRange   int     // lattice combinations i,j,k in [-n, n] sampled for confidence (default: 2)
}

// DefaultConfig returns the stock detector configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:    DefaultWindowSize,
		PeakThreshold: DefaultPeakThreshold,
		MaxPeaks:      DefaultMaxPeaks,
		Tolerance:     DefaultTolerance,
		SampleRange:   DefaultSampleRange,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("WindowSize must be at least 1, got %d", c.WindowSize)
	}
	if c.PeakThreshold < 0 || c.PeakThreshold >= 1 {
		return fmt.Errorf("PeakThreshold must be in [0, 1), got %f", c.PeakThreshold)
	}
	if c.MaxPeaks < 1 {
		return fmt.Errorf("MaxPeaks must be at least 1, got %d", c.MaxPeaks)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("Tolerance must be positive, got %f", c.Tolerance)
	}
	if c.SampleRange < 1 {
		return fmt.Errorf("SampleRange must be at least 1, got %d", c.SampleRange)
	}
	return nil
}

// WithWindowSize sets the local-maximum window size.
func (c Config) WithWindowSize(n int) Config {
	c.WindowSize = n
	return c
}

// WithPeakThreshold sets the peak amplitude threshold.
func (c Config) WithPeakThreshold(v float64) Config {
	c.PeakThreshold = v
	return c
}

// WithMaxPeaks sets how many ranked peaks are kept.
func (c Config) WithMaxPeaks(n int) Config {
	c.MaxPeaks = n
	return c
}

// WithTolerance sets the Bravais classification tolerance.
func (c Config) WithTolerance(v float64) Config {
	c.Tolerance = v
	return c
}

// WithSampleRange sets the lattice combination range used for confidence.
func (c Config) WithSampleRange(n int) Config {
	c.SampleRange = n
	return c
}
