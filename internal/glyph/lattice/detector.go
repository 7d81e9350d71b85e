package lattice

import (
	"context"
	"math"

	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"github.com/banshee-data/glyph.codec/internal/monitoring"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

var logf = monitoring.Component("Lattice")

// Lattice is a detected periodic structure. Vectors and Origin are in
// voxel-index space.
type Lattice struct {
	Type       Bravais
	Vectors    [3]r3.Vec
	Origin     r3.Vec
	Confidence float64
}

// Analysis carries the intermediate products of a detection run. It is
// what `glyph inspect` reports and plots.
type Analysis struct {
	Autocorrelation *Autocorrelation // nil for an invalid or empty grid
	Peaks           []Peak
	Lattice         *Lattice // nil when no lattice was found
}

// Detector finds lattices. It holds only configuration and is safe for
// concurrent use.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector. An invalid configuration falls back to
// DefaultConfig.
func NewDetector(cfg Config) *Detector {
	if err := cfg.Validate(); err != nil {
		logf("invalid config (%v), using defaults", err)
		cfg = DefaultConfig()
	}
	return &Detector{cfg: cfg}
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect returns the lattice of g, or nil when no periodic structure is
// found. The error is non-nil only if ctx is cancelled.
func (d *Detector) Detect(ctx context.Context, g *voxel.Grid) (*Lattice, error) {
	a, err := d.Analyze(ctx, g)
	if err != nil {
		return nil, err
	}
	return a.Lattice, nil
}

// Analyze runs the detection stages and keeps their intermediate results.
func (d *Detector) Analyze(ctx context.Context, g *voxel.Grid) (*Analysis, error) {
	a := &Analysis{}
	if err := g.Validate(); err != nil {
		logf("skipping invalid grid: %v", err)
		return a, nil
	}

	ac, ok := Autocorrelate(g)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.Autocorrelation = ac
	if !ok {
		return a, nil
	}

	a.Peaks = FindPeaks(ac, d.cfg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors, ok := SelectVectors(a.Peaks)
	if !ok {
		logf("no lattice: %d peaks, fewer than 3 independent offsets", len(a.Peaks))
		return a, nil
	}
	kind := Classify(vectors, d.cfg.Tolerance)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.Lattice = &Lattice{
		Type:       kind,
		Vectors:    vectors,
		Confidence: Confidence(ac, vectors, d.cfg.SampleRange),
	}
	return a, nil
}

// Confidence is the mean autocorrelation at centre + i·v1 + j·v2 + k·v3 for
// i, j, k in [-n, n] excluding the origin. Samples outside the volume are
// skipped; with no sample in bounds the confidence is 0. The result is
// clamped to [0, 1].
func Confidence(ac *Autocorrelation, vectors [3]r3.Vec, n int) float64 {
	if ac == nil {
		return 0
	}
	c := float64(ac.Center())
	centre := r3.Vec{X: c, Y: c, Z: c}
	var samples []float64
	for i := -n; i <= n; i++ {
		for j := -n; j <= n; j++ {
			for k := -n; k <= n; k++ {
				if i == 0 && j == 0 && k == 0 {
					continue
				}
				p := r3.Add(centre, r3.Add(r3.Scale(float64(i), vectors[0]),
					r3.Add(r3.Scale(float64(j), vectors[1]), r3.Scale(float64(k), vectors[2]))))
				x, y, z := roundIndex(p.X), roundIndex(p.Y), roundIndex(p.Z)
				if !ac.InBounds(x, y, z) {
					continue
				}
				samples = append(samples, ac.At(x, y, z))
			}
		}
	}
	if len(samples) == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, stat.Mean(samples, nil)))
}

// roundIndex rounds half to even; non-finite values map to an index that
// is always out of bounds.
func roundIndex(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
		return -1
	}
	return int(math.RoundToEven(v))
}
