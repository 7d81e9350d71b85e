// Package ifs implements the fallback encoder: a set of random contractive
// affine maps (an iterated function system) plus the occupied bounding box.
//
// The encoder is total. It produces a well-formed payload for any grid,
// including an empty one. The maps are not fitted to the shape; Render
// plays the chaos game over them to produce an approximation inside the
// bounding box.
package ifs

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"gonum.org/v1/gonum/mat"
)

// Default tuning values.
const (
	DefaultTransforms    = 8
	DefaultMaxTransforms = 32
	DefaultIterations    = 500
)

// Affine map parameter ranges.
const (
	minScale       = 0.5
	scaleSpan      = 0.3
	translationMag = 0.5 // translations are drawn from [-mag/2, mag/2)
)

// Config holds the IFS encoder settings.
type Config struct {
	Transforms    int    // maps to generate, capped by MaxTransforms (default: 8)
	MaxTransforms int    // upper bound on maps per payload (default: 32)
	Iterations    int    // chaos-game iterations recorded in the payload (default: 500)
	Seed          uint64 // random seed; 0 draws a seed from the runtime
}

// DefaultConfig returns the stock encoder configuration.
func DefaultConfig() Config {
	return Config{
		Transforms:    DefaultTransforms,
		MaxTransforms: DefaultMaxTransforms,
		Iterations:    DefaultIterations,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Transforms < 1 {
		return fmt.Errorf("Transforms must be at least 1, got %d", c.Transforms)
	}
	if c.MaxTransforms < 1 {
		return fmt.Errorf("MaxTransforms must be at least 1, got %d", c.MaxTransforms)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("Iterations must be at least 1, got %d", c.Iterations)
	}
	return nil
}

// Count returns how many maps an encoder generates.
func (c Config) Count() int {
	return max(1, min(c.Transforms, c.MaxTransforms))
}

// Encoder produces IFS payloads. One encoder may be shared by concurrent
// callers; draws from its random source are serialized.
type Encoder struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEncoder creates an encoder. When rng is nil a source is seeded from
// cfg.Seed, or from the runtime if that is zero. Invalid counts fall back
// to the defaults.
func NewEncoder(cfg Config, rng *rand.Rand) *Encoder {
	d := DefaultConfig()
	if cfg.Transforms < 1 {
		cfg.Transforms = d.Transforms
	}
	if cfg.MaxTransforms < 1 {
		cfg.MaxTransforms = d.MaxTransforms
	}
	if cfg.Iterations < 1 {
		cfg.Iterations = d.Iterations
	}
	if rng == nil {
		rng = NewRand(cfg.Seed)
	}
	return &Encoder{cfg: cfg, rng: rng}
}

// NewRand returns a PCG source for seed. A zero seed uses the wall clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Encode builds the payload for g. It only fails if ctx is cancelled.
func (e *Encoder) Encode(ctx context.Context, g *voxel.Grid) (*artifact.IFSPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := e.cfg.Count()
	p := &artifact.IFSPayload{
		Type:        artifact.EncodingIFS,
		Transforms:  make([]artifact.Transform, n),
		Iterations:  e.cfg.Iterations,
		BoundingBox: BoundingBox(g),
	}

	e.mu.Lock()
	for i := range p.Transforms {
		scale := minScale + e.rng.Float64()*scaleSpan
		var angles, shift [3]float64
		for j := range angles {
			angles[j] = e.rng.Float64() * 2 * math.Pi
		}
		for j := range shift {
			shift[j] = (e.rng.Float64() - 0.5) * translationMag
		}
		p.Transforms[i] = artifact.Transform{
			Matrix:      Affine(scale, angles, shift),
			Probability: 1 / float64(n),
		}
	}
	e.mu.Unlock()

	return p, nil
}

// BoundingBox returns the inclusive index range of occupied voxels. An
// empty or malformed grid yields the full index range.
func BoundingBox(g *voxel.Grid) artifact.BoundingBox {
	if g == nil || g.Resolution <= 0 {
		return artifact.BoundingBox{}
	}
	if g.Validate() == nil {
		if lo, hi, ok := g.OccupiedBounds(); ok {
			return artifact.BoundingBox{Min: lo, Max: hi}
		}
	}
	r := g.Resolution - 1
	return artifact.BoundingBox{Max: [3]int{r, r, r}}
}

// Affine builds the row-major 4×4 matrix of scale·Rz·Ry·Rx followed by a
// translation. angles are the rotations about x, y and z in radians.
func Affine(scale float64, angles, shift [3]float64) [16]float64 {
	sx, cx := math.Sincos(angles[0])
	sy, cy := math.Sincos(angles[1])
	sz, cz := math.Sincos(angles[2])
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cx, -sx,
		0, sx, cx,
	})
	ry := mat.NewDense(3, 3, []float64{
		cy, 0, sy,
		0, 1, 0,
		-sy, 0, cy,
	})
	rz := mat.NewDense(3, 3, []float64{
		cz, -sz, 0,
		sz, cz, 0,
		0, 0, 1,
	})

	var yx, zyx, s mat.Dense
	yx.Mul(ry, rx)
	zyx.Mul(rz, &yx)
	s.Scale(scale, &zyx)

	var m [16]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i*4+j] = s.At(i, j)
		}
		m[i*4+3] = shift[i]
	}
	m[15] = 1
	return m
}
