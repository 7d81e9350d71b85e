package voxel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrInvalidResolution is returned for a resolution that is not positive.
	ErrInvalidResolution = errors.New("voxel: resolution must be positive")
	// ErrInvalidBounds is returned when the bounds give a non-positive pitch.
	ErrInvalidBounds = errors.New("voxel: bounds must span a positive extent")
	// ErrEmptyGrid is returned by operations that need at least one occupied voxel.
	ErrEmptyGrid = errors.New("voxel: grid has no occupied voxels")
	// ErrResolutionTooLarge is returned for a grid side above the allowed maximum.
	ErrResolutionTooLarge = errors.New("voxel: resolution too large")
)

// MaxSide is the largest grid side New will allocate. Callers that accept
// untrusted input apply a tighter limit of their own.
const MaxSide = 2048

// Grid is a cubic boolean occupancy volume of side Resolution. Samples are
// stored one byte per voxel (0 or 1) in C order: index (x*R+y)*R+z.
type Grid struct {
	Resolution int
	Min, Max   r3.Vec // physical bounds in model space
	Pitch      float64
	Data       []uint8
}

// New allocates an empty grid. The pitch is the largest bounds extent
// divided by the resolution.
func New(resolution int, min, max r3.Vec) (*Grid, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidResolution, resolution)
	}
	if resolution > MaxSide {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrResolutionTooLarge, resolution, MaxSide)
	}
	ext := r3.Sub(max, min)
	pitch := math.Max(ext.X, math.Max(ext.Y, ext.Z)) / float64(resolution)
	if !(pitch > 0) || math.IsInf(pitch, 0) {
		return nil, fmt.Errorf("%w: min=%v max=%v", ErrInvalidBounds, min, max)
	}
	return &Grid{
		Resolution: resolution,
		Min:        min,
		Max:        max,
		Pitch:      pitch,
		Data:       make([]uint8, resolution*resolution*resolution),
	}, nil
}

// NewCube allocates an empty grid whose bounds are [0,R]³, giving a pitch of 1.
func NewCube(resolution int) (*Grid, error) {
	r := float64(resolution)
	return New(resolution, r3.Vec{}, r3.Vec{X: r, Y: r, Z: r})
}

// Validate checks the grid invariants.
func (g *Grid) Validate() error {
	if g == nil {
		return errors.New("voxel: nil grid")
	}
	if g.Resolution <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidResolution, g.Resolution)
	}
	if want := g.Resolution * g.Resolution * g.Resolution; len(g.Data) != want {
		return fmt.Errorf("voxel: data has %d samples, want %d", len(g.Data), want)
	}
	if !(g.Pitch > 0) {
		return fmt.Errorf("%w: pitch %v", ErrInvalidBounds, g.Pitch)
	}
	return nil
}

// Shape returns the per-axis extent, always (R, R, R).
func (g *Grid) Shape() [3]int {
	return [3]int{g.Resolution, g.Resolution, g.Resolution}
}

// Index returns the flat offset of voxel (x, y, z).
func (g *Grid) Index(x, y, z int) int {
	return (x*g.Resolution+y)*g.Resolution + z
}

// InBounds reports whether (x, y, z) addresses a voxel of the grid.
func (g *Grid) InBounds(x, y, z int) bool {
	r := g.Resolution
	return x >= 0 && x < r && y >= 0 && y < r && z >= 0 && z < r
}

// At reports whether voxel (x, y, z) is occupied.
func (g *Grid) At(x, y, z int) bool {
	return g.Data[g.Index(x, y, z)] != 0
}

// Set marks voxel (x, y, z) occupied or empty.
func (g *Grid) Set(x, y, z int, occupied bool) {
	var v uint8
	if occupied {
		v = 1
	}
	g.Data[g.Index(x, y, z)] = v
}

// Occupied counts the occupied voxels.
func (g *Grid) Occupied() int {
	n := 0
	for _, v := range g.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Density is the occupied fraction of the volume.
func (g *Grid) Density() float64 {
	if len(g.Data) == 0 {
		return 0
	}
	return float64(g.Occupied()) / float64(len(g.Data))
}

// OccupiedBounds returns the component-wise min and max indices of occupied
// voxels. ok is false for an empty grid.
func (g *Grid) OccupiedBounds() (min, max [3]int, ok bool) {
	r := g.Resolution
	min = [3]int{r, r, r}
	max = [3]int{-1, -1, -1}
	for x := 0; x < r; x++ {
		for y := 0; y < r; y++ {
			base := (x*r + y) * r
			for z := 0; z < r; z++ {
				if g.Data[base+z] == 0 {
					continue
				}
				p := [3]int{x, y, z}
				for a := 0; a < 3; a++ {
					if p[a] < min[a] {
						min[a] = p[a]
					}
					if p[a] > max[a] {
						max[a] = p[a]
					}
				}
				ok = true
			}
		}
	}
	if !ok {
		return [3]int{}, [3]int{}, false
	}
	return min, max, true
}

// Float64s returns the samples cast to float64, in the same order as Data.
func (g *Grid) Float64s() []float64 {
	out := make([]float64, len(g.Data))
	for i, v := range g.Data {
		if v != 0 {
			out[i] = 1
		}
	}
	return out
}

// SizeBytes is the size of the raw occupancy buffer, one byte per voxel.
func (g *Grid) SizeBytes() int64 {
	return int64(len(g.Data))
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Data = make([]uint8, len(g.Data))
	copy(c.Data, g.Data)
	return &c
}
