package voxel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoPoints is returned when voxelizing an empty point set.
var ErrNoPoints = errors.New("voxel: no points to voxelize")

// Voxelizer converts model geometry into an occupancy grid at the requested
// resolution. Mesh loading and repair happen before this contract.
type Voxelizer interface {
	Voxelize(points []r3.Vec, resolution int) (*Grid, error)
}

// Normalizer re-centres a grid so its occupancy centroid sits at the grid
// centre.
type Normalizer interface {
	Normalize(g *Grid) (*Grid, error)
}

// PointVoxelizer marks every voxel that contains at least one input point.
// The bounds are the axis-aligned box of the points.
type PointVoxelizer struct{}

// Voxelize implements Voxelizer.
func (PointVoxelizer) Voxelize(points []r3.Vec, resolution int) (*Grid, error) {
	return VoxelizePoints(points, resolution)
}

// VoxelizePoints builds a grid of the given resolution over the bounding box
// of points. Indices are floor((p-min)/pitch), clipped to [0, R-1] so points
// on the max face land in the last voxel.
func VoxelizePoints(points []r3.Vec, resolution int) (*Grid, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	min, max := points[0], points[0]
	for _, p := range points[1:] {
		min = r3.Vec{X: math.Min(min.X, p.X), Y: math.Min(min.Y, p.Y), Z: math.Min(min.Z, p.Z)}
		max = r3.Vec{X: math.Max(max.X, p.X), Y: math.Max(max.Y, p.Y), Z: math.Max(max.Z, p.Z)}
	}
	g, err := New(resolution, min, max)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		d := r3.Scale(1/g.Pitch, r3.Sub(p, min))
		x, y, z := clampIndex(d.X, resolution), clampIndex(d.Y, resolution), clampIndex(d.Z, resolution)
		g.Data[g.Index(x, y, z)] = 1
	}
	return g, nil
}

func clampIndex(v float64, r int) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v >= float64(r) {
		return r - 1
	}
	return int(v)
}

// CentroidNormalizer shifts occupancy cyclically so the integer centroid of
// the occupied voxels lands on index R/2 of every axis.
type CentroidNormalizer struct{}

// Normalize implements Normalizer.
func (CentroidNormalizer) Normalize(g *Grid) (*Grid, error) {
	return Normalize(g)
}

// Normalize returns a cyclically shifted copy of g with its occupancy
// centroid moved to the grid centre. Bounds and pitch are preserved.
// An empty grid has no centroid and yields ErrEmptyGrid.
func Normalize(g *Grid) (*Grid, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	r := g.Resolution
	var sum [3]float64
	n := 0
	for x := 0; x < r; x++ {
		for y := 0; y < r; y++ {
			for z := 0; z < r; z++ {
				if g.At(x, y, z) {
					sum[0] += float64(x)
					sum[1] += float64(y)
					sum[2] += float64(z)
					n++
				}
			}
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("normalize: %w", ErrEmptyGrid)
	}
	var shift [3]int
	for a := 0; a < 3; a++ {
		shift[a] = r/2 - int(sum[a]/float64(n))
	}

	out := g.Clone()
	for i := range out.Data {
		out.Data[i] = 0
	}
	for x := 0; x < r; x++ {
		for y := 0; y < r; y++ {
			for z := 0; z < r; z++ {
				if g.At(x, y, z) {
					out.Set(wrap(x+shift[0], r), wrap(y+shift[1], r), wrap(z+shift[2], r), true)
				}
			}
		}
	}
	return out, nil
}

// wrap maps i into [0, n).
func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
