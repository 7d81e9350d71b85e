// Package cell extracts the repeating sub-volume implied by a lattice.
//
// The cell is an axis-aligned box sized from the lengths of the three
// lattice vectors, taken around the grid centre. Oblique lattices are
// approximated by that box.
package cell

import (
	"math"

	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

// UnitCell is a sub-volume of a grid. Data is one byte per voxel (0 or 1)
// in C order.
type UnitCell struct {
	Shape [3]int
	Data  []uint8
}

// Len returns the number of voxels in the cell.
func (c *UnitCell) Len() int {
	return c.Shape[0] * c.Shape[1] * c.Shape[2]
}

// At reports whether voxel (x, y, z) of the cell is occupied.
func (c *UnitCell) At(x, y, z int) bool {
	return c.Data[(x*c.Shape[1]+y)*c.Shape[2]+z] != 0
}

// Extents returns the per-axis extent of the cell for the given vectors:
// ceil of each vector's length clamped to [1, R]. Non-finite lengths map
// to R.
func Extents(vectors [3]r3.Vec, resolution int) [3]int {
	var ext [3]int
	for i, v := range vectors {
		n := math.Ceil(r3.Norm(v))
		switch {
		case math.IsNaN(n) || math.IsInf(n, 0) || n >= float64(resolution):
			ext[i] = resolution
		case n < 1:
			ext[i] = 1
		default:
			ext[i] = int(n)
		}
	}
	return ext
}

// Origin returns the first voxel of the extraction window for the given
// extents. The window is centred on R/2 and shifted to stay inside the grid.
func Origin(ext [3]int, resolution int) [3]int {
	var start [3]int
	c := resolution / 2
	for i, e := range ext {
		s := c - e/2
		if s > resolution-e {
			s = resolution - e
		}
		if s < 0 {
			s = 0
		}
		start[i] = s
	}
	return start
}

// Extract copies the unit cell for vectors out of g. The cell always lies
// fully inside the grid.
func Extract(g *voxel.Grid, vectors [3]r3.Vec) *UnitCell {
	r := g.Resolution
	ext := Extents(vectors, r)
	start := Origin(ext, r)

	c := &UnitCell{Shape: ext, Data: make([]uint8, ext[0]*ext[1]*ext[2])}
	i := 0
	for x := 0; x < ext[0]; x++ {
		for y := 0; y < ext[1]; y++ {
			row := g.Index(start[0]+x, start[1]+y, start[2])
			i += copy(c.Data[i:i+ext[2]], g.Data[row:row+ext[2]])
		}
	}
	return c
}
