// Package synth generates occupancy grids with known structure for the
// synth command, benchmarks and tests.
package synth

import (
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
)

// DefaultMotif is an asymmetric three-voxel motif. Its lack of internal
// symmetry keeps the shortest autocorrelation peaks at whole periods.
var DefaultMotif = [][3]int{{0, 0, 0}, {1, 0, 0}, {0, 2, 1}}

// Periodic tiles motif across a cubic grid with the given period on every
// axis. Motif offsets are taken modulo the period.
func Periodic(resolution, period int, motif [][3]int) (*voxel.Grid, error) {
	return PeriodicAxes(resolution, [3]int{period, period, period}, motif)
}

// PeriodicAxes tiles motif with a separate period per axis.
func PeriodicAxes(resolution int, periods [3]int, motif [][3]int) (*voxel.Grid, error) {
	for _, p := range periods {
		if p < 1 {
			return nil, fmt.Errorf("synth: period must be at least 1, got %v", periods)
		}
	}
	if len(motif) == 0 {
		motif = DefaultMotif
	}
	g, err := voxel.NewCube(resolution)
	if err != nil {
		return nil, err
	}
	for x := 0; x < resolution; x += periods[0] {
		for y := 0; y < resolution; y += periods[1] {
			for z := 0; z < resolution; z += periods[2] {
				for _, m := range motif {
					px := x + mod(m[0], periods[0])
					py := y + mod(m[1], periods[1])
					pz := z + mod(m[2], periods[2])
					if g.InBounds(px, py, pz) {
						g.Set(px, py, pz, true)
					}
				}
			}
		}
	}
	return g, nil
}

// Random fills a cubic grid where each voxel is occupied independently with
// probability density. The same seed always gives the same grid.
func Random(resolution int, density float64, seed uint64) (*voxel.Grid, error) {
	if density < 0 || density > 1 {
		return nil, fmt.Errorf("synth: density must be in [0, 1], got %f", density)
	}
	g, err := voxel.NewCube(resolution)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := range g.Data {
		if rng.Float64() < density {
			g.Data[i] = 1
		}
	}
	return g, nil
}

// Sphere marks every voxel whose centre lies within radius of the grid
// centre.
func Sphere(resolution int, radius float64) (*voxel.Grid, error) {
	g, err := voxel.NewCube(resolution)
	if err != nil {
		return nil, err
	}
	c := float64(resolution) / 2
	r2 := radius * radius
	for x := 0; x < resolution; x++ {
		for y := 0; y < resolution; y++ {
			for z := 0; z < resolution; z++ {
				dx, dy, dz := float64(x)+0.5-c, float64(y)+0.5-c, float64(z)+0.5-c
				if dx*dx+dy*dy+dz*dz <= r2 {
					g.Set(x, y, z, true)
				}
			}
		}
	}
	return g, nil
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}
