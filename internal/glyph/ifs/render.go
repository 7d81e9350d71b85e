package ifs

import (
	"fmt"
	"math"

	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"gonum.org/v1/gonum/mat"
)

// warmup steps are discarded so the orbit settles onto the attractor.
const warmup = 20

// Render step limits: at most stepsPerVoxel per grid voxel and never more
// than maxRenderSteps.
const (
	stepsPerVoxel  = 8
	maxRenderSteps = 1 << 24
)

// RenderSteps is the number of chaos-game steps Render plays for an
// artifact asking for iterations at the given resolution, clamped to
// [1, limit].
func RenderSteps(iterations, resolution int) int {
	limit := maxRenderSteps
	if resolution > 0 && resolution <= voxel.MaxSide {
		limit = min(limit, stepsPerVoxel*resolution*resolution*resolution)
	}
	return min(max(iterations, 1), limit)
}

// Render plays the chaos game over the payload's maps and rasterizes the
// orbit into a resolution³ grid. The orbit's extent is stretched to fill
// the payload's bounding box. The same seed gives the same grid.
func Render(p *artifact.IFSPayload, resolution int, seed uint64) (*voxel.Grid, error) {
	if len(p.Transforms) == 0 {
		return nil, fmt.Errorf("ifs: payload has no transforms")
	}
	g, err := voxel.NewCube(resolution)
	if err != nil {
		return nil, err
	}

	maps := make([]*mat.Dense, len(p.Transforms))
	cum := make([]float64, len(p.Transforms))
	total := 0.0
	for i, t := range p.Transforms {
		maps[i] = mat.NewDense(4, 4, append([]float64(nil), t.Matrix[:]...))
		total += t.Probability
		cum[i] = total
	}
	if !(total > 0) {
		return nil, fmt.Errorf("ifs: transform probabilities sum to %v", total)
	}

	steps := RenderSteps(p.Iterations, resolution)

	// The orbit is walked twice from the same seed, once for its extent and
	// once to rasterize it.
	walk := func(visit func(pt [3]float64)) {
		rng := NewRand(seed)
		cur := mat.NewVecDense(4, []float64{0, 0, 0, 1})
		next := mat.NewVecDense(4, nil)
		for i := 0; i < warmup+steps; i++ {
			u := rng.Float64() * total
			k := 0
			for k < len(cum)-1 && u >= cum[k] {
				k++
			}
			next.MulVec(maps[k], cur)
			cur, next = next, cur
			if i >= warmup {
				visit([3]float64{cur.AtVec(0), cur.AtVec(1), cur.AtVec(2)})
			}
		}
	}

	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	walk(func(pt [3]float64) {
		for a := range pt {
			lo[a] = math.Min(lo[a], pt[a])
			hi[a] = math.Max(hi[a], pt[a])
		}
	})

	box := clampBox(p.BoundingBox, resolution)
	walk(func(pt [3]float64) {
		var idx [3]int
		for a := range pt {
			span := hi[a] - lo[a]
			t := 0.5
			if span > 0 {
				t = (pt[a] - lo[a]) / span
			}
			fmin, fmax := float64(box.Min[a]), float64(box.Max[a])
			idx[a] = int(math.Round(fmin + t*(fmax-fmin)))
		}
		g.Set(idx[0], idx[1], idx[2], true)
	})
	return g, nil
}

// clampBox limits b to valid indices of a resolution³ grid and orders its
// corners.
func clampBox(b artifact.BoundingBox, resolution int) artifact.BoundingBox {
	for a := 0; a < 3; a++ {
		b.Min[a] = min(max(b.Min[a], 0), resolution-1)
		b.Max[a] = min(max(b.Max[a], 0), resolution-1)
		if b.Min[a] > b.Max[a] {
			b.Min[a], b.Max[a] = b.Max[a], b.Min[a]
		}
	}
	return b
}
