package cell

import (
	"math"
	"testing"

	"github.com/banshee-data/glyph.codec/internal/glyph/synth"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestExtents(t *testing.T) {
	tests := []struct {
		name    string
		vectors [3]r3.Vec
		want    [3]int
	}{
		{"axis", [3]r3.Vec{{X: -8}, {Y: 8}, {Z: 8}}, [3]int{8, 8, 8}},
		{"rounds up", [3]r3.Vec{{X: 7.2}, {Y: 3.01}, {X: 1, Y: 1}}, [3]int{8, 4, 2}},
		{"near zero", [3]r3.Vec{{X: 1e-9}, {}, {Z: 0.5}}, [3]int{1, 1, 1}},
		{"oversized", [3]r3.Vec{{X: 100}, {Y: 32}, {Z: 33}}, [3]int{32, 32, 32}},
		{"non-finite", [3]r3.Vec{{X: math.NaN()}, {Y: math.Inf(1)}, {Z: 4}}, [3]int{32, 32, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extents(tt.vectors, 32))
		})
	}
}

func TestOrigin_StaysInBounds(t *testing.T) {
	assert.Equal(t, [3]int{12, 16, 0}, Origin([3]int{8, 1, 32}, 32))
	assert.Equal(t, [3]int{0, 0, 0}, Origin([3]int{5, 5, 5}, 5))
	// Odd extents in an odd grid still fit.
	assert.Equal(t, [3]int{0, 1, 3}, Origin([3]int{7, 5, 1}, 7))
}

func TestExtract_Shape(t *testing.T) {
	g, err := synth.Periodic(32, 8, nil)
	require.NoError(t, err)

	c := Extract(g, [3]r3.Vec{{X: -8}, {Y: -8}, {Z: -8}})
	assert.Equal(t, [3]int{8, 8, 8}, c.Shape)
	assert.Len(t, c.Data, 512)
	assert.Equal(t, 512, c.Len())
	// One full period holds exactly one copy of the motif.
	n := 0
	for _, v := range c.Data {
		n += int(v)
	}
	assert.Equal(t, len(synth.DefaultMotif), n)
}

func TestExtract_CopiesWindow(t *testing.T) {
	g, err := voxel.NewCube(8)
	require.NoError(t, err)
	g.Set(4, 4, 4, true)
	g.Set(3, 4, 5, true)

	c := Extract(g, [3]r3.Vec{{X: 2}, {Y: 2}, {Z: 2}})
	assert.Equal(t, [3]int{2, 2, 2}, c.Shape)
	// Window starts at 4-1 = 3 on each axis.
	assert.True(t, c.At(1, 1, 1))
	assert.False(t, c.At(0, 1, 1))
	assert.False(t, c.At(0, 0, 0))
}

func TestExtract_DegenerateVectors(t *testing.T) {
	g, err := synth.Random(8, 0.5, 1)
	require.NoError(t, err)

	c := Extract(g, [3]r3.Vec{{X: math.NaN()}, {}, {Z: 1000}})
	assert.Equal(t, [3]int{8, 1, 8}, c.Shape)
	assert.Len(t, c.Data, 64)
}
