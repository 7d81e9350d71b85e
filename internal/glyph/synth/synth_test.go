package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodic_TilesMotif(t *testing.T) {
	g, err := Periodic(16, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*2*2*len(DefaultMotif), g.Occupied())
	assert.True(t, g.At(8, 8, 8))
	assert.True(t, g.At(9, 0, 8))
	assert.True(t, g.At(8, 10, 9))
	assert.False(t, g.At(1, 1, 1))
}

func TestPeriodic_RejectsBadPeriod(t *testing.T) {
	_, err := Periodic(16, 0, nil)
	assert.Error(t, err)
}

func TestRandom_Deterministic(t *testing.T) {
	a, err := Random(16, 0.1, 42)
	require.NoError(t, err)
	b, err := Random(16, 0.1, 42)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
	assert.InDelta(t, 0.1, a.Density(), 0.03)
}

func TestRandom_RejectsBadDensity(t *testing.T) {
	_, err := Random(8, 1.5, 1)
	assert.Error(t, err)
}

func TestSphere_CentreOccupied(t *testing.T) {
	g, err := Sphere(16, 4)
	require.NoError(t, err)
	assert.True(t, g.At(8, 8, 8))
	assert.False(t, g.At(0, 0, 0))
}
