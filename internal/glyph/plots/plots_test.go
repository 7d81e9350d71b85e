package plots

import (
	"bytes"
	"os"
	"testing"

	"github.com/banshee-data/glyph.codec/internal/glyph/lattice"
	"github.com/banshee-data/glyph.codec/internal/glyph/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func periodicAutocorr(t *testing.T) *lattice.Autocorrelation {
	t.Helper()
	g, err := synth.Periodic(16, 4, nil)
	require.NoError(t, err)
	ac, ok := lattice.Autocorrelate(g)
	require.True(t, ok)
	return ac
}

func TestHeatmap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Heatmap(&buf, periodicAutocorr(t), "test"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestProfile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Profile(&buf, periodicAutocorr(t), 0.5, "test"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestNoData(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Heatmap(&buf, nil, ""), ErrNoData)
	assert.ErrorIs(t, Profile(&buf, nil, 0.5, ""), ErrNoData)
}

func TestSaveAll(t *testing.T) {
	dir := t.TempDir()
	paths, err := SaveAll(dir, "cube", periodicAutocorr(t), 0.5)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
