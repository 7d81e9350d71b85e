package lattice

import (
	"math/cmplx"

	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Autocorrelation is a normalized 3D autocorrelation volume. Values are in
// C order and shifted so zero lag sits at Center() on every axis; the
// zero-lag value is 1.
type Autocorrelation struct {
	N      int
	Values []float64
}

// Center is the index of zero lag on each axis.
func (a *Autocorrelation) Center() int {
	return a.N / 2
}

// At returns the normalized autocorrelation at index (x, y, z).
func (a *Autocorrelation) At(x, y, z int) float64 {
	return a.Values[(x*a.N+y)*a.N+z]
}

// InBounds reports whether (x, y, z) is a valid index.
func (a *Autocorrelation) InBounds(x, y, z int) bool {
	return x >= 0 && x < a.N && y >= 0 && y < a.N && z >= 0 && z < a.N
}

// Autocorrelate computes the circular autocorrelation of g as
// IFFT(FFT(g)·conj(FFT(g))), keeps the real part and divides by the
// zero-lag maximum. ok is false when the grid has no occupancy, in which
// case there is nothing to normalize against.
func Autocorrelate(g *voxel.Grid) (ac *Autocorrelation, ok bool) {
	n := g.Resolution
	buf := make([]complex128, len(g.Data))
	for i, v := range g.Data {
		if v != 0 {
			buf[i] = 1
		}
	}

	fft3(buf, n, false)
	for i, c := range buf {
		buf[i] = c * cmplx.Conj(c)
	}
	fft3(buf, n, true)

	vals := make([]float64, len(buf))
	h := n / 2
	for x := 0; x < n; x++ {
		sx := (x + h) % n
		for y := 0; y < n; y++ {
			sy := (y + h) % n
			for z := 0; z < n; z++ {
				sz := (z + h) % n
				vals[(sx*n+sy)*n+sz] = real(buf[(x*n+y)*n+z])
			}
		}
	}

	peak := floats.Max(vals)
	if !(peak > 0) {
		return &Autocorrelation{N: n, Values: make([]float64, len(vals))}, false
	}
	floats.Scale(1/peak, vals)
	return &Autocorrelation{N: n, Values: vals}, true
}

// fft3 transforms a C-ordered n³ volume in place, one axis at a time. The
// inverse is unnormalized; callers normalize by the zero-lag peak.
func fft3(data []complex128, n int, inverse bool) {
	fft := fourier.NewCmplxFFT(n)
	line := make([]complex128, n)
	out := make([]complex128, n)

	// strides for the x, y and z axes; the other two axes enumerate lines
	for _, stride := range [3]int{n * n, n, 1} {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				start := lineStart(i, j, n, stride)
				for k := 0; k < n; k++ {
					line[k] = data[start+k*stride]
				}
				if inverse {
					fft.Sequence(out, line)
				} else {
					fft.Coefficients(out, line)
				}
				for k := 0; k < n; k++ {
					data[start+k*stride] = out[k]
				}
			}
		}
	}
}

// lineStart returns the flat index where a line along the axis with the
// given stride begins, for the (i, j) coordinates of the other two axes.
func lineStart(i, j, n, stride int) int {
	switch stride {
	case n * n: // along x: (0, i, j)
		return i*n + j
	case n: // along y: (i, 0, j)
		return i*n*n + j
	default: // along z: (i, j, 0)
		return (i*n + j) * n
	}
}
