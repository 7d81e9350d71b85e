package lattice

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// amplitudeQuantum is the resolution at which peak amplitudes are compared
// when ranking. Exactly periodic inputs produce many peaks that differ only
// by FFT round-off; quantizing lets the offset length decide between them.
const amplitudeQuantum = 1e-9

// Peak is a local maximum of the autocorrelation.
type Peak struct {
	Index     [3]int
	Offset    r3.Vec // Index relative to the zero-lag centre
	Amplitude float64
}

// FindPeaks returns the top cfg.MaxPeaks local maxima of ac whose amplitude
// exceeds cfg.PeakThreshold, ranked by amplitude descending, with the zero
// offset (the self peak) removed afterwards. Shorter offsets win ties.
func FindPeaks(ac *Autocorrelation, cfg Config) []Peak {
	n := ac.N
	local := maxFilter(ac.Values, n, cfg.WindowSize/2)

	var cands []Peak
	c := ac.Center()
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				i := (x*n+y)*n + z
				v := ac.Values[i]
				if v != local[i] || v <= cfg.PeakThreshold {
					continue
				}
				cands = append(cands, Peak{
					Index:     [3]int{x, y, z},
					Offset:    r3.Vec{X: float64(x - c), Y: float64(y - c), Z: float64(z - c)},
					Amplitude: v,
				})
			}
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		qi, qj := math.Round(cands[i].Amplitude/amplitudeQuantum), math.Round(cands[j].Amplitude/amplitudeQuantum)
		if qi != qj {
			return qi > qj
		}
		ni, nj := r3.Norm2(cands[i].Offset), r3.Norm2(cands[j].Offset)
		if ni != nj {
			return ni < nj
		}
		return flatLess(cands[i].Index, cands[j].Index)
	})
	if len(cands) > cfg.MaxPeaks {
		cands = cands[:cfg.MaxPeaks]
	}

	peaks := cands[:0]
	for _, p := range cands {
		if r3.Norm2(p.Offset) > 0 {
			peaks = append(peaks, p)
		}
	}
	return peaks
}

func flatLess(a, b [3]int) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// maxFilter computes the maximum over a (2·half+1)³ box around every sample
// of a C-ordered n³ volume. The box is clipped at the borders, which gives
// the same maxima as mirrored padding. The filter is applied one axis at a
// time.
func maxFilter(vals []float64, n, half int) []float64 {
	cur := make([]float64, len(vals))
	copy(cur, vals)
	if half <= 0 {
		return cur
	}
	next := make([]float64, len(vals))
	for _, stride := range [3]int{n * n, n, 1} {
		for i := range cur {
			pos := (i / stride) % n
			lo, hi := pos-half, pos+half
			if lo < 0 {
				lo = 0
			}
			if hi > n-1 {
				hi = n - 1
			}
			m := math.Inf(-1)
			for p := lo; p <= hi; p++ {
				if v := cur[i+(p-pos)*stride]; v > m {
					m = v
				}
			}
			next[i] = m
		}
		cur, next = next, cur
	}
	return cur
}
