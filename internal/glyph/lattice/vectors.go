package lattice

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// machineEpsilon is the float64 unit round-off used for the rank tolerance.
const machineEpsilon = 2.220446049250313e-16

// SelectVectors picks three linearly independent peak offsets, preferring
// the shortest. Offsets are visited in ascending length and each is kept
// only if it raises the rank of the selected set. ok is false when fewer
// than three independent offsets exist.
func SelectVectors(peaks []Peak) (vectors [3]r3.Vec, ok bool) {
	if len(peaks) == 0 {
		return vectors, false
	}
	cands := make([]r3.Vec, len(peaks))
	for i, p := range peaks {
		cands[i] = p.Offset
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return r3.Norm(cands[i]) < r3.Norm(cands[j])
	})

	selected := []r3.Vec{cands[0]}
	for _, v := range cands[1:] {
		if len(selected) >= 3 {
			break
		}
		trial := append(append([]r3.Vec(nil), selected...), v)
		if Rank(trial) == len(trial) {
			selected = trial
		}
	}
	if len(selected) < 3 || Rank(selected[:1]) < 1 {
		return vectors, false
	}
	copy(vectors[:], selected)
	return vectors, true
}

// Rank returns the numerical rank of the matrix whose rows are vs, counting
// singular values above σmax·max(rows, cols)·ε.
func Rank(vs []r3.Vec) int {
	if len(vs) == 0 {
		return 0
	}
	data := make([]float64, 0, 3*len(vs))
	for _, v := range vs {
		data = append(data, v.X, v.Y, v.Z)
	}
	m := mat.NewDense(len(vs), 3, data)

	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		return 0
	}
	s := svd.Values(nil)
	if len(s) == 0 || s[0] == 0 {
		return 0
	}
	dim := len(vs)
	if dim < 3 {
		dim = 3
	}
	tol := s[0] * float64(dim) * machineEpsilon
	rank := 0
	for _, v := range s {
		if v > tol {
			rank++
		}
	}
	return rank
}
