package lattice

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Bravais is the lattice family inferred from the primitive vectors.
type Bravais string

const (
	Cubic        Bravais = "cubic"
	Hexagonal    Bravais = "hexagonal"
	Orthorhombic Bravais = "orthorhombic"
	Triclinic    Bravais = "triclinic"
)

// Classify assigns a Bravais family from the lengths a, b, c of the three
// vectors and the angles between them, using tol for both length and angle
// comparisons. Rules are tried in order: cubic (equal lengths, right
// angles), hexagonal (a≈b with a 120° angle between v1 and v2),
// orthorhombic (right angles), otherwise triclinic.
func Classify(vectors [3]r3.Vec, tol float64) Bravais {
	a, b, c := r3.Norm(vectors[0]), r3.Norm(vectors[1]), r3.Norm(vectors[2])
	if a == 0 || b == 0 || c == 0 {
		return Triclinic
	}
	angles := [3]float64{
		angle(vectors[0], vectors[1], a, b),
		angle(vectors[0], vectors[2], a, c),
		angle(vectors[1], vectors[2], b, c),
	}
	right := true
	for _, ang := range angles {
		if math.Abs(ang-math.Pi/2) >= tol {
			right = false
		}
	}

	if math.Abs(a-b) < tol && math.Abs(b-c) < tol && right {
		return Cubic
	}
	if math.Abs(a-b) < tol && math.Abs(angles[0]-2*math.Pi/3) < tol {
		return Hexagonal
	}
	if right {
		return Orthorhombic
	}
	return Triclinic
}

// angle returns the angle between u and v given their lengths. The cosine
// is clamped so round-off cannot push it outside acos's domain.
func angle(u, v r3.Vec, lu, lv float64) float64 {
	cos := r3.Dot(u, v) / (lu * lv)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}
