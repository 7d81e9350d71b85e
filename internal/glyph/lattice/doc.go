// Package lattice detects translational periodicity in an occupancy grid.
//
// The grid's autocorrelation is computed with a 3D FFT (Wiener–Khinchin),
// local maxima above an amplitude threshold become candidate lattice
// offsets, the shortest linearly independent triple is kept as the
// primitive vectors, and the triple is classified into a Bravais family.
// Confidence is the mean autocorrelation sampled on the implied lattice.
//
// Absence of structure is a normal outcome: Detect returns a nil Lattice
// and a nil error. The only error Detect returns is context cancellation,
// which is checked between stages (after the transform, after the peak
// search and after classification), never inside the transform itself.
package lattice
