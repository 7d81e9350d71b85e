// Package voxel owns the occupancy-grid layer of the glyph data model.
//
// Responsibilities: the cubic Grid type, the Voxelizer and Normalizer
// collaborator contracts (with point-cloud and centroid implementations),
// ASC point input, and the .vox grid file format.
// Key types: Grid, Voxelizer, Normalizer.
//
// Dependency rule: voxel depends on no other glyph package. Grids handed to
// the encoders are treated as read-only; Normalize returns a new grid.
package voxel
