// Package pipeline is the compression orchestrator.
//
// Responsibilities:
//   - try the crystalline encoder and fall back to the IFS encoder
//   - measure the serialized payload and compute the compression ratio
//   - stamp timing and creation metadata from an injected clock
//   - preprocess point sources through the Voxelizer and Normalizer
//   - fan batches out over a bounded worker pool
//
// Key types: Compressor, Input, Source, Stage.
//
// Dependency rule: pipeline may import the encoder packages (crystal, ifs),
// artifact and voxel. Nothing under internal/glyph imports pipeline.
package pipeline
