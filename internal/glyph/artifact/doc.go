// Package artifact defines the AGC compressed-artifact file format.
//
// An artifact is a JSON document holding a format version, the encoding
// tag ("crystal" or "ifs"), the encoder payload and size metadata:
//
//	{
//	  "version": "0.1.0",
//	  "encoding": "crystal",
//	  "data": {"type": "crystal", "lattice": {...}, "unitCell": {...}, "confidence": 0.98},
//	  "metadata": {"modelName": "...", "originalSize": 32768, "compressedSize": 402,
//	               "compressionRatio": 81.5, "processingTime": 12.4, "createdAt": 1760000000.5}
//	}
//
// Results are built once by the compression pipeline and not modified
// afterwards.
package artifact
