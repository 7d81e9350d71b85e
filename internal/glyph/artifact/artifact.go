package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// FormatVersion is written into every artifact.
const FormatVersion = "0.1.0"

var (
	// ErrZeroCompressedSize is returned when a ratio is requested for an
	// empty compressed payload.
	ErrZeroCompressedSize = errors.New("artifact: compressed size is zero")
	// ErrInvalidOriginalSize is returned for a non-positive original size.
	ErrInvalidOriginalSize = errors.New("artifact: original size must be positive")
	// ErrUnknownEncoding is returned when decoding an unrecognized encoding tag.
	ErrUnknownEncoding = errors.New("artifact: unknown encoding")
)

// Encoding tags the payload kind.
type Encoding string

const (
	EncodingCrystal Encoding = "crystal"
	EncodingIFS     Encoding = "ifs"
)

// Payload is implemented by CrystalPayload and IFSPayload.
type Payload interface {
	Encoding() Encoding
}

// LatticeInfo describes the detected lattice in voxel-index space.
type LatticeInfo struct {
	LatticeType string        `json:"latticeType"`
	Vectors     [3][3]float64 `json:"vectors"`
	Origin      [3]float64    `json:"origin"`
}

// UnitCellInfo holds the uncompressed cell shape and the cell bytes as
// base64 of a zlib stream.
type UnitCellInfo struct {
	Shape      [3]int `json:"shape"`
	Compressed string `json:"compressed"`
}

// CrystalPayload is the crystalline encoding of a grid.
type CrystalPayload struct {
	Type       Encoding     `json:"type"`
	Lattice    LatticeInfo  `json:"lattice"`
	UnitCell   UnitCellInfo `json:"unitCell"`
	Confidence float64      `json:"confidence"`
}

// Encoding implements Payload.
func (*CrystalPayload) Encoding() Encoding { return EncodingCrystal }

// Transform is one affine map of an IFS. Matrix is a row-major 4×4
// homogeneous matrix.
type Transform struct {
	Matrix      [16]float64 `json:"matrix"`
	Probability float64     `json:"probability"`
}

// BoundingBox is an inclusive range of voxel indices.
type BoundingBox struct {
	Min [3]int `json:"min"`
	Max [3]int `json:"max"`
}

// IFSPayload is the iterated-function-system encoding of a grid.
type IFSPayload struct {
	Type        Encoding    `json:"type"`
	Transforms  []Transform `json:"transforms"`
	Iterations  int         `json:"iterations"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// Encoding implements Payload.
func (*IFSPayload) Encoding() Encoding { return EncodingIFS }

// Metadata records sizes and timing for a compression run.
type Metadata struct {
	ModelName        string  `json:"modelName"`
	OriginalSize     int64   `json:"originalSize"`
	CompressedSize   int64   `json:"compressedSize"`
	CompressionRatio float64 `json:"compressionRatio"`
	ProcessingTime   float64 `json:"processingTime"` // milliseconds
	CreatedAt        float64 `json:"createdAt"`      // unix seconds
}

// Result is a complete artifact.
type Result struct {
	Version  string   `json:"version"`
	Encoding Encoding `json:"encoding"`
	Data     Payload  `json:"data"`
	Metadata Metadata `json:"metadata"`
}

// Crystal returns the crystal payload, or nil for other encodings.
func (r *Result) Crystal() *CrystalPayload {
	p, _ := r.Data.(*CrystalPayload)
	return p
}

// IFS returns the IFS payload, or nil for other encodings.
func (r *Result) IFS() *IFSPayload {
	p, _ := r.Data.(*IFSPayload)
	return p
}

// UnmarshalJSON decodes the payload according to the encoding tag.
func (r *Result) UnmarshalJSON(b []byte) error {
	var raw struct {
		Version  string          `json:"version"`
		Encoding Encoding        `json:"encoding"`
		Data     json.RawMessage `json:"data"`
		Metadata Metadata        `json:"metadata"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var p Payload
	switch raw.Encoding {
	case EncodingCrystal:
		p = &CrystalPayload{}
	case EncodingIFS:
		p = &IFSPayload{}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEncoding, raw.Encoding)
	}
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, p); err != nil {
			return fmt.Errorf("decode %s payload: %w", raw.Encoding, err)
		}
	}

	r.Version = raw.Version
	r.Encoding = raw.Encoding
	r.Data = p
	r.Metadata = raw.Metadata
	return nil
}

// Ratio returns original/compressed. Both sizes must be positive, so the
// result is always positive and finite.
func Ratio(original, compressed int64) (float64, error) {
	if compressed == 0 {
		return 0, ErrZeroCompressedSize
	}
	if compressed < 0 {
		return 0, fmt.Errorf("artifact: compressed size must be positive, got %d", compressed)
	}
	if original <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidOriginalSize, original)
	}
	r := float64(original) / float64(compressed)
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return 0, fmt.Errorf("artifact: ratio %d/%d is not finite", original, compressed)
	}
	return r, nil
}

// MarshalPayload returns the JSON encoding of p. Its length is the
// compressed size recorded in the metadata.
func MarshalPayload(p Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Encoding(), err)
	}
	return b, nil
}
