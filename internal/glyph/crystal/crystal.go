// Package crystal encodes grids with detectable translational symmetry as
// a lattice plus one compressed unit cell.
package crystal

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/glyph/cell"
	"github.com/banshee-data/glyph.codec/internal/glyph/lattice"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"github.com/banshee-data/glyph.codec/internal/monitoring"
	"github.com/klauspost/compress/zlib"
)

// ErrShapeMismatch is returned when a decoded unit cell does not hold
// shape[0]·shape[1]·shape[2] samples.
var ErrShapeMismatch = errors.New("crystal: unit cell size does not match shape")

// DefaultConfidenceThreshold is the minimum lattice confidence accepted.
const DefaultConfidenceThreshold = 0.7

var logf = monitoring.Component("Crystal")

// Config holds the crystalline encoder settings.
type Config struct {
	ConfidenceThreshold float64
	Detector            lattice.Config
}

// DefaultConfig returns the stock encoder configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Detector:            lattice.DefaultConfig(),
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("ConfidenceThreshold must be in [0, 1], got %f", c.ConfidenceThreshold)
	}
	return c.Detector.Validate()
}

// Encoder produces crystal payloads. It is safe for concurrent use.
type Encoder struct {
	threshold float64
	detector  *lattice.Detector
}

// NewEncoder creates an encoder. An invalid configuration falls back to
// DefaultConfig.
func NewEncoder(cfg Config) *Encoder {
	if err := cfg.Validate(); err != nil {
		logf("invalid config (%v), using defaults", err)
		cfg = DefaultConfig()
	}
	return &Encoder{
		threshold: cfg.ConfidenceThreshold,
		detector:  lattice.NewDetector(cfg.Detector),
	}
}

// Encode returns the crystal payload for g. ok is false, with a nil error,
// when no lattice is found or its confidence is below the threshold. The
// error is non-nil only on cancellation or a compression failure.
func (e *Encoder) Encode(ctx context.Context, g *voxel.Grid) (p *artifact.CrystalPayload, ok bool, err error) {
	lat, err := e.detector.Detect(ctx, g)
	if err != nil {
		return nil, false, err
	}
	if lat == nil {
		return nil, false, nil
	}
	if lat.Confidence < e.threshold {
		logf("rejecting %s lattice: confidence %.3f below %.3f", lat.Type, lat.Confidence, e.threshold)
		return nil, false, nil
	}

	uc := cell.Extract(g, lat.Vectors)
	packed, err := compress(uc.Data)
	if err != nil {
		return nil, false, fmt.Errorf("compress unit cell: %w", err)
	}

	p = &artifact.CrystalPayload{
		Type: artifact.EncodingCrystal,
		Lattice: artifact.LatticeInfo{
			LatticeType: string(lat.Type),
			Origin:      [3]float64{lat.Origin.X, lat.Origin.Y, lat.Origin.Z},
		},
		UnitCell: artifact.UnitCellInfo{
			Shape:      uc.Shape,
			Compressed: base64.StdEncoding.EncodeToString(packed),
		},
		Confidence: lat.Confidence,
	}
	for i, v := range lat.Vectors {
		p.Lattice.Vectors[i] = [3]float64{v.X, v.Y, v.Z}
	}
	return p, true, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeUnitCell inverts the unit-cell packing of p.
func DecodeUnitCell(p *artifact.CrystalPayload) (*cell.UnitCell, error) {
	shape := p.UnitCell.Shape
	for _, s := range shape {
		if s < 1 {
			return nil, fmt.Errorf("%w: shape %v", ErrShapeMismatch, shape)
		}
	}
	raw, err := base64.StdEncoding.DecodeString(p.UnitCell.Compressed)
	if err != nil {
		return nil, fmt.Errorf("decode unit cell base64: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open unit cell stream: %w", err)
	}
	defer zr.Close()

	want := shape[0] * shape[1] * shape[2]
	// Read one extra byte so oversized streams are detected without
	// inflating them fully.
	data, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil {
		return nil, fmt.Errorf("inflate unit cell: %w", err)
	}
	if len(data) != want {
		return nil, fmt.Errorf("%w: got %d samples, shape %v", ErrShapeMismatch, len(data), shape)
	}
	return &cell.UnitCell{Shape: shape, Data: data}, nil
}

// Tile rebuilds a resolution³ grid by repeating the unit cell of p on an
// axis-aligned grid anchored at the extraction window. For an exactly
// periodic source whose period divides the resolution this reproduces the
// source.
func Tile(p *artifact.CrystalPayload, resolution int) (*voxel.Grid, error) {
	uc, err := DecodeUnitCell(p)
	if err != nil {
		return nil, err
	}
	g, err := voxel.NewCube(resolution)
	if err != nil {
		return nil, err
	}
	start := cell.Origin(uc.Shape, resolution)
	for x := 0; x < resolution; x++ {
		cx := mod(x-start[0], uc.Shape[0])
		for y := 0; y < resolution; y++ {
			cy := mod(y-start[1], uc.Shape[1])
			for z := 0; z < resolution; z++ {
				if uc.At(cx, cy, mod(z-start[2], uc.Shape[2])) {
					g.Set(x, y, z, true)
				}
			}
		}
	}
	return g, nil
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}
