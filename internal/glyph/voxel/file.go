package voxel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrBadGridFile is returned when a .vox stream is malformed.
var ErrBadGridFile = errors.New("voxel: malformed grid file")

const (
	fileMagic  = "GLYV"
	fileFormat = 1
)

type fileHeader struct {
	Magic      [4]byte
	Format     uint8
	Resolution uint32
	Bounds     [6]float64
}

// Write encodes g as a gzip-compressed .vox stream: header followed by the
// occupancy bits packed LSB-first in C order.
func Write(w io.Writer, g *Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}
	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	hdr := fileHeader{
		Format:     fileFormat,
		Resolution: uint32(g.Resolution),
		Bounds:     [6]float64{g.Min.X, g.Min.Y, g.Min.Z, g.Max.X, g.Max.Y, g.Max.Z},
	}
	copy(hdr.Magic[:], fileMagic)
	if err := binary.Write(gz, binary.LittleEndian, &hdr); err != nil {
		gz.Close()
		return fmt.Errorf("write grid header: %w", err)
	}
	if _, err := gz.Write(packBits(g.Data)); err != nil {
		gz.Close()
		return fmt.Errorf("write grid bits: %w", err)
	}
	return gz.Close()
}

// Read decodes a .vox stream written by Write.
func Read(r io.Reader) (*Grid, error) {
	return ReadLimit(r, MaxSide)
}

// ReadLimit decodes a .vox stream, rejecting a declared side above
// maxSide with ErrResolutionTooLarge before any grid is allocated.
func ReadLimit(r io.Reader, maxSide int) (*Grid, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadGridFile, err)
	}
	defer gz.Close()

	var hdr fileHeader
	if err := binary.Read(gz, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadGridFile, err)
	}
	if string(hdr.Magic[:]) != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadGridFile, hdr.Magic[:])
	}
	if hdr.Format != fileFormat {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrBadGridFile, hdr.Format)
	}
	if hdr.Resolution == 0 {
		return nil, fmt.Errorf("%w: resolution %d", ErrBadGridFile, hdr.Resolution)
	}
	if maxSide > MaxSide || maxSide < 1 {
		maxSide = MaxSide
	}
	if int64(hdr.Resolution) > int64(maxSide) {
		return nil, fmt.Errorf("%w: file declares %d, limit %d", ErrResolutionTooLarge, hdr.Resolution, maxSide)
	}
	b := hdr.Bounds
	g, err := New(int(hdr.Resolution), r3.Vec{X: b[0], Y: b[1], Z: b[2]}, r3.Vec{X: b[3], Y: b[4], Z: b[5]})
	if err != nil {
		return nil, err
	}
	packed := make([]byte, (len(g.Data)+7)/8)
	if _, err := io.ReadFull(gz, packed); err != nil {
		return nil, fmt.Errorf("%w: occupancy bits: %v", ErrBadGridFile, err)
	}
	unpackBits(packed, g.Data)
	return g, nil
}

// Marshal returns the .vox encoding of g.
func Marshal(g *Grid) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a .vox blob.
func Unmarshal(blob []byte) (*Grid, error) {
	return UnmarshalLimit(blob, MaxSide)
}

// UnmarshalLimit decodes a .vox blob with ReadLimit.
func UnmarshalLimit(blob []byte, maxSide int) (*Grid, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrBadGridFile)
	}
	return ReadLimit(bytes.NewReader(blob), maxSide)
}

func packBits(data []uint8) []byte {
	out := make([]byte, (len(data)+7)/8)
	for i, v := range data {
		if v != 0 {
			out[i>>3] |= 1 << (i & 7)
		}
	}
	return out
}

func unpackBits(packed []byte, dst []uint8) {
	for i := range dst {
		dst[i] = (packed[i>>3] >> (i & 7)) & 1
	}
}
