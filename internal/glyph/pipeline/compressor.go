package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/glyph/crystal"
	"github.com/banshee-data/glyph.codec/internal/glyph/ifs"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"github.com/banshee-data/glyph.codec/internal/monitoring"
	"github.com/banshee-data/glyph.codec/internal/timeutil"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrPreprocess wraps failures of the Voxelizer or Normalizer. They are
// source problems, not compression faults.
var ErrPreprocess = errors.New("pipeline: preprocessing failed")

// DefaultResolution is the grid side used when a source does not name one.
const DefaultResolution = 64

// DefaultMaxResolution is the largest grid side accepted by default.
const DefaultMaxResolution = 256

var logf = monitoring.Component("Pipeline")

// Config holds the orchestrator settings.
type Config struct {
	Crystal    crystal.Config
	IFS        ifs.Config
	Resolution    int // default grid side for point sources
	MaxResolution int // largest grid side accepted (default: 256)
	Workers       int // CompressAll pool size; <= 0 means one per input
}

// DefaultConfig returns the stock orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Crystal:       crystal.DefaultConfig(),
		IFS:           ifs.DefaultConfig(),
		Resolution:    DefaultResolution,
		MaxResolution: DefaultMaxResolution,
		Workers:       4,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if err := c.Crystal.Validate(); err != nil {
		return fmt.Errorf("crystal: %w", err)
	}
	if err := c.IFS.Validate(); err != nil {
		return fmt.Errorf("ifs: %w", err)
	}
	if c.Resolution < 1 {
		return fmt.Errorf("Resolution must be at least 1, got %d", c.Resolution)
	}
	if c.MaxResolution < c.Resolution || c.MaxResolution > voxel.MaxSide {
		return fmt.Errorf("MaxResolution must be in [%d, %d], got %d", c.Resolution, voxel.MaxSide, c.MaxResolution)
	}
	return nil
}

// Input is one grid to compress.
type Input struct {
	Name string
	Grid *voxel.Grid
	// OriginalSize is the size in bytes of the source the grid came from.
	// Zero means the raw grid size (one byte per voxel).
	OriginalSize int64
	// Observer, when set, sees this run's stages after the compressor's
	// own observer.
	Observer Observer
}

// Source is a point set still to be voxelized.
type Source struct {
	Name         string
	Points       []r3.Vec
	Resolution   int // zero uses Config.Resolution
	OriginalSize int64
	Observer     Observer
}

// Compressor chooses between the crystalline and IFS encoders and packages
// the result. It is safe for concurrent use.
type Compressor struct {
	cfg        Config
	crystal    *crystal.Encoder
	fallback   *ifs.Encoder
	voxelizer  voxel.Voxelizer
	normalizer voxel.Normalizer
	clock      timeutil.Clock
	observer   Observer
}

// NewCompressor creates a compressor with the real clock, the point
// voxelizer and the centroid normalizer.
func NewCompressor(cfg Config) *Compressor {
	if cfg.Resolution < 1 {
		cfg.Resolution = DefaultResolution
	}
	if cfg.MaxResolution < 1 || cfg.MaxResolution > voxel.MaxSide {
		cfg.MaxResolution = max(DefaultMaxResolution, cfg.Resolution)
	}
	return &Compressor{
		cfg:        cfg,
		crystal:    crystal.NewEncoder(cfg.Crystal),
		fallback:   ifs.NewEncoder(cfg.IFS, nil),
		voxelizer:  voxel.PointVoxelizer{},
		normalizer: voxel.CentroidNormalizer{},
		clock:      timeutil.RealClock{},
	}
}

// WithClock sets the clock used for timing and timestamps.
func (c *Compressor) WithClock(clk timeutil.Clock) *Compressor {
	c.clock = clk
	return c
}

// WithObserver sets the stage observer.
func (c *Compressor) WithObserver(o Observer) *Compressor {
	c.observer = o
	return c
}

// WithPreprocessors replaces the Voxelizer and Normalizer. A nil argument
// keeps the current one.
func (c *Compressor) WithPreprocessors(v voxel.Voxelizer, n voxel.Normalizer) *Compressor {
	if v != nil {
		c.voxelizer = v
	}
	if n != nil {
		c.normalizer = n
	}
	return c
}

// MaxResolution returns the largest grid side the compressor accepts.
func (c *Compressor) MaxResolution() int {
	return c.cfg.MaxResolution
}

func (c *Compressor) checkResolution(name string, r int) error {
	if r > c.cfg.MaxResolution {
		return fmt.Errorf("compress %s: %w: %d exceeds %d", name, voxel.ErrResolutionTooLarge, r, c.cfg.MaxResolution)
	}
	return nil
}

func (c *Compressor) enter(in Input, s Stage) {
	if c.observer != nil {
		c.observer(in.Name, s)
	}
	if in.Observer != nil {
		in.Observer(in.Name, s)
	}
}

// Compress encodes one grid. Non-detection of a lattice is not an error;
// the IFS encoder always produces a payload. Errors come from an invalid
// grid, cancellation or the ratio guard.
func (c *Compressor) Compress(ctx context.Context, in Input) (*artifact.Result, error) {
	start := c.clock.Now()
	if err := in.Grid.Validate(); err != nil {
		return nil, fmt.Errorf("compress %s: %w", in.Name, err)
	}
	if err := c.checkResolution(in.Name, in.Grid.Resolution); err != nil {
		return nil, err
	}
	c.enter(in, StageReady)

	c.enter(in, StageCrystallineAttempt)
	var payload artifact.Payload
	cp, ok, err := c.crystal.Encode(ctx, in.Grid)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", in.Name, err)
	}
	if ok {
		c.enter(in, StageAccepted)
		payload = cp
	} else {
		c.enter(in, StageRejected)
		c.enter(in, StageIFSEncode)
		ip, err := c.fallback.Encode(ctx, in.Grid)
		if err != nil {
			return nil, fmt.Errorf("compress %s: %w", in.Name, err)
		}
		payload = ip
	}

	b, err := artifact.MarshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", in.Name, err)
	}
	original := in.OriginalSize
	if original == 0 {
		original = in.Grid.SizeBytes()
	}
	compressed := int64(len(b))
	ratio, err := artifact.Ratio(original, compressed)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", in.Name, err)
	}

	now := c.clock.Now()
	res := &artifact.Result{
		Version:  artifact.FormatVersion,
		Encoding: payload.Encoding(),
		Data:     payload,
		Metadata: artifact.Metadata{
			ModelName:        in.Name,
			OriginalSize:     original,
			CompressedSize:   compressed,
			CompressionRatio: ratio,
			ProcessingTime:   timeutil.Millis(now.Sub(start)),
			CreatedAt:        timeutil.EpochSeconds(now),
		},
	}
	c.enter(in, StagePackaged)
	logf("%s: encoding=%s ratio=%.1fx time=%.0fms", in.Name, res.Encoding, ratio, res.Metadata.ProcessingTime)
	return res, nil
}

// CompressSource voxelizes and normalizes a point source, then compresses
// it. Preprocessing failures are wrapped with ErrPreprocess. A resolution
// above MaxResolution is rejected before voxelizing.
func (c *Compressor) CompressSource(ctx context.Context, src Source) (*artifact.Result, error) {
	res := src.Resolution
	if res == 0 {
		res = c.cfg.Resolution
	}
	if err := c.checkResolution(src.Name, res); err != nil {
		return nil, err
	}
	g, err := c.voxelizer.Voxelize(src.Points, res)
	if err != nil {
		return nil, fmt.Errorf("%w: voxelize %s: %w", ErrPreprocess, src.Name, err)
	}
	g, err = c.normalizer.Normalize(g)
	if err != nil {
		return nil, fmt.Errorf("%w: normalize %s: %w", ErrPreprocess, src.Name, err)
	}
	return c.Compress(ctx, Input{Name: src.Name, Grid: g, OriginalSize: src.OriginalSize, Observer: src.Observer})
}
