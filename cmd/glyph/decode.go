package main

import (
	"fmt"

	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/glyph/crystal"
	"github.com/banshee-data/glyph.codec/internal/glyph/ifs"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"github.com/banshee-data/glyph.codec/internal/security"
)

func (c *cli) runDecode(args []string) error {
	fs := newFlagSet("decode")
	configPath := fs.String("config", "", "Tuning config JSON")
	resolution := fs.Int("resolution", 0, "Output resolution; must match the source for crystal artifacts (default from config)")
	seed := fs.Uint64("seed", 1, "Chaos game seed for IFS artifacts")
	out := fs.String("out", "", "Output path (default: <model>.vox)")
	pos, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return err
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		return err
	}
	res := *resolution
	if res == 0 {
		res = tuning.GetResolution()
	}

	r, err := artifact.Load(c.fsys, pos[0])
	if err != nil {
		return err
	}
	g, err := decodeResult(r, res, *seed)
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = security.SanitizeFilename(r.Metadata.ModelName) + ".vox"
	}
	if err := c.writeGrid(path, g); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "decoded %s artifact %s to %s: %d³ voxels, %d occupied\n",
		r.Encoding, pos[0], path, g.Resolution, g.Occupied())
	return nil
}

func decodeResult(r *artifact.Result, resolution int, seed uint64) (*voxel.Grid, error) {
	switch r.Encoding {
	case artifact.EncodingCrystal:
		return crystal.Tile(r.Crystal(), resolution)
	case artifact.EncodingIFS:
		return ifs.Render(r.IFS(), resolution, seed)
	default:
		return nil, fmt.Errorf("%w: %q", artifact.ErrUnknownEncoding, r.Encoding)
	}
}
