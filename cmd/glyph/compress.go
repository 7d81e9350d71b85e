package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/glyph/pipeline"
)

func (c *cli) runCompress(args []string) error {
	fs := newFlagSet("compress")
	configPath := fs.String("config", "", "Tuning config JSON")
	outDir := fs.String("out", ".", "Directory for the .agc artifact")
	resolution := fs.Int("resolution", 0, "Voxel resolution for point files (default from config)")
	name := fs.String("name", "", "Model name recorded in the artifact (default: file name)")
	pos, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return err
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		return err
	}
	m, err := c.loadModel(pos[0])
	if err != nil {
		return err
	}
	if *name != "" {
		m.name = *name
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comp := pipeline.NewCompressor(tuning.PipelineConfig())
	var res *artifact.Result
	if m.grid != nil {
		res, err = comp.Compress(ctx, pipeline.Input{Name: m.name, Grid: m.grid, OriginalSize: m.size})
	} else {
		res, err = comp.CompressSource(ctx, m.source(*resolution))
	}
	if err != nil {
		return err
	}

	path := artifact.PathFor(*outDir, pos[0])
	if err := artifact.Save(c.fsys, path, res); err != nil {
		return err
	}
	c.report(path, res)
	return nil
}

func (c *cli) runBatch(args []string) error {
	fs := newFlagSet("batch")
	configPath := fs.String("config", "", "Tuning config JSON")
	outDir := fs.String("out", ".", "Directory for the .agc artifacts")
	workers := fs.Int("workers", 0, "Parallel workers (default from config)")
	resolution := fs.Int("resolution", 0, "Voxel resolution for point files (default from config)")
	pos, err := parseArgs(fs, args, 1, -1)
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
	n := *workers
	if n == 0 {
		n = tuning.GetWorkers()
	}

	var paths []string
	for _, pattern := range pos {
		matches, err := c.fsys.Glob(pattern)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no models match %v", pos)
	}

	inputs := make([]pipeline.Input, 0, len(paths))
	for _, p := range paths {
		m, err := c.loadModel(p)
		if err != nil {
			return err
		}
		g, err := m.toGrid(res)
		if err != nil {
			return err
		}
		inputs = append(inputs, pipeline.Input{Name: m.name, Grid: g, OriginalSize: m.size})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comp := pipeline.NewCompressor(tuning.PipelineConfig())
	results, err := comp.CompressAll(ctx, inputs, n)
	if err != nil {
		return err
	}

	var crystals int
	for i, r := range results {
		path := artifact.PathFor(*outDir, paths[i])
		if err := artifact.Save(c.fsys, path, r); err != nil {
			return err
		}
		c.report(path, r)
		if r.Encoding == artifact.EncodingCrystal {
			crystals++
		}
	}
	fmt.Fprintf(c.out, "%d models compressed (%d crystal, %d ifs) into %s\n",
		len(results), crystals, len(results)-crystals, filepath.Clean(*outDir))
	return nil
}

func (c *cli) report(path string, r *artifact.Result) {
	md := r.Metadata
	fmt.Fprintf(c.out, "%s: %s %d -> %d bytes (%.1fx) in %.0fms -> %s\n",
		md.ModelName, r.Encoding, md.OriginalSize, md.CompressedSize, md.CompressionRatio, md.ProcessingTime, path)
}
